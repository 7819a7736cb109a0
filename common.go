// ABOUTME: Shared debug logging for the megra binary
// ABOUTME: Writes timestamped diagnostics to a file when enabled

package main

import (
	"fmt"
	"log"
	"os"
)

// Debug logger - writes to file for debugging
var debugLog *log.Logger

// SetupDebugLog initializes debug logging to the specified file
func SetupDebugLog(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugLog = log.New(f, "", log.Ltime|log.Lmicroseconds)

	return nil
}

// debugf logs debug messages to file if debug logger is enabled
func debugf(format string, args ...interface{}) {
	if debugLog != nil {
		debugLog.Printf(format, args...)
	}
}
