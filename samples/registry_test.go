// ABOUTME: Tests for the sample registry keyword lookup
// ABOUTME: Uses dummy audio files; metadata extraction is best-effort

package samples

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"megra/dispatch"
	"megra/pool"
)

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(31, 32))
}

func writeDummy(t *testing.T, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("RIFFdummy"), 0644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoadFileAddsStemKeywords(t *testing.T) {
	dir := t.TempDir()
	path := writeDummy(t, dir, "bd_808_long.wav")

	reg := NewRegistry(dispatch.NewRecorder())

	if _, err := reg.LoadFile("bd", path, "kick"); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if reg.Count("bd") != 1 {
		t.Fatalf("expected 1 entry, got %d", reg.Count("bd"))
	}

	// both the explicit keyword and the stem parts resolve
	for _, query := range [][]string{{"kick"}, {"808"}, {"long"}, {"808", "kick"}} {
		if _, ok := reg.Lookup("bd", query, testRNG()); !ok {
			t.Errorf("expected lookup %v to match", query)
		}
	}

	if _, ok := reg.Lookup("bd", []string{"snare"}, testRNG()); ok {
		t.Error("unexpected match for keyword snare")
	}
}

func TestLookupIndexInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(dispatch.NewRecorder())

	first, err := reg.LoadFile("hh", writeDummy(t, dir, "hh_closed.wav"))
	if err != nil {
		t.Fatal(err)
	}

	second, err := reg.LoadFile("hh", writeDummy(t, dir, "hh_open.wav"))
	if err != nil {
		t.Fatal(err)
	}

	got, ok := reg.LookupIndex("hh", 0)
	if !ok || got != first {
		t.Errorf("index 0: got %v want %v", got, first)
	}

	got, ok = reg.LookupIndex("hh", 1)
	if !ok || got != second {
		t.Errorf("index 1: got %v want %v", got, second)
	}

	if _, ok := reg.LookupIndex("hh", 2); ok {
		t.Error("out-of-range index must not resolve")
	}
}

func TestLookupMissingSet(t *testing.T) {
	reg := NewRegistry(dispatch.NewRecorder())

	if _, ok := reg.Lookup("nope", nil, testRNG()); ok {
		t.Error("lookup on unknown set must fail")
	}
}

func TestScanRootUsesDirectoryAsSet(t *testing.T) {
	root := t.TempDir()

	if err := os.MkdirAll(filepath.Join(root, "bd"), 0755); err != nil {
		t.Fatal(err)
	}

	writeDummy(t, filepath.Join(root, "bd"), "one.wav")
	writeDummy(t, filepath.Join(root, "bd"), "two.flac")
	writeDummy(t, root, "loose.wav")

	// non-audio files are skipped
	if err := os.WriteFile(filepath.Join(root, "bd", "readme.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(dispatch.NewRecorder())

	if err := reg.ScanRoot(root, pool.NewBatch(2)); err != nil {
		t.Fatalf("ScanRoot failed: %v", err)
	}

	if reg.Count("bd") != 2 {
		t.Errorf("expected 2 entries in bd, got %d", reg.Count("bd"))
	}

	if reg.Count("loose") != 1 {
		t.Errorf("expected loose file under its stem set, got %d", reg.Count("loose"))
	}
}
