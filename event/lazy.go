// ABOUTME: Lazy arithmetic trees resolved against the global variable store
// ABOUTME: Folds + - * / % ^ min max round floor ceil on each evaluation

package event

import (
	"fmt"
	"math"
)

// Resolver looks up global identifiers at evaluation time.
type Resolver interface {
	Lookup(name string) (float64, bool)
}

// ArithOp is an operator in a lazy arithmetic tree.
type ArithOp string

const (
	OpAdd   ArithOp = "+"
	OpSub   ArithOp = "-"
	OpMul   ArithOp = "*"
	OpDiv   ArithOp = "/"
	OpMod   ArithOp = "%"
	OpPow   ArithOp = "^"
	OpMin   ArithOp = "min"
	OpMax   ArithOp = "max"
	OpRound ArithOp = "round"
	OpFloor ArithOp = "floor"
	OpCeil  ArithOp = "ceil"
)

// LazyNode is one node of a lazy arithmetic expression. Exactly one of the
// three content fields is meaningful: a literal, an identifier, or an
// operator with operands.
type LazyNode struct {
	Literal *float64
	Ident   string
	Op      ArithOp
	Args    []*LazyNode
}

// Lit builds a literal leaf.
func Lit(v float64) *LazyNode {
	return &LazyNode{Literal: &v}
}

// Ref builds an identifier leaf.
func Ref(name string) *LazyNode {
	return &LazyNode{Ident: name}
}

// Apply builds an operator node.
func Apply(op ArithOp, args ...*LazyNode) *LazyNode {
	return &LazyNode{Op: op, Args: args}
}

// Resolve folds the tree, looking identifiers up in the resolver.
// Unknown identifiers resolve to zero; numeric kinds are already widened to
// float64 at the store boundary.
func (n *LazyNode) Resolve(res Resolver) (float64, error) {
	switch {
	case n == nil:
		return 0, nil
	case n.Literal != nil:
		return *n.Literal, nil
	case n.Ident != "":
		if res != nil {
			if v, ok := res.Lookup(n.Ident); ok {
				return v, nil
			}
		}

		return 0, nil
	}

	args := make([]float64, len(n.Args))
	for i, a := range n.Args {
		v, err := a.Resolve(res)
		if err != nil {
			return 0, err
		}

		args[i] = v
	}

	return foldOp(n.Op, args)
}

func foldOp(op ArithOp, args []float64) (float64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("operator %q needs at least one operand", op)
	}

	acc := args[0]

	switch op {
	case OpAdd:
		for _, v := range args[1:] {
			acc += v
		}
	case OpSub:
		for _, v := range args[1:] {
			acc -= v
		}
	case OpMul:
		for _, v := range args[1:] {
			acc *= v
		}
	case OpDiv:
		for _, v := range args[1:] {
			if v == 0 {
				return 0, fmt.Errorf("division by zero")
			}

			acc /= v
		}
	case OpMod:
		for _, v := range args[1:] {
			if v == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}

			acc = math.Mod(acc, v)
		}
	case OpPow:
		for _, v := range args[1:] {
			acc = math.Pow(acc, v)
		}
	case OpMin:
		for _, v := range args[1:] {
			acc = math.Min(acc, v)
		}
	case OpMax:
		for _, v := range args[1:] {
			acc = math.Max(acc, v)
		}
	case OpRound:
		acc = math.Round(acc)
	case OpFloor:
		acc = math.Floor(acc)
	case OpCeil:
		acc = math.Ceil(acc)
	default:
		return 0, fmt.Errorf("unknown operator %q", op)
	}

	return acc, nil
}
