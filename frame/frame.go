// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frame models the JVM operand stack and local variable array the
// translator threads through abstract interpretation of a method's
// bytecode, per spec.md §4.E. Grounded on rustretto's
// frontend/src/frame.rs StackAndLocals, with locals kept in a slice-backed
// sparse map the way the teacher's exec/vm.go keeps a flat []uint64 local
// slot array rather than a generic map when the index space is small and
// dense.
package frame

import (
	"fmt"

	"github.com/go-interpreter/classc/ssa"
)

// Frame is the abstract-interpretation state threaded through translation
// of a single basic block: the operand stack and the local variable slots
// visible at that point in the method.
type Frame struct {
	Stack  []ssa.Value
	Locals map[int]ssa.Value
}

// New builds the entry frame for a method: an empty stack reserved to
// maxStack capacity, and locals seeded with args starting at slot 0 (long
// and double arguments occupy two consecutive slots, per JVM spec §2.6.1).
func New(maxStack int, args []ssa.Value) *Frame {
	f := &Frame{
		Stack:  make([]ssa.Value, 0, maxStack),
		Locals: make(map[int]ssa.Value, len(args)),
	}
	slot := 0
	for _, arg := range args {
		f.Locals[slot] = arg
		if arg.Type().IsWide() {
			slot += 2
		} else {
			slot++
		}
	}
	return f
}

// NewWithSameShape builds a fresh frame with the same stack depth and
// occupied local slots as f, but with every value replaced by a brand new
// SSA variable of the same type. translate.go calls this once per block to
// seed that block's "incoming" shape before phi reconstruction fills in the
// actual predecessor values (spec.md §4.G).
func (f *Frame) NewWithSameShape(gen *ssa.VarIDGen) *Frame {
	out := &Frame{
		Stack:  make([]ssa.Value, len(f.Stack)),
		Locals: make(map[int]ssa.Value, len(f.Locals)),
	}
	for i, v := range f.Stack {
		out.Stack[i] = ssa.VarValue(gen.Gen(v.Type()))
	}
	for slot, v := range f.Locals {
		out.Locals[slot] = ssa.VarValue(gen.Gen(v.Type()))
	}
	return out
}

// Clone returns a deep-enough copy of f (new backing slice/map, same
// values) so in-place Pop/Push/Store on the copy never mutates f.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Stack:  append([]ssa.Value(nil), f.Stack...),
		Locals: make(map[int]ssa.Value, len(f.Locals)),
	}
	for k, v := range f.Locals {
		out.Locals[k] = v
	}
	return out
}

// Push appends a value to the top of the operand stack.
func (f *Frame) Push(v ssa.Value) {
	f.Stack = append(f.Stack, v)
}

// Pop removes and returns the top of the operand stack. Panics on an empty
// stack: an empty pop means the bytecode's declared MaxStack lied, which
// classfile.Parse would already have let through unchecked -- treating it
// as a translator bug rather than a recoverable error matches rustretto's
// StackAndLocals::pop, which unwraps unconditionally.
func (f *Frame) Pop() ssa.Value {
	n := len(f.Stack)
	if n == 0 {
		panic("frame: pop from empty stack")
	}
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v
}

// PopN removes and returns the top n values of the operand stack, in the
// order they were pushed (bottom-most of the popped group first).
func (f *Frame) PopN(n int) []ssa.Value {
	if n > len(f.Stack) {
		panic(fmt.Sprintf("frame: pop %d from stack of depth %d", n, len(f.Stack)))
	}
	idx := len(f.Stack) - n
	out := append([]ssa.Value(nil), f.Stack[idx:]...)
	f.Stack = f.Stack[:idx]
	return out
}

// Load pushes the value currently held in local slot idx.
func (f *Frame) Load(idx int) {
	v, ok := f.Locals[idx]
	if !ok {
		panic(fmt.Sprintf("frame: local slot %d is empty", idx))
	}
	f.Push(v)
}

// Store pops the top of the operand stack into local slot idx.
func (f *Frame) Store(idx int) {
	f.Locals[idx] = f.Pop()
}

// Depth returns the current operand stack depth.
func (f *Frame) Depth() int { return len(f.Stack) }
