// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssa

import "fmt"

// ConstKind discriminates the handful of constant shapes the translator
// pushes directly onto the operand stack (iconst/lconst/aconst_null and
// ldc of an int/long/float/double).
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstLong
	ConstFloat
	ConstDouble
	ConstNull
)

// Const is an immediate value materialized by the translator without a
// Statement, mirroring rustretto's Const enum.
type Const struct {
	Kind   ConstKind
	Int    int32
	Long   int64
	Float  float32
	Double float64
}

// Type returns the runtime type this constant carries.
func (c Const) Type() Type {
	switch c.Kind {
	case ConstInt:
		return TypeInt
	case ConstLong:
		return TypeLong
	case ConstFloat:
		return TypeFloat
	case ConstDouble:
		return TypeDouble
	case ConstNull:
		return TypeRef
	default:
		panic(fmt.Sprintf("ssa: unknown const kind %d", c.Kind))
	}
}

func (c Const) String() string {
	switch c.Kind {
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstLong:
		return fmt.Sprintf("%d", c.Long)
	case ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	case ConstDouble:
		return fmt.Sprintf("%g", c.Double)
	case ConstNull:
		return "null"
	default:
		return "<invalid const>"
	}
}

// ValueKind discriminates the two shapes a Value can take.
type ValueKind int

const (
	ValueVar ValueKind = iota
	ValueConst
)

// Value is either a reference to a previously-assigned VarID or an
// immediate Const: the thing statements, terminators and phi edges operate
// on. Mirrors rustretto's Op enum (named Value here since "Op" would clash
// with bytecode Opcode elsewhere in this module).
type Value struct {
	Kind  ValueKind
	Var   VarID
	Const Const
}

// VarValue wraps a VarID as a Value.
func VarValue(v VarID) Value { return Value{Kind: ValueVar, Var: v} }

// ConstValue wraps a Const as a Value.
func ConstValue(c Const) Value { return Value{Kind: ValueConst, Const: c} }

// Type returns the runtime type this value carries.
func (v Value) Type() Type {
	if v.Kind == ValueVar {
		return v.Var.Type
	}
	return v.Const.Type()
}

func (v Value) String() string {
	if v.Kind == ValueVar {
		return v.Var.String()
	}
	return v.Const.String()
}
