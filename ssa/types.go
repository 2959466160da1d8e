// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ssa defines the typed value vocabulary shared by the frame and
// translate packages: the small set of runtime types a JVM operand can
// carry, and the SSA variable identifiers the translator mints for each
// value it produces. Grounded on rustretto's frontend/src/types.rs Type enum
// and frontend/src/translate.rs's VarId/VarIdGen.
package ssa

import "fmt"

// Type is the translator's runtime type lattice: the primitive machine
// types plus a single catch-all reference type (object and array values are
// both opaque `%ref` pairs at this level; the emitter carries richer typing
// for field/vtable layout separately per spec.md §4.H/I).
type Type int

const (
	TypeInt Type = iota
	TypeLong
	TypeFloat
	TypeDouble
	TypeRef
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeRef:
		return "ref"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// IsWide reports whether a value of this type occupies two local variable
// slots / two stack words, matching classfile.FieldType.IsWide.
func (t Type) IsWide() bool {
	return t == TypeLong || t == TypeDouble
}

// VarID names one SSA value produced somewhere in a method's translation:
// a load, an arithmetic op, a phi, an invocation result. IDs are unique
// within a single method translation.
type VarID struct {
	Type Type
	ID   uint64
}

func (v VarID) String() string {
	return fmt.Sprintf("%%v%d", v.ID)
}

// VarIDGen mints fresh, monotonically increasing VarIDs for one method
// translation, mirroring rustretto's VarIdGen.
type VarIDGen struct {
	next uint64
}

// Gen returns a fresh VarID of the given type.
func (g *VarIDGen) Gen(t Type) VarID {
	id := VarID{Type: t, ID: g.next}
	g.next++
	return id
}

// Bump raises the generator's next id to at least min, so ids minted
// before the generator existed (e.g. a method's parameter variables) never
// collide with ids the generator mints afterward.
func (g *VarIDGen) Bump(min uint64) {
	if g.next < min {
		g.next = min
	}
}
