// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package layout computes the struct-field layout and virtual dispatch
// table (vtable) shape for every class reachable from a compiled root,
// memoized per class name behind a mutex (spec.md §4.H/§4.I). Grounded on
// rustretto's compiler/src/layout/fields.rs (FieldLayoutMap) and
// compiler/backend/src/layout/vtable.rs (VTableMap), re-expressed with a
// plain ordered slice + index map rather than indexmap::IndexMap (not in
// this pack's dependency surface), matching classgraph's
// sync.Mutex/RWMutex-guarded cache idiom.
package layout

import (
	"fmt"
	"sync"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classgraph"
)

// FieldSlot is one field occupying a struct slot, in declaration order
// with inherited fields first.
type FieldSlot struct {
	Name       string
	Type       classfile.FieldType
	OwnerClass string
}

// FieldLayout is the ordered, inheritance-flattened list of a class's
// non-static fields: superclass fields first, then the class's own, in
// declared order. The index of a FieldSlot in Slots is its struct offset
// (spec.md §4.H: classc does not reorder fields for packing).
type FieldLayout struct {
	Slots []FieldSlot
	index map[fieldKey]int
}

type fieldKey struct {
	name       string
	descriptor string
}

// Offset returns the slot index of a declared field, or (-1, false) if no
// field of that name and type is visible on this class.
func (l *FieldLayout) Offset(name string, ft classfile.FieldType) (int, bool) {
	idx, ok := l.index[fieldKey{name: name, descriptor: ft.Descriptor()}]
	if !ok {
		return -1, false
	}
	return idx, true
}

// FieldLayouts memoizes FieldLayout per class name, built lazily from a
// classgraph.Graph.
type FieldLayouts struct {
	graph *classgraph.Graph
	mu    sync.Mutex
	cache map[string]*FieldLayout
}

// NewFieldLayouts returns a cache backed by graph.
func NewFieldLayouts(graph *classgraph.Graph) *FieldLayouts {
	return &FieldLayouts{graph: graph, cache: make(map[string]*FieldLayout)}
}

// Get returns the FieldLayout for name, building and caching it on first
// use by walking the superclass chain.
func (f *FieldLayouts) Get(name string) (*FieldLayout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.cache[name]; ok {
		return l, nil
	}
	l := &FieldLayout{index: make(map[fieldKey]int)}
	if err := f.build(name, l); err != nil {
		return nil, err
	}
	f.cache[name] = l
	logger.Debugw("built field layout", "class", name, "slots", len(l.Slots))
	return l, nil
}

func (f *FieldLayouts) build(name string, l *FieldLayout) error {
	cls, ok := f.graph.Get(name)
	if !ok {
		return fmt.Errorf("layout: class %s not present in class graph", name)
	}
	if cls.File == nil {
		return InvalidTargetError(name)
	}
	cf := cls.File

	if cf.SuperClass != "" {
		if err := f.build(cf.SuperClass, l); err != nil {
			return err
		}
	}

	for _, field := range cf.Fields {
		if field.AccessFlags.Has(classfile.AccStatic) {
			continue
		}
		key := fieldKey{name: field.Name, descriptor: field.Descriptor.Descriptor()}
		if _, exists := l.index[key]; exists {
			continue
		}
		l.index[key] = len(l.Slots)
		l.Slots = append(l.Slots, FieldSlot{Name: field.Name, Type: field.Descriptor, OwnerClass: cf.ThisClass})
	}
	return nil
}
