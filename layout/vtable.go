// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout

import (
	"fmt"
	"sync"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classgraph"
)

// InvalidTargetError reports an attempt to build a vtable or field layout
// for a class that cannot carry one (an array type has no declared
// methods or fields of its own to dispatch against).
type InvalidTargetError string

func (e InvalidTargetError) Error() string {
	return fmt.Sprintf("layout: %s is not a valid vtable/field-layout target", string(e))
}

type methodKey struct {
	name       string
	descriptor string
}

// DispatchTarget is one vtable entry: the method it resolves, the class
// currently implementing it, and the slot range it has occupied across
// the build (SlotLower is its original slot; SlotUpper advances only when
// an override needs a second slot to keep an interface sub-table's older
// offset valid, per spec.md §4.I step 3).
type DispatchTarget struct {
	Name       string
	Descriptor classfile.MethodDescriptor
	ClassName  string
	SlotLower  int
	SlotUpper  int
}

// VTable is a class's fully resolved dispatch table, built per spec.md
// §4.I's superset layout: inherited methods first, then each
// not-yet-embedded interface's sub-table, then the class's own overrides
// and new methods.
type VTable struct {
	keyIndex   map[methodKey]int
	targets    []*DispatchTarget
	slots      []int // slot index -> index into targets
	Interfaces map[string]int
	// InterfaceOrder records interface names in the order they were first
	// embedded, so emission (spec.md §5: "declaration order is insertion
	// order") does not depend on Go's unordered map iteration.
	InterfaceOrder []string
}

// MethodCount is the number of dispatch slots -- the emitter's leading
// method-count header word (spec.md §4.K).
func (v *VTable) MethodCount() int { return len(v.slots) }

// Method returns the DispatchTarget bound to slot i.
func (v *VTable) Method(i int) *DispatchTarget {
	return v.targets[v.slots[i]]
}

// Get resolves a (name, descriptor) pair to its current dispatch target.
func (v *VTable) Get(name string, descriptor classfile.MethodDescriptor) (*DispatchTarget, bool) {
	idx, ok := v.keyIndex[methodKey{name: name, descriptor: descriptor.String()}]
	if !ok {
		return nil, false
	}
	return v.targets[idx], true
}

// VTables memoizes VTable per class name, built lazily from a
// classgraph.Graph, guarded by a plain mutex (spec.md §5).
type VTables struct {
	graph *classgraph.Graph
	mu    sync.Mutex
	cache map[string]*VTable
}

// NewVTables returns a cache backed by graph.
func NewVTables(graph *classgraph.Graph) *VTables {
	return &VTables{graph: graph, cache: make(map[string]*VTable)}
}

// Get returns the VTable for name, building and caching it on first use.
func (m *VTables) Get(name string) (*VTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.cache[name]; ok {
		return v, nil
	}
	v := &VTable{keyIndex: make(map[methodKey]int), Interfaces: make(map[string]int)}
	if err := m.build(name, v, 0); err != nil {
		return nil, err
	}
	m.cache[name] = v
	logger.Debugw("built vtable", "class", name, "methods", v.MethodCount(), "interfaces", len(v.Interfaces))
	return v, nil
}

// build implements spec.md §4.I: recurse into the superclass at offset 0,
// embed each not-yet-covered interface as a sub-table, then fold in this
// class's own non-static, non-<init> methods as new slots or overrides.
func (m *VTables) build(name string, v *VTable, methodOffset int) error {
	cls, ok := m.graph.Get(name)
	if !ok {
		return fmt.Errorf("layout: class %s not present in class graph", name)
	}
	if cls.File == nil {
		return InvalidTargetError(name)
	}
	cf := cls.File
	isInterface := cf.AccessFlags.Has(classfile.AccInterface)

	if !isInterface && cf.SuperClass != "" {
		if err := m.build(cf.SuperClass, v, methodOffset); err != nil {
			return err
		}
	}

	for _, ifaceName := range cf.Interfaces {
		if offset, embedded := v.Interfaces[ifaceName]; embedded && offset >= methodOffset {
			continue
		}
		subOffset := len(v.slots)
		if err := m.build(ifaceName, v, subOffset); err != nil {
			return err
		}
		v.Interfaces[ifaceName] = subOffset
		v.InterfaceOrder = append(v.InterfaceOrder, ifaceName)
	}

	for _, method := range cf.Methods {
		if method.AccessFlags.Has(classfile.AccStatic) || method.Name == "<init>" {
			continue
		}
		key := methodKey{name: method.Name, descriptor: method.Descriptor.String()}

		entryIdx, exists := v.keyIndex[key]
		if !exists {
			entryIdx = len(v.targets)
			v.keyIndex[key] = entryIdx
			slot := len(v.slots)
			v.targets = append(v.targets, &DispatchTarget{
				Name: method.Name, Descriptor: method.Descriptor, ClassName: cf.ThisClass,
				SlotLower: slot, SlotUpper: slot,
			})
			v.slots = append(v.slots, entryIdx)
			continue
		}

		target := v.targets[entryIdx]
		if target.SlotUpper < methodOffset {
			target.SlotUpper = len(v.slots)
			v.slots = append(v.slots, entryIdx)
		}
		if !isInterface {
			target.ClassName = cf.ThisClass
		}
	}

	return nil
}
