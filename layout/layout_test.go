// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package layout_test

import (
	"bytes"
	"testing"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classgraph"
	"github.com/go-interpreter/classc/classloader"
	"github.com/go-interpreter/classc/layout"
)

// poolBuilder assembles a minimal class file's constant pool entry-by-entry,
// handing back 1-based indices the way javac's own pool builder would.
type poolBuilder struct {
	entries [][]byte
}

func u16(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

func (b *poolBuilder) utf8(s string) uint16 {
	entry := append([]byte{1}, u16(uint16(len(s)))...)
	entry = append(entry, s...)
	b.entries = append(b.entries, entry)
	return uint16(len(b.entries))
}

func (b *poolBuilder) class(name string) uint16 {
	nameIdx := b.utf8(name)
	b.entries = append(b.entries, append([]byte{7}, u16(nameIdx)...))
	return uint16(len(b.entries))
}

type fieldSpec struct {
	name, descriptor string
	static           bool
}

type methodSpec struct {
	name, descriptor string
	static           bool
}

// buildClass assembles a class file with the given fields and methods (all
// bodiless: no Code attribute, which layout never needs).
func buildClass(name, super string, interfaces []string, isInterface bool, fields []fieldSpec, methods []methodSpec) []byte {
	pb := &poolBuilder{}
	nameIdx := pb.class(name)
	var superIdx uint16
	if super != "" {
		superIdx = pb.class(super)
	}
	ifaceIdxs := make([]uint16, len(interfaces))
	for i, iface := range interfaces {
		ifaceIdxs[i] = pb.class(iface)
	}

	type fieldRow struct {
		accessFlags uint16
		nameIdx     uint16
		descIdx     uint16
	}
	fieldRows := make([]fieldRow, len(fields))
	for i, f := range fields {
		flags := uint16(0x0001)
		if f.static {
			flags |= 0x0008
		}
		fieldRows[i] = fieldRow{accessFlags: flags, nameIdx: pb.utf8(f.name), descIdx: pb.utf8(f.descriptor)}
	}

	type methodRow struct {
		accessFlags uint16
		nameIdx     uint16
		descIdx     uint16
	}
	methodRows := make([]methodRow, len(methods))
	for i, m := range methods {
		flags := uint16(0x0001)
		if m.static {
			flags |= 0x0008
		}
		if isInterface {
			flags |= 0x0400 // abstract
		}
		methodRows[i] = methodRow{accessFlags: flags, nameIdx: pb.utf8(m.name), descIdx: pb.utf8(m.descriptor)}
	}

	var buf []byte
	buf = append(buf, 0xCA, 0xFE, 0xBA, 0xBE)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(52)...)

	buf = append(buf, u16(uint16(len(pb.entries)+1))...)
	for _, e := range pb.entries {
		buf = append(buf, e...)
	}

	accessFlags := uint16(0x0021)
	if isInterface {
		accessFlags = 0x0601 // interface | abstract | public
	}
	buf = append(buf, u16(accessFlags)...)
	buf = append(buf, u16(nameIdx)...)
	buf = append(buf, u16(superIdx)...)

	buf = append(buf, u16(uint16(len(ifaceIdxs)))...)
	for _, idx := range ifaceIdxs {
		buf = append(buf, u16(idx)...)
	}

	buf = append(buf, u16(uint16(len(fieldRows)))...)
	for _, f := range fieldRows {
		buf = append(buf, u16(f.accessFlags)...)
		buf = append(buf, u16(f.nameIdx)...)
		buf = append(buf, u16(f.descIdx)...)
		buf = append(buf, u16(0)...) // no attributes
	}

	buf = append(buf, u16(uint16(len(methodRows)))...)
	for _, m := range methodRows {
		buf = append(buf, u16(m.accessFlags)...)
		buf = append(buf, u16(m.nameIdx)...)
		buf = append(buf, u16(m.descIdx)...)
		buf = append(buf, u16(0)...) // no attributes
	}

	buf = append(buf, u16(0)...) // class attributes
	return buf
}

type mapLoader map[string][]byte

func (m mapLoader) Load(name string) (*classloader.Class, error) {
	raw, ok := m[name]
	if !ok {
		return nil, classloader.ClassNotFoundError(name)
	}
	cf, err := classfile.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return &classloader.Class{File: cf}, nil
}

func buildGraph(t *testing.T, loader mapLoader, rootName string) *classgraph.Graph {
	t.Helper()
	rootCF, err := classfile.Parse(bytes.NewReader(loader[rootName]))
	if err != nil {
		t.Fatal(err)
	}
	g, err := classgraph.Build(&classloader.Class{File: rootCF}, loader)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestFieldLayoutInheritance(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, false, nil, nil),
		"Base":             buildClass("Base", "java/lang/Object", nil, false, []fieldSpec{{name: "x", descriptor: "I"}}, nil),
		"Derived":          buildClass("Derived", "Base", nil, false, []fieldSpec{{name: "y", descriptor: "J"}}, nil),
	}
	g := buildGraph(t, loader, "Derived")

	layouts := layout.NewFieldLayouts(g)
	l, err := layouts.Get("Derived")
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Slots) != 2 {
		t.Fatalf("got %d slots, want 2 (inherited x, own y), slots=%+v", len(l.Slots), l.Slots)
	}
	if l.Slots[0].Name != "x" || l.Slots[0].OwnerClass != "Base" {
		t.Fatalf("slot 0 = %+v, want inherited x from Base", l.Slots[0])
	}
	if l.Slots[1].Name != "y" || l.Slots[1].OwnerClass != "Derived" {
		t.Fatalf("slot 1 = %+v, want own y", l.Slots[1])
	}

	idx, ok := l.Offset("x", classfile.FieldType{Kind: classfile.KindBase, Base: classfile.BaseInt})
	if !ok || idx != 0 {
		t.Fatalf("Offset(x) = %d,%v want 0,true", idx, ok)
	}
}

func TestFieldLayoutSkipsStatics(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, false, nil, nil),
		"Main": buildClass("Main", "java/lang/Object", nil, false, []fieldSpec{
			{name: "instanceField", descriptor: "I"},
			{name: "staticField", descriptor: "I", static: true},
		}, nil),
	}
	g := buildGraph(t, loader, "Main")
	layouts := layout.NewFieldLayouts(g)
	l, err := layouts.Get("Main")
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Slots) != 1 || l.Slots[0].Name != "instanceField" {
		t.Fatalf("got %+v, want only instanceField", l.Slots)
	}
}

func TestVTableInheritedAndOverride(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, false, nil, nil),
		"Base": buildClass("Base", "java/lang/Object", nil, false, nil, []methodSpec{
			{name: "greet", descriptor: "()V"},
			{name: "<init>", descriptor: "()V"},
		}),
		"Derived": buildClass("Derived", "Base", nil, false, nil, []methodSpec{
			{name: "greet", descriptor: "()V"}, // override
			{name: "extra", descriptor: "()I"},
		}),
	}
	g := buildGraph(t, loader, "Derived")
	vtables := layout.NewVTables(g)
	vt, err := vtables.Get("Derived")
	if err != nil {
		t.Fatal(err)
	}
	if vt.MethodCount() != 2 {
		t.Fatalf("got %d methods, want 2 (greet, extra; <init> excluded)", vt.MethodCount())
	}
	target, ok := vt.Get("greet", mustDescriptor(t, "()V"))
	if !ok {
		t.Fatal("expected greet to resolve")
	}
	if target.ClassName != "Derived" {
		t.Fatalf("greet implementer = %s, want Derived (override)", target.ClassName)
	}
	if target.SlotLower != 0 {
		t.Fatalf("greet slot = %d, want 0 (inherited from Base)", target.SlotLower)
	}
}

func TestVTableInterfaceSubTable(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, false, nil, nil),
		"Greeter": buildClass("Greeter", "", nil, true, nil, []methodSpec{
			{name: "greet", descriptor: "()V"},
		}),
		"Main": buildClass("Main", "java/lang/Object", []string{"Greeter"}, false, nil, []methodSpec{
			{name: "greet", descriptor: "()V"},
		}),
	}
	g := buildGraph(t, loader, "Main")
	vtables := layout.NewVTables(g)
	vt, err := vtables.Get("Main")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := vt.Interfaces["Greeter"]; !ok {
		t.Fatalf("expected an embedded Greeter sub-table, got %+v", vt.Interfaces)
	}
	if len(vt.InterfaceOrder) != 1 || vt.InterfaceOrder[0] != "Greeter" {
		t.Fatalf("InterfaceOrder = %v, want [Greeter]", vt.InterfaceOrder)
	}
}

func TestVTableArrayTargetFails(t *testing.T) {
	loader := mapLoader{"java/lang/Object": buildClass("java/lang/Object", "", nil, false, nil, nil)}
	realGraph := buildGraph(t, loader, "java/lang/Object")
	vtables := layout.NewVTables(realGraph)
	if _, err := vtables.Get("[I"); err == nil {
		t.Fatal("expected an error resolving a class not present in the graph")
	}
}

func mustDescriptor(t *testing.T, s string) classfile.MethodDescriptor {
	t.Helper()
	md, err := classfile.ParseMethodDescriptor(s)
	if err != nil {
		t.Fatal(err)
	}
	return md
}
