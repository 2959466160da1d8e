// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classgraph"
	"github.com/go-interpreter/classc/classloader"
	"github.com/go-interpreter/classc/emit"
)

// poolBuilder assembles a minimal class file's constant pool entry-by-entry,
// handing back 1-based indices the way javac's own pool builder would.
type poolBuilder struct {
	entries [][]byte
}

func u16(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }
func u32(v uint32) []byte { return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)} }

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

func (b *poolBuilder) stringConst(text string) uint16 {
	utf8Idx := b.utf8(text)
	b.entries = append(b.entries, append([]byte{8}, u16(utf8Idx)...))
	return uint16(len(b.entries))
}

type fieldSpec struct {
	name, descriptor string
	static           bool
}

// methodSpec describes one method: bytecode nil means native (if native is
// set) or abstract (if abstract is set); otherwise it carries a Code
// attribute with the given bytecode.
type methodSpec struct {
	name, descriptor    string
	static, native, abs bool
	maxStack, maxLocals uint16
	bytecode            []byte
}

// buildClass assembles a class file with the given fields and methods.
func buildClass(name, super string, interfaces []string, fields []fieldSpec, methods []methodSpec) []byte {
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

	codeAttrNameIdx := pb.utf8("Code")

	type methodRow struct {
		accessFlags uint16
		nameIdx     uint16
		descIdx     uint16
		code        []byte // nil if native/abstract
		maxStack    uint16
		maxLocals   uint16
	}
	methodRows := make([]methodRow, len(methods))
	for i, m := range methods {
		flags := uint16(0x0001)
		if m.static {
			flags |= 0x0008
		}
		if m.native {
			flags |= 0x0100
		}
		if m.abs {
			flags |= 0x0400
		}
		methodRows[i] = methodRow{
			accessFlags: flags,
			nameIdx:     pb.utf8(m.name),
			descIdx:     pb.utf8(m.descriptor),
			code:        m.bytecode,
			maxStack:    m.maxStack,
			maxLocals:   m.maxLocals,
		}
	}

	var buf bytes.Buffer
	buf.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	buf.Write(u16(0))
	buf.Write(u16(52))

	buf.Write(u16(uint16(len(pb.entries) + 1)))
	for _, e := range pb.entries {
		buf.Write(e)
	}

	buf.Write(u16(0x0021)) // public | super
	buf.Write(u16(nameIdx))
	buf.Write(u16(superIdx))

	buf.Write(u16(uint16(len(ifaceIdxs))))
	for _, idx := range ifaceIdxs {
		buf.Write(u16(idx))
	}

	buf.Write(u16(uint16(len(fieldRows))))
	for _, f := range fieldRows {
		buf.Write(u16(f.accessFlags))
		buf.Write(u16(f.nameIdx))
		buf.Write(u16(f.descIdx))
		buf.Write(u16(0))
	}

	buf.Write(u16(uint16(len(methodRows))))
	for _, m := range methodRows {
		buf.Write(u16(m.accessFlags))
		buf.Write(u16(m.nameIdx))
		buf.Write(u16(m.descIdx))
		if m.code == nil {
			buf.Write(u16(0))
			continue
		}
		buf.Write(u16(1))
		var code bytes.Buffer
		code.Write(u16(m.maxStack))
		code.Write(u16(m.maxLocals))
		code.Write(u32(uint32(len(m.code))))
		code.Write(m.code)
		code.Write(u16(0)) // exception_table_length
		code.Write(u16(0)) // attributes_count

		buf.Write(u16(codeAttrNameIdx))
		buf.Write(u32(uint32(code.Len())))
		buf.Write(code.Bytes())
	}

	buf.Write(u16(0)) // class attributes
	return buf.Bytes()
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

func TestEmitClassPreludeShape(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, nil, nil),
		"Main": buildClass("Main", "java/lang/Object", nil, nil, []methodSpec{
			{name: "<init>", descriptor: "()V", maxStack: 1, maxLocals: 1, bytecode: []byte{0xb1}}, // return
		}),
	}
	g := buildGraph(t, loader, "Main")
	gen := emit.NewGenerator(g)
	out, err := gen.EmitClass("Main")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"target triple",
		"target datalayout",
		"%ref = type { i8*, i8* }",
		"declare %ref @_Jrt_new(i64, i8*)",
		"declare void @_Jrt_throw(%ref) noreturn",
		"declare %ref @_Jrt_ldstr(i32, i8*)",
		"declare void @_Jrt_abstract() noreturn",
		"declare i32 @_Jrt_start(i32, i8**, void (%ref)*)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("prelude missing %q; got:\n%s", want, out)
		}
	}
}

func TestEmitClassStringConstant(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, nil, nil),
		"Main": buildClass("Main", "java/lang/Object", nil, nil, []methodSpec{
			{name: "<init>", descriptor: "()V", maxStack: 1, maxLocals: 1, bytecode: []byte{0xb1}},
		}),
	}
	g := buildGraph(t, loader, "Main")
	gen := emit.NewGenerator(g)
	out, err := gen.EmitClass("Main")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "internal constant") {
		// no string constants in this fixture's pool; this assertion just
		// guards against the loop over Indices() panicking on a
		// string-free pool; string constants are exercised by the ldc
		// scenarios in the root classc_test.go.
		t.Fatalf("unexpected string constant rendered from a pool with none:\n%s", out)
	}
}

func TestEmitClassStaticMethodBody(t *testing.T) {
	// static int calc() { return 0; }
	bytecode := []byte{0x03, 0xac} // iconst_0; ireturn
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, nil, nil),
		"Main": buildClass("Main", "java/lang/Object", nil, nil, []methodSpec{
			{name: "calc", descriptor: "()I", static: true, maxStack: 1, maxLocals: 0, bytecode: bytecode},
		}),
	}
	g := buildGraph(t, loader, "Main")
	gen := emit.NewGenerator(g)
	out, err := gen.EmitClass("Main")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "define i32 @") {
		t.Fatalf("expected a static i32-returning function definition; got:\n%s", out)
	}
	if !strings.Contains(out, "ret i32") {
		t.Fatalf("expected a ret i32 terminator; got:\n%s", out)
	}
}

func TestEmitClassNativeMethodDeclared(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, nil, nil),
		"Main": buildClass("Main", "java/lang/Object", nil, nil, []methodSpec{
			{name: "nativeCalc", descriptor: "()I", static: true, native: true},
		}),
	}
	g := buildGraph(t, loader, "Main")
	gen := emit.NewGenerator(g)
	out, err := gen.EmitClass("Main")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "declare i32 @") {
		t.Fatalf("expected a native method rendered as a declare; got:\n%s", out)
	}
}

func TestEmitClassAbstractMethodTraps(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, nil, nil),
		"Shape": buildClass("Shape", "java/lang/Object", nil, nil, []methodSpec{
			{name: "area", descriptor: "()I", abs: true},
		}),
	}
	g := buildGraph(t, loader, "Shape")
	gen := emit.NewGenerator(g)
	out, err := gen.EmitClass("Shape")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "call void @_Jrt_abstract()") || !strings.Contains(out, "unreachable") {
		t.Fatalf("expected an abstract method to trap via _Jrt_abstract; got:\n%s", out)
	}
}

func TestEmitClassVirtualDispatch(t *testing.T) {
	// invokevirtual Main.helper()I ; ireturn, against a receiver already
	// sitting in local 0 (the implicit `this`).
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, nil, nil),
	}

	// Build Main with a helper() method and a caller that invokes it
	// virtually on `this`.
	mainPB := &poolBuilder{}
	mainNameIdx := mainPB.class("Main")
	superNameIdx := mainPB.class("java/lang/Object")
	helperNameUtf8 := mainPB.utf8("helper")
	helperDescUtf8 := mainPB.utf8("()I")
	classRefIdx := mainPB.class("Main")
	nameAndTypeIdx := uint16(len(mainPB.entries) + 1)
	mainPB.entries = append(mainPB.entries, append(append([]byte{12}, u16(helperNameUtf8)...), u16(helperDescUtf8)...))
	methodRefIdx := uint16(len(mainPB.entries) + 1)
	mainPB.entries = append(mainPB.entries, append(append([]byte{10}, u16(classRefIdx)...), u16(nameAndTypeIdx)...))
	codeAttrNameIdx := mainPB.utf8("Code")
	helperNameIdx2 := mainPB.utf8("helper")
	helperDescIdx2 := mainPB.utf8("()I")
	callerNameIdx := mainPB.utf8("caller")
	callerDescIdx := mainPB.utf8("()I")

	var buf bytes.Buffer
	buf.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	buf.Write(u16(0))
	buf.Write(u16(52))
	buf.Write(u16(uint16(len(mainPB.entries) + 1)))
	for _, e := range mainPB.entries {
		buf.Write(e)
	}
	buf.Write(u16(0x0021))
	buf.Write(u16(mainNameIdx))
	buf.Write(u16(superNameIdx))
	buf.Write(u16(0)) // interfaces
	buf.Write(u16(0)) // fields

	buf.Write(u16(2)) // methods_count

	// helper(): iconst_0; ireturn
	buf.Write(u16(0x0001))
	buf.Write(u16(helperNameIdx2))
	buf.Write(u16(helperDescIdx2))
	buf.Write(u16(1))
	{
		var code bytes.Buffer
		bc := []byte{0x03, 0xac}
		code.Write(u16(1))
		code.Write(u16(1))
		code.Write(u32(uint32(len(bc))))
		code.Write(bc)
		code.Write(u16(0))
		code.Write(u16(0))
		buf.Write(u16(codeAttrNameIdx))
		buf.Write(u32(uint32(code.Len())))
		buf.Write(code.Bytes())
	}

	// caller(): aload_0; invokevirtual #methodRefIdx; ireturn
	buf.Write(u16(0x0001))
	buf.Write(u16(callerNameIdx))
	buf.Write(u16(callerDescIdx))
	buf.Write(u16(1))
	{
		var code bytes.Buffer
		bc := []byte{0x2a, 0xb6, byte(methodRefIdx >> 8), byte(methodRefIdx), 0xac}
		code.Write(u16(1))
		code.Write(u16(1))
		code.Write(u32(uint32(len(bc))))
		code.Write(bc)
		code.Write(u16(0))
		code.Write(u16(0))
		buf.Write(u16(codeAttrNameIdx))
		buf.Write(u32(uint32(code.Len())))
		buf.Write(code.Bytes())
	}
	buf.Write(u16(0))

	loader["Main"] = buf.Bytes()

	g := buildGraph(t, loader, "Main")
	gen := emit.NewGenerator(g)
	out, err := gen.EmitClass("Main")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "extractvalue %ref") {
		t.Fatalf("expected virtual dispatch to extract the vtable pointer; got:\n%s", out)
	}
	if !strings.Contains(out, "call i32") {
		t.Fatalf("expected an indirect i32-returning call; got:\n%s", out)
	}
}

func TestEmitClassNewObject(t *testing.T) {
	// new Main; invokespecial <init>; areturn-less, just pop via return.
	pb := &poolBuilder{}
	mainNameIdx := pb.class("Main")
	superNameIdx := pb.class("java/lang/Object")
	classRefIdx := pb.class("Main")
	initNameUtf8 := pb.utf8("<init>")
	initDescUtf8 := pb.utf8("()V")
	nameAndTypeIdx := uint16(len(pb.entries) + 1)
	pb.entries = append(pb.entries, append(append([]byte{12}, u16(initNameUtf8)...), u16(initDescUtf8)...))
	methodRefIdx := uint16(len(pb.entries) + 1)
	pb.entries = append(pb.entries, append(append([]byte{10}, u16(classRefIdx)...), u16(nameAndTypeIdx)...))
	codeAttrNameIdx := pb.utf8("Code")
	initNameIdx2 := pb.utf8("<init>")
	initDescIdx2 := pb.utf8("()V")
	makeNameIdx := pb.utf8("make")
	makeDescIdx := pb.utf8("()V")

	var buf bytes.Buffer
	buf.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	buf.Write(u16(0))
	buf.Write(u16(52))
	buf.Write(u16(uint16(len(pb.entries) + 1)))
	for _, e := range pb.entries {
		buf.Write(e)
	}
	buf.Write(u16(0x0021))
	buf.Write(u16(mainNameIdx))
	buf.Write(u16(superNameIdx))
	buf.Write(u16(0))
	buf.Write(u16(0))

	buf.Write(u16(2))

	// <init>(): return
	buf.Write(u16(0x0001))
	buf.Write(u16(initNameIdx2))
	buf.Write(u16(initDescIdx2))
	buf.Write(u16(1))
	{
		var code bytes.Buffer
		bc := []byte{0xb1}
		code.Write(u16(1))
		code.Write(u16(1))
		code.Write(u32(uint32(len(bc))))
		code.Write(bc)
		code.Write(u16(0))
		code.Write(u16(0))
		buf.Write(u16(codeAttrNameIdx))
		buf.Write(u32(uint32(code.Len())))
		buf.Write(code.Bytes())
	}

	// static void make(): new Main; invokespecial <init>; return
	buf.Write(u16(0x0009))
	buf.Write(u16(makeNameIdx))
	buf.Write(u16(makeDescIdx))
	buf.Write(u16(1))
	{
		var code bytes.Buffer
		bc := []byte{
			0xbb, byte(classRefIdx >> 8), byte(classRefIdx), // new Main
			0x59,                                              // dup
			0xb7, byte(methodRefIdx >> 8), byte(methodRefIdx), // invokespecial <init>
			0xb1, // return
		}
		code.Write(u16(2))
		code.Write(u16(2))
		code.Write(u32(uint32(len(bc))))
		code.Write(bc)
		code.Write(u16(0))
		code.Write(u16(0))
		buf.Write(u16(codeAttrNameIdx))
		buf.Write(u32(uint32(code.Len())))
		buf.Write(code.Bytes())
	}
	buf.Write(u16(0))

	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, nil, nil),
		"Main":             buf.Bytes(),
	}
	g := buildGraph(t, loader, "Main")
	gen := emit.NewGenerator(g)
	out, err := gen.EmitClass("Main")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "@_Jrt_new(i64") {
		t.Fatalf("expected object allocation via _Jrt_new; got:\n%s", out)
	}
}

func TestEmitMainShim(t *testing.T) {
	loader := mapLoader{
		"java/lang/Object": buildClass("java/lang/Object", "", nil, nil, nil),
		"App": buildClass("App", "java/lang/Object", nil, nil, []methodSpec{
			{name: "main", descriptor: "([Ljava/lang/String;)V", static: true, maxStack: 0, maxLocals: 1, bytecode: []byte{0xb1}},
		}),
	}
	g := buildGraph(t, loader, "App")
	gen := emit.NewGenerator(g)
	emit.EmitMain("App")
	defer emit.EmitMain("")
	out, err := gen.EmitClass("App")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "define i32 @main(i32 %argc, i8** %argv)") {
		t.Fatalf("expected a main(argc, argv) shim; got:\n%s", out)
	}
	if !strings.Contains(out, "@_Jrt_start(i32 %argc, i8** %argv, void (%ref)* @") {
		t.Fatalf("expected the shim to hand off to _Jrt_start; got:\n%s", out)
	}
}
