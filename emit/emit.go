// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package emit renders a compiled class into a standalone LLVM textual IR
// module: the module prelude, on-demand type declarations, the class's own
// vtable constant, and its method bodies (spec.md §4.K). Grounded on
// rustretto's compiler/backend/src/generate.rs CodeGen/ClassCodeGen, with
// the per-class declaration database rustretto builds with a HashSet kept
// here as an ordered slice + seen-set so declaration order stays
// deterministic (spec.md §5: "declaration order is insertion order").
package emit

import (
	"fmt"
	"strings"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classgraph"
	"github.com/go-interpreter/classc/classloader"
	"github.com/go-interpreter/classc/layout"
	"github.com/go-interpreter/classc/mangle"
)

// Generator renders classes drawn from a single classgraph.Graph into IR
// modules, sharing one field-layout cache and one vtable cache across every
// class compiled from the same root, per spec.md §5.
type Generator struct {
	Graph   *classgraph.Graph
	Fields  *layout.FieldLayouts
	VTables *layout.VTables
}

// NewGenerator returns a Generator backed by graph, with fresh caches.
func NewGenerator(graph *classgraph.Graph) *Generator {
	return &Generator{
		Graph:   graph,
		Fields:  layout.NewFieldLayouts(graph),
		VTables: layout.NewVTables(graph),
	}
}

const (
	targetTriple     = "x86_64-unknown-linux-gnu"
	targetDataLayout = "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128"
)

// EmitClass renders className into a complete IR module: prelude,
// declarations, vtable constant, and every method.
func (g *Generator) EmitClass(className string) (string, error) {
	cls, ok := g.Graph.Get(className)
	if !ok || cls.File == nil {
		return "", fmt.Errorf("emit: %s is not a compiled class in the class graph", className)
	}
	cf := cls.File
	pool := cf.ConstantPool

	var out strings.Builder
	g.renderPrelude(&out, className, pool)

	if err := g.renderDeclarations(&out, className, cf); err != nil {
		return "", err
	}

	vt, err := g.VTables.Get(className)
	if err != nil {
		return "", err
	}
	renderVTableConstant(&out, className, vt)
	out.WriteString("\n")

	var clinitSymbol string
	for _, method := range cf.Methods {
		if err := g.renderMethod(&out, className, method, pool); err != nil {
			return "", err
		}
		if method.IsClinit() {
			clinitSymbol = mangle.MangleMethodName(className, method.Name, method.Descriptor)
		}
	}
	if className == mainClassHint {
		g.renderMainShim(&out, className, cf)
	}
	if clinitSymbol != "" {
		renderGlobalCtor(&out, clinitSymbol)
	}

	logger.Debugw("emitted class", "class", className, "methods", len(cf.Methods))
	return out.String(), nil
}

// mainClassHint names the class whose main(String[]) method becomes the
// process entry point; EmitMain sets it for the duration of the driver's
// compilation of that one class.
var mainClassHint string

// EmitMain marks className as the program's entry class: the next call to
// EmitClass for it also emits the C-callable main(argc, argv) shim.
func EmitMain(className string) {
	mainClassHint = className
}

func (g *Generator) renderPrelude(out *strings.Builder, className string, pool *classfile.ConstantPool) {
	fmt.Fprintf(out, "; ModuleID = '%s'\n", className)
	fmt.Fprintf(out, "source_filename = \"%s.class\"\n", className)
	fmt.Fprintf(out, "target datalayout = \"%s\"\n", targetDataLayout)
	fmt.Fprintf(out, "target triple = \"%s\"\n\n", targetTriple)

	out.WriteString(refType + " = type { i8*, i8* }\n\n")

	out.WriteString("declare %ref @_Jrt_new(i64, i8*)\n")
	out.WriteString("declare void @_Jrt_throw(%ref) noreturn\n")
	out.WriteString("declare %ref @_Jrt_ldstr(i32, i8*)\n")
	out.WriteString("declare void @_Jrt_abstract() noreturn\n")
	out.WriteString("declare i32 @_Jrt_start(i32, i8**, void (%ref)*)\n\n")

	for _, idx := range pool.Indices() {
		tag, err := pool.Tag(idx)
		if err != nil || tag != classfile.TagString {
			continue
		}
		text, utf8Index, err := pool.String(idx)
		if err != nil {
			continue
		}
		n := len(text) + 1
		fmt.Fprintf(out, "@.str%d = internal constant [%d x i8] c\"%s\\00\"\n", utf8Index, n, escapeIRString(text))
	}
	out.WriteString("\n")
}

// escapeIRString renders s as the body of an LLVM IR quoted string
// constant: non-printable and non-ASCII bytes become \XX hex escapes, and a
// literal backslash or quote is escaped the same way so it can't be
// mistaken for the escape sequence itself.
func escapeIRString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == '"' || c < 0x20 || c >= 0x7f {
			fmt.Fprintf(&b, "\\%02X", c)
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// declSet tracks which object/vtable type declarations have already been
// emitted for one class's module, preserving first-reference order.
type declSet struct {
	seen  map[string]bool
	order []string
}

func newDeclSet() *declSet { return &declSet{seen: make(map[string]bool)} }

func (d *declSet) add(name string) bool {
	if d.seen[name] {
		return false
	}
	d.seen[name] = true
	d.order = append(d.order, name)
	return true
}

// renderDeclarations emits, exactly once each, the object-type and (for
// non-array classes) vtable-type declarations for className and every class
// its own constant pool names, per spec.md §4.K point 2.
func (g *Generator) renderDeclarations(out *strings.Builder, className string, cf *classfile.ClassFile) error {
	refs, err := cf.ConstantPool.ClassRefs()
	if err != nil {
		return err
	}

	names := newDeclSet()
	names.add(className)
	for _, r := range refs {
		names.add(r)
	}

	for _, name := range names.order {
		cls, ok := g.Graph.Get(name)
		if !ok {
			continue // referenced only symbolically (e.g. an exception class never instantiated here)
		}
		if cls.File != nil {
			fl, err := g.Fields.Get(name)
			if err != nil {
				return err
			}
			renderObjectStructType(out, name, fl)
			vt, err := g.VTables.Get(name)
			if err != nil {
				return err
			}
			renderVTableStructType(out, name, vt)
			continue
		}
		renderArrayStructType(out, name, cls.Array)
	}
	out.WriteString("\n")
	return nil
}

// renderArrayStructTypeFor is a thin wrapper over renderArrayStructType for
// a caller that already holds a resolved classloader.ArrayClass. Nothing in
// the module calls it; EmitClass calls renderArrayStructType directly.
func renderArrayStructTypeFor(out *strings.Builder, name string, a *classloader.ArrayClass) {
	renderArrayStructType(out, name, a)
}

// renderGlobalCtor appends symbol to the module's global constructor list
// at priority 65535, the convention LLVM's appending-linkage @llvm.global_ctors
// array and the runtime's startup enumeration both expect (spec.md §4.K
// point 5, "class initializer").
func renderGlobalCtor(out *strings.Builder, symbol string) {
	out.WriteString("@llvm.global_ctors = appending global [1 x { i32, void ()*, i8* }] [\n")
	fmt.Fprintf(out, "  { i32, void ()*, i8* } { i32 65535, void ()* @%s, i8* null }\n", symbol)
	out.WriteString("]\n")
}

// renderMainShim emits the process entry point for the class passed to
// EmitMain: a C-callable main(argc, argv) that hands off to the runtime's
// own startup sequence, which in turn invokes the translated
// main(String[]) method (spec.md §4.K point 5, "main shim").
func (g *Generator) renderMainShim(out *strings.Builder, className string, cf *classfile.ClassFile) {
	var mainMethod *classfile.MethodInfo
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if m.Name == "main" && m.AccessFlags.Has(classfile.AccStatic) {
			mainMethod = m
			break
		}
	}
	if mainMethod == nil {
		return
	}
	symbol := mangle.MangleMethodName(className, mainMethod.Name, mainMethod.Descriptor)
	out.WriteString("define i32 @main(i32 %argc, i8** %argv) {\n")
	fmt.Fprintf(out, "  %%r = call i32 @_Jrt_start(i32 %%argc, i8** %%argv, void (%%ref)* @%s)\n", symbol)
	out.WriteString("  ret i32 %r\n")
	out.WriteString("}\n\n")
}
