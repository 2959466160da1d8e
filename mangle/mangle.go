// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mangle renders Itanium C++ ABI-flavored symbol names for classc's
// emitted methods, fields, and vtables, so the LLVM linker and any C++
// demangler (c++filt, llvm-cxxfilt) can resolve them without classc
// shipping its own symbol table format. Grounded on rustretto's
// compiler/src/mangle.rs.
package mangle

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/go-interpreter/classc/classfile"
)

// mangler accumulates an Itanium-style mangled name, mirroring mangle.rs's
// Mangler struct.
type mangler struct {
	out strings.Builder
}

func newMangler() *mangler {
	m := &mangler{}
	m.out.WriteString("_Z")
	return m
}

func (m *mangler) nestedStart() { m.out.WriteByte('N') }
func (m *mangler) nestedEnd()   { m.out.WriteByte('E') }

// name writes one length-prefixed nested-name component. Non-ASCII names
// are punycode-encoded first and their trailing '-' delimiter, meaningless
// once all-basic, is trimmed; any remaining '-' separating the basic and
// encoded parts becomes '$', since '-' is not part of the mangled alphabet.
func (m *mangler) name(s string) {
	encoded := punycode(s)
	encoded = strings.TrimRight(encoded, "-")
	encoded = strings.ReplaceAll(encoded, "-", "$")
	fmt.Fprintf(&m.out, "%d%s", len(encoded), encoded)
}

func (m *mangler) fieldType(ft classfile.FieldType) {
	for {
		switch ft.Kind {
		case classfile.KindBase:
			switch ft.Base {
			case classfile.BaseByte:
				m.out.WriteString("u4byte")
			case classfile.BaseChar:
				m.out.WriteString("u4char")
			case classfile.BaseDouble:
				m.out.WriteByte('d')
			case classfile.BaseFloat:
				m.out.WriteByte('f')
			case classfile.BaseInt:
				m.out.WriteByte('i')
			case classfile.BaseLong:
				m.out.WriteByte('l')
			case classfile.BaseShort:
				m.out.WriteByte('s')
			case classfile.BaseBoolean:
				m.out.WriteString("u7boolean")
			}
			return
		case classfile.KindObject:
			m.nestedStart()
			for _, ns := range strings.Split(ft.ClassName, "/") {
				m.name(ns)
			}
			m.nestedEnd()
			return
		case classfile.KindArray:
			m.out.WriteString("A_")
			ft = *ft.Elem
		}
	}
}

// MangleMethodName mangles a method's symbol. The template-argument-like
// "Iu9J{hash}E" segment disambiguates overloads purely by hashing
// (class, method, return type) into an 8-hex-digit FNV-1a suffix: classc
// does not need real template semantics, only uniqueness per overload set,
// so it borrows the syntax without the generality.
func MangleMethodName(className, methodName string, descriptor classfile.MethodDescriptor) string {
	m := newMangler()
	m.nestedStart()
	for _, ns := range strings.Split(className, "/") {
		m.name(ns)
	}

	switch methodName {
	case "<init>":
		m.out.WriteString("4init")
	case "<clinit>":
		m.out.WriteString("6clinit")
	default:
		m.name(methodName)
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s", className, methodName, returnTypeKey(descriptor), returnTypeKey(descriptor))
	fmt.Fprintf(&m.out, "Iu9J%08xE", uint32(h.Sum64()))

	m.nestedEnd()

	if descriptor.Returns == nil {
		m.out.WriteByte('v')
	} else {
		m.fieldType(*descriptor.Returns)
	}

	if len(descriptor.Params) == 0 {
		m.out.WriteByte('v')
	} else {
		for _, p := range descriptor.Params {
			m.fieldType(p)
		}
	}

	return m.out.String()
}

func returnTypeKey(descriptor classfile.MethodDescriptor) string {
	if descriptor.Returns == nil {
		return "void"
	}
	return descriptor.Returns.Descriptor()
}

// MangleFieldName mangles a field's symbol.
func MangleFieldName(className, fieldName string) string {
	m := newMangler()
	m.nestedStart()
	for _, ns := range strings.Split(className, "/") {
		m.name(ns)
	}
	m.name(fieldName)
	m.nestedEnd()
	return m.out.String()
}

// MangleClassName mangles a class's object-type symbol (the struct type
// backing its instances, distinct from its vtable type symbol).
func MangleClassName(className string) string {
	m := newMangler()
	m.nestedStart()
	for _, ns := range strings.Split(className, "/") {
		m.name(ns)
	}
	m.nestedEnd()
	return m.out.String()
}

// MangleVTableName mangles a class's vtable constant symbol.
func MangleVTableName(className string) string {
	m := newMangler()
	m.out.WriteString("TV")
	m.nestedStart()
	for _, ns := range strings.Split(className, "/") {
		m.name(ns)
	}
	m.nestedEnd()
	return m.out.String()
}
