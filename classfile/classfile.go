// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package classfile decodes JVM class files into an in-memory model:
// constant pool, field/method tables, and their attributes. It mirrors the
// shape of the teacher package wasm, which decodes a WASM module's binary
// sections into a similarly-typed in-memory Module.
package classfile

import (
	"encoding/binary"
	"io"
)

const magicNumber = 0xCAFEBABE

// AccessFlags is the bitset of modifiers on a class, field, or method, per
// JVM spec tables 4.1-A, 4.5-A, and 4.6-A. The same type is reused across
// all three tables the way wasm.NameSection reuses a single flag bitset.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
)

// Has reports whether every bit of want is set in f.
func (f AccessFlags) Has(want AccessFlags) bool { return f&want == want }

// ClassFile is the fully decoded contents of a .class file: JVM spec §4.1.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16

	ConstantPool *ConstantPool

	AccessFlags AccessFlags
	ThisClass   string
	SuperClass  string // empty for java/lang/Object
	Interfaces  []string

	Fields     []FieldInfo
	Methods    []MethodInfo
	Attributes []Attribute

	SourceFile string // convenience, populated from Attributes if present
}

// FieldInfo is one entry of a class file's fields table, JVM spec §4.5.
type FieldInfo struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  FieldType
	Attributes  []Attribute
}

// MethodInfo is one entry of a class file's methods table, JVM spec §4.6.
type MethodInfo struct {
	AccessFlags AccessFlags
	Name        string
	Descriptor  MethodDescriptor
	Attributes  []Attribute
}

// Code returns the method's Code attribute, or nil for abstract and native
// methods which carry none.
func (m MethodInfo) Code() *CodeAttribute {
	for _, a := range m.Attributes {
		if a.Code != nil {
			return a.Code
		}
	}
	return nil
}

// IsClinit reports whether this is the class's static initializer.
func (m MethodInfo) IsClinit() bool {
	return m.Name == "<clinit>" && m.AccessFlags.Has(AccStatic)
}

// IsInit reports whether this is an instance constructor.
func (m MethodInfo) IsInit() bool {
	return m.Name == "<init>"
}

// Parse decodes a complete class file from r, per JVM spec §4.1. It is the
// single entry point classloader.Load drives for every .class resource it
// discovers, mirroring wasm.DecodeModule's role for WASM binaries.
func Parse(r io.Reader) (*ClassFile, error) {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return nil, TruncatedError{What: "magic number"}
	}
	if magic != magicNumber {
		return nil, ErrInvalidMagic
	}

	cf := &ClassFile{}
	if err := binary.Read(r, binary.BigEndian, &cf.MinorVersion); err != nil {
		return nil, TruncatedError{What: "minor version"}
	}
	if err := binary.Read(r, binary.BigEndian, &cf.MajorVersion); err != nil {
		return nil, TruncatedError{What: "major version"}
	}

	pool, err := parseConstantPool(r)
	if err != nil {
		return nil, err
	}
	cf.ConstantPool = pool

	var accessFlags, thisClassIdx, superClassIdx uint16
	if err := binary.Read(r, binary.BigEndian, &accessFlags); err != nil {
		return nil, TruncatedError{What: "access flags"}
	}
	cf.AccessFlags = AccessFlags(accessFlags)
	if err := readU16(r, &thisClassIdx); err != nil {
		return nil, err
	}
	thisClass, err := pool.ClassName(ConstantIndex(thisClassIdx))
	if err != nil {
		return nil, err
	}
	cf.ThisClass = thisClass

	if err := readU16(r, &superClassIdx); err != nil {
		return nil, err
	}
	if superClassIdx != 0 {
		superClass, err := pool.ClassName(ConstantIndex(superClassIdx))
		if err != nil {
			return nil, err
		}
		cf.SuperClass = superClass
	}

	var interfaceCount uint16
	if err := readU16(r, &interfaceCount); err != nil {
		return nil, err
	}
	cf.Interfaces = make([]string, interfaceCount)
	for i := range cf.Interfaces {
		var idx uint16
		if err := readU16(r, &idx); err != nil {
			return nil, err
		}
		name, err := pool.ClassName(ConstantIndex(idx))
		if err != nil {
			return nil, err
		}
		cf.Interfaces[i] = name
	}

	fields, err := parseFields(r, pool)
	if err != nil {
		return nil, err
	}
	cf.Fields = fields

	methods, err := parseMethods(r, pool)
	if err != nil {
		return nil, err
	}
	cf.Methods = methods

	var attrCount uint16
	if err := readU16(r, &attrCount); err != nil {
		return nil, err
	}
	attrs, err := parseAttributes(r, pool, attrCount)
	if err != nil {
		return nil, err
	}
	cf.Attributes = attrs
	for _, a := range attrs {
		if a.Name == "SourceFile" {
			cf.SourceFile = a.SourceFile
		}
	}

	logger.Debugw("parsed class file", "class", cf.ThisClass, "super", cf.SuperClass, "fields", len(cf.Fields), "methods", len(cf.Methods))
	return cf, nil
}

func parseFields(r io.Reader, pool *ConstantPool) ([]FieldInfo, error) {
	var count uint16
	if err := readU16(r, &count); err != nil {
		return nil, err
	}
	fields := make([]FieldInfo, count)
	for i := range fields {
		var accessFlags, nameIdx, descIdx, attrCount uint16
		if err := readU16(r, &accessFlags); err != nil {
			return nil, err
		}
		if err := readU16(r, &nameIdx); err != nil {
			return nil, err
		}
		if err := readU16(r, &descIdx); err != nil {
			return nil, err
		}
		name, err := pool.Utf8(ConstantIndex(nameIdx))
		if err != nil {
			return nil, err
		}
		descStr, err := pool.Utf8(ConstantIndex(descIdx))
		if err != nil {
			return nil, err
		}
		desc, err := ParseFieldType(descStr)
		if err != nil {
			return nil, err
		}
		if err := readU16(r, &attrCount); err != nil {
			return nil, err
		}
		attrs, err := parseAttributes(r, pool, attrCount)
		if err != nil {
			return nil, err
		}
		fields[i] = FieldInfo{
			AccessFlags: AccessFlags(accessFlags),
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
	}
	return fields, nil
}

func parseMethods(r io.Reader, pool *ConstantPool) ([]MethodInfo, error) {
	var count uint16
	if err := readU16(r, &count); err != nil {
		return nil, err
	}
	methods := make([]MethodInfo, count)
	for i := range methods {
		var accessFlags, nameIdx, descIdx, attrCount uint16
		if err := readU16(r, &accessFlags); err != nil {
			return nil, err
		}
		if err := readU16(r, &nameIdx); err != nil {
			return nil, err
		}
		if err := readU16(r, &descIdx); err != nil {
			return nil, err
		}
		name, err := pool.Utf8(ConstantIndex(nameIdx))
		if err != nil {
			return nil, err
		}
		descStr, err := pool.Utf8(ConstantIndex(descIdx))
		if err != nil {
			return nil, err
		}
		desc, err := ParseMethodDescriptor(descStr)
		if err != nil {
			return nil, err
		}
		if err := readU16(r, &attrCount); err != nil {
			return nil, err
		}
		attrs, err := parseAttributes(r, pool, attrCount)
		if err != nil {
			return nil, err
		}
		methods[i] = MethodInfo{
			AccessFlags: AccessFlags(accessFlags),
			Name:        name,
			Descriptor:  desc,
			Attributes:  attrs,
		}
	}
	return methods, nil
}
