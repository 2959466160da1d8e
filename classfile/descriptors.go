// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import (
	"fmt"
	"strings"
)

// BaseType is one of the JVM's primitive descriptor kinds.
type BaseType byte

const (
	BaseByte    BaseType = 'B'
	BaseChar    BaseType = 'C'
	BaseDouble  BaseType = 'D'
	BaseFloat   BaseType = 'F'
	BaseInt     BaseType = 'I'
	BaseLong    BaseType = 'J'
	BaseShort   BaseType = 'S'
	BaseBoolean BaseType = 'Z'
)

func (b BaseType) String() string {
	switch b {
	case BaseByte:
		return "byte"
	case BaseChar:
		return "char"
	case BaseDouble:
		return "double"
	case BaseFloat:
		return "float"
	case BaseInt:
		return "int"
	case BaseLong:
		return "long"
	case BaseShort:
		return "short"
	case BaseBoolean:
		return "boolean"
	default:
		return fmt.Sprintf("BaseType(%q)", byte(b))
	}
}

// FieldType is a field descriptor: a primitive, an object reference, or an
// array of some component FieldType. Exactly one of Base/ClassName/Elem is
// set, selected by Kind.
type FieldType struct {
	Kind      FieldTypeKind
	Base      BaseType
	ClassName string // for Kind == KindObject, internal form ("java/lang/Object")
	Elem      *FieldType
}

// FieldTypeKind discriminates the union inside FieldType.
type FieldTypeKind int

const (
	KindBase FieldTypeKind = iota
	KindObject
	KindArray
)

// IsWide reports whether a value of this type occupies two local variable
// slots / two stack words, per the JVM's long/double convention.
func (f FieldType) IsWide() bool {
	return f.Kind == KindBase && (f.Base == BaseLong || f.Base == BaseDouble)
}

func (f FieldType) String() string {
	switch f.Kind {
	case KindBase:
		return f.Base.String()
	case KindObject:
		return f.ClassName
	case KindArray:
		return f.Elem.String() + "[]"
	default:
		return "<invalid FieldType>"
	}
}

// Descriptor renders the JVM descriptor string for this type, the inverse of
// ParseFieldType.
func (f FieldType) Descriptor() string {
	var b strings.Builder
	f.writeDescriptor(&b)
	return b.String()
}

func (f FieldType) writeDescriptor(b *strings.Builder) {
	switch f.Kind {
	case KindBase:
		b.WriteByte(byte(f.Base))
	case KindObject:
		b.WriteByte('L')
		b.WriteString(f.ClassName)
		b.WriteByte(';')
	case KindArray:
		b.WriteByte('[')
		f.Elem.writeDescriptor(b)
	}
}

// MethodDescriptor is a parsed method descriptor: an ordered parameter list
// and an optional return type (nil for void).
type MethodDescriptor struct {
	Params  []FieldType
	Returns *FieldType
}

func (m MethodDescriptor) String() string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.String()
	}
	ret := "void"
	if m.Returns != nil {
		ret = m.Returns.String()
	}
	return fmt.Sprintf("(%s)%s", strings.Join(parts, ", "), ret)
}

// ParseFieldType parses a single field descriptor ("I", "[Ljava/lang/String;",
// "[[D", ...), per JVM spec §4.3.2. Grounded on rustretto's
// FieldType::parse_with_tag, generalized into a scanner over a byte cursor
// the way the teacher's wasm/types.go readers consume a byte stream.
func ParseFieldType(s string) (FieldType, error) {
	ft, rest, err := parseFieldType(s)
	if err != nil {
		return FieldType{}, err
	}
	if rest != "" {
		return FieldType{}, MalformedClassFileError{Reason: fmt.Sprintf("trailing data in field descriptor %q", s)}
	}
	return ft, nil
}

func parseFieldType(s string) (ft FieldType, rest string, err error) {
	if s == "" {
		return FieldType{}, "", MalformedClassFileError{Reason: "empty field descriptor"}
	}
	tag := s[0]
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return FieldType{Kind: KindBase, Base: BaseType(tag)}, s[1:], nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return FieldType{}, "", MalformedClassFileError{Reason: fmt.Sprintf("unterminated class descriptor %q", s)}
		}
		return FieldType{Kind: KindObject, ClassName: s[1:end]}, s[end+1:], nil
	case '[':
		elem, rest, err := parseFieldType(s[1:])
		if err != nil {
			return FieldType{}, "", err
		}
		return FieldType{Kind: KindArray, Elem: &elem}, rest, nil
	default:
		return FieldType{}, "", MalformedClassFileError{Reason: fmt.Sprintf("unrecognized field descriptor tag %q", tag)}
	}
}

// ParseMethodDescriptor parses a method descriptor of the form
// "(ParamTypes)ReturnType", per JVM spec §4.3.3.
func ParseMethodDescriptor(s string) (MethodDescriptor, error) {
	if len(s) == 0 || s[0] != '(' {
		return MethodDescriptor{}, MalformedClassFileError{Reason: fmt.Sprintf("method descriptor %q missing opening paren", s)}
	}
	s = s[1:]
	var params []FieldType
	for len(s) > 0 && s[0] != ')' {
		ft, rest, err := parseFieldType(s)
		if err != nil {
			return MethodDescriptor{}, err
		}
		params = append(params, ft)
		s = rest
	}
	if len(s) == 0 {
		return MethodDescriptor{}, MalformedClassFileError{Reason: "method descriptor missing closing paren"}
	}
	s = s[1:] // consume ')'

	if s == "V" {
		return MethodDescriptor{Params: params}, nil
	}
	ret, rest, err := parseFieldType(s)
	if err != nil {
		return MethodDescriptor{}, err
	}
	if rest != "" {
		return MethodDescriptor{}, MalformedClassFileError{Reason: fmt.Sprintf("trailing data in method descriptor %q", s)}
	}
	return MethodDescriptor{Params: params, Returns: &ret}, nil
}
