// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tag values, per the JVM specification.
const (
	tagClass              = 7
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagString             = 8
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagNameAndType        = 12
	tagUtf8               = 1
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagInvokeDynamic      = 18
)

// ConstantIndex is a 1-based index into a ConstantPool.
type ConstantIndex uint16

// Exported tag values, for callers (e.g. translate's ldc/ldc2_w decoding)
// that need to dispatch on a pool entry's kind via Tag before resolving it.
const (
	TagClass   = tagClass
	TagString  = tagString
	TagInteger = tagInteger
	TagFloat   = tagFloat
	TagLong    = tagLong
	TagDouble  = tagDouble
)

// Constant is one entry of a class file's constant pool. Exactly one of the
// typed fields below is meaningful, discriminated by Tag. Unusable marks the
// second slot occupied by a Long or Double entry.
type Constant struct {
	Tag      byte
	Unusable bool

	// Class
	NameIndex ConstantIndex

	// Fieldref / Methodref / InterfaceMethodref
	ClassIndex       ConstantIndex
	NameAndTypeIndex ConstantIndex

	// String
	StringIndex ConstantIndex

	// Integer / Float
	IntVal   int32
	FloatVal float32

	// Long / Double
	LongVal   int64
	DoubleVal float64

	// NameAndType
	DescriptorIndex ConstantIndex

	// Utf8 - decoded text (modified-UTF-8 already converted to standard UTF-8)
	Utf8 string

	// MethodHandle
	ReferenceKind  byte
	ReferenceIndex ConstantIndex

	// MethodType uses DescriptorIndex above.

	// InvokeDynamic
	BootstrapMethodAttrIndex uint16
}

func (c Constant) String() string {
	return fmt.Sprintf("Constant{tag=%d}", c.Tag)
}

// ConstantPool is the 1-indexed table of constants declared by a class file.
type ConstantPool struct {
	entries []Constant // entries[i] corresponds to ConstantIndex(i+1)
}

// Len returns the number of constant pool slots, including unusable slots.
func (p *ConstantPool) Len() int { return len(p.entries) }

// Indices yields every valid (non-zero) constant index in ascending order,
// including indices that land on an Unusable long/double second slot.
func (p *ConstantPool) Indices() []ConstantIndex {
	out := make([]ConstantIndex, len(p.entries))
	for i := range p.entries {
		out[i] = ConstantIndex(i + 1)
	}
	return out
}

func (p *ConstantPool) get(idx ConstantIndex) (*Constant, error) {
	if idx == 0 || int(idx) > len(p.entries) {
		return nil, InvalidConstantIndexError(idx)
	}
	c := &p.entries[idx-1]
	if c.Unusable {
		return nil, InvalidConstantIndexError(idx)
	}
	return c, nil
}

// Utf8 returns the decoded text of a CONSTANT_Utf8 entry.
func (p *ConstantPool) Utf8(idx ConstantIndex) (string, error) {
	c, err := p.get(idx)
	if err != nil {
		return "", err
	}
	if c.Tag != tagUtf8 {
		return "", MalformedClassFileError{Reason: fmt.Sprintf("index %d is not a Utf8 constant", idx)}
	}
	return c.Utf8, nil
}

// ClassName returns the decoded name of a CONSTANT_Class entry.
func (p *ConstantPool) ClassName(idx ConstantIndex) (string, error) {
	c, err := p.get(idx)
	if err != nil {
		return "", err
	}
	if c.Tag != tagClass {
		return "", MalformedClassFileError{Reason: fmt.Sprintf("index %d is not a Class constant", idx)}
	}
	return p.Utf8(c.NameIndex)
}

// NameAndType returns the decoded name and descriptor string of a
// CONSTANT_NameAndType entry.
func (p *ConstantPool) NameAndType(idx ConstantIndex) (name, descriptor string, err error) {
	c, err := p.get(idx)
	if err != nil {
		return "", "", err
	}
	if c.Tag != tagNameAndType {
		return "", "", MalformedClassFileError{Reason: fmt.Sprintf("index %d is not a NameAndType constant", idx)}
	}
	name, err = p.Utf8(c.NameIndex)
	if err != nil {
		return "", "", err
	}
	descriptor, err = p.Utf8(c.DescriptorIndex)
	return name, descriptor, err
}

// MemberRef is the resolved (class name, member name, descriptor) triple
// shared by field refs, method refs, and interface method refs.
type MemberRef struct {
	ClassName  string
	Name       string
	Descriptor string
}

func (p *ConstantPool) memberRef(idx ConstantIndex, wantTag byte) (MemberRef, error) {
	c, err := p.get(idx)
	if err != nil {
		return MemberRef{}, err
	}
	if c.Tag != wantTag {
		return MemberRef{}, MalformedClassFileError{Reason: fmt.Sprintf("index %d has tag %d, wanted %d", idx, c.Tag, wantTag)}
	}
	className, err := p.ClassName(c.ClassIndex)
	if err != nil {
		return MemberRef{}, err
	}
	name, descriptor, err := p.NameAndType(c.NameAndTypeIndex)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{ClassName: className, Name: name, Descriptor: descriptor}, nil
}

// FieldRef resolves a CONSTANT_Fieldref entry.
func (p *ConstantPool) FieldRef(idx ConstantIndex) (MemberRef, error) {
	return p.memberRef(idx, tagFieldref)
}

// MethodRef resolves a CONSTANT_Methodref entry.
func (p *ConstantPool) MethodRef(idx ConstantIndex) (MemberRef, error) {
	return p.memberRef(idx, tagMethodref)
}

// InterfaceMethodRef resolves a CONSTANT_InterfaceMethodref entry.
func (p *ConstantPool) InterfaceMethodRef(idx ConstantIndex) (MemberRef, error) {
	return p.memberRef(idx, tagInterfaceMethodref)
}

// String resolves a CONSTANT_String entry to the underlying Utf8 text, and
// returns the pool index of that Utf8 entry (used by the emitter to name
// the `@.strN` global per spec.md §6).
func (p *ConstantPool) String(idx ConstantIndex) (text string, utf8Index ConstantIndex, err error) {
	c, err := p.get(idx)
	if err != nil {
		return "", 0, err
	}
	if c.Tag != tagString {
		return "", 0, MalformedClassFileError{Reason: fmt.Sprintf("index %d is not a String constant", idx)}
	}
	text, err = p.Utf8(c.StringIndex)
	return text, c.StringIndex, err
}

// Integer resolves a CONSTANT_Integer entry.
func (p *ConstantPool) Integer(idx ConstantIndex) (int32, error) {
	c, err := p.get(idx)
	if err != nil {
		return 0, err
	}
	if c.Tag != tagInteger {
		return 0, MalformedClassFileError{Reason: fmt.Sprintf("index %d is not an Integer constant", idx)}
	}
	return c.IntVal, nil
}

// Long resolves a CONSTANT_Long entry.
func (p *ConstantPool) Long(idx ConstantIndex) (int64, error) {
	c, err := p.get(idx)
	if err != nil {
		return 0, err
	}
	if c.Tag != tagLong {
		return 0, MalformedClassFileError{Reason: fmt.Sprintf("index %d is not a Long constant", idx)}
	}
	return c.LongVal, nil
}

// Float resolves a CONSTANT_Float entry.
func (p *ConstantPool) Float(idx ConstantIndex) (float32, error) {
	c, err := p.get(idx)
	if err != nil {
		return 0, err
	}
	if c.Tag != tagFloat {
		return 0, MalformedClassFileError{Reason: fmt.Sprintf("index %d is not a Float constant", idx)}
	}
	return c.FloatVal, nil
}

// Double resolves a CONSTANT_Double entry.
func (p *ConstantPool) Double(idx ConstantIndex) (float64, error) {
	c, err := p.get(idx)
	if err != nil {
		return 0, err
	}
	if c.Tag != tagDouble {
		return 0, MalformedClassFileError{Reason: fmt.Sprintf("index %d is not a Double constant", idx)}
	}
	return c.DoubleVal, nil
}

// Tag returns the raw constant-pool tag at idx, used by ldc/ldc2_w decoding
// to dispatch on constant kind without trying each typed accessor in turn.
func (p *ConstantPool) Tag(idx ConstantIndex) (byte, error) {
	c, err := p.get(idx)
	if err != nil {
		return 0, err
	}
	return c.Tag, nil
}

// ClassRefs returns the decoded class names of every CONSTANT_Class entry in
// the pool, used by classgraph's resolveDependencies to walk the class graph.
func (p *ConstantPool) ClassRefs() ([]string, error) {
	var names []string
	for i := range p.entries {
		c := &p.entries[i]
		if c.Unusable || c.Tag != tagClass {
			continue
		}
		name, err := p.Utf8(c.NameIndex)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// parseConstantPool reads the constant pool as laid out immediately after
// the class file's minor/major version fields: a u2 count (one greater than
// the number of entries) followed by tagged, variable-length records.
func parseConstantPool(r io.Reader) (*ConstantPool, error) {
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, TruncatedError{What: "constant pool count"}
	}
	if count == 0 {
		return nil, MalformedClassFileError{Reason: "constant pool count must be at least 1"}
	}

	pool := &ConstantPool{entries: make([]Constant, 0, count-1)}
	for len(pool.entries) < int(count-1) {
		var tag byte
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, TruncatedError{What: "constant pool entry tag"}
		}
		c, err := parseConstant(r, tag)
		if err != nil {
			return nil, err
		}
		pool.entries = append(pool.entries, c)
		if tag == tagLong || tag == tagDouble {
			pool.entries = append(pool.entries, Constant{Unusable: true})
		}
	}
	return pool, nil
}

func parseConstant(r io.Reader, tag byte) (Constant, error) {
	c := Constant{Tag: tag}
	switch tag {
	case tagClass:
		if err := readU16(r, (*uint16)(&c.NameIndex)); err != nil {
			return c, err
		}
	case tagFieldref, tagMethodref, tagInterfaceMethodref:
		if err := readU16(r, (*uint16)(&c.ClassIndex)); err != nil {
			return c, err
		}
		if err := readU16(r, (*uint16)(&c.NameAndTypeIndex)); err != nil {
			return c, err
		}
	case tagString:
		if err := readU16(r, (*uint16)(&c.StringIndex)); err != nil {
			return c, err
		}
	case tagInteger:
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return c, TruncatedError{What: "Integer constant"}
		}
		c.IntVal = int32(v)
	case tagFloat:
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return c, TruncatedError{What: "Float constant"}
		}
		c.FloatVal = math.Float32frombits(v)
	case tagLong:
		var v uint64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return c, TruncatedError{What: "Long constant"}
		}
		c.LongVal = int64(v)
	case tagDouble:
		var v uint64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return c, TruncatedError{What: "Double constant"}
		}
		c.DoubleVal = math.Float64frombits(v)
	case tagNameAndType:
		if err := readU16(r, (*uint16)(&c.NameIndex)); err != nil {
			return c, err
		}
		if err := readU16(r, (*uint16)(&c.DescriptorIndex)); err != nil {
			return c, err
		}
	case tagUtf8:
		var length uint16
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return c, TruncatedError{What: "Utf8 constant length"}
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(r, raw); err != nil {
			return c, TruncatedError{What: "Utf8 constant bytes"}
		}
		c.Utf8 = decodeModifiedUTF8(raw)
	case tagMethodHandle:
		if err := binary.Read(r, binary.BigEndian, &c.ReferenceKind); err != nil {
			return c, TruncatedError{What: "MethodHandle reference kind"}
		}
		if err := readU16(r, (*uint16)(&c.ReferenceIndex)); err != nil {
			return c, err
		}
	case tagMethodType:
		if err := readU16(r, (*uint16)(&c.DescriptorIndex)); err != nil {
			return c, err
		}
	case tagInvokeDynamic:
		if err := binary.Read(r, binary.BigEndian, &c.BootstrapMethodAttrIndex); err != nil {
			return c, TruncatedError{What: "InvokeDynamic bootstrap method index"}
		}
		if err := readU16(r, (*uint16)(&c.NameAndTypeIndex)); err != nil {
			return c, err
		}
	default:
		return c, UnsupportedConstantError(tag)
	}
	return c, nil
}

func readU16(r io.Reader, out *uint16) error {
	if err := binary.Read(r, binary.BigEndian, out); err != nil {
		return TruncatedError{What: "u2 field"}
	}
	return nil
}
