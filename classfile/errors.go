// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import "fmt"

// MalformedClassFileError is returned when a class file's structure violates
// the format documented in the JVM specification (bad indices, bad magic,
// inconsistent counts).
type MalformedClassFileError struct {
	Reason string
}

func (e MalformedClassFileError) Error() string {
	return fmt.Sprintf("classfile: malformed class file: %s", e.Reason)
}

// TruncatedError is returned when an attribute or the bytecode stream ends
// before its declared length has been consumed.
type TruncatedError struct {
	What string
}

func (e TruncatedError) Error() string {
	return fmt.Sprintf("classfile: truncated %s", e.What)
}

// UnsupportedBytecodeError is returned by the bytecode disassembler when it
// encounters an opcode byte outside the core subset this compiler lowers.
type UnsupportedBytecodeError byte

func (e UnsupportedBytecodeError) Error() string {
	return fmt.Sprintf("classfile: unsupported bytecode opcode 0x%02x", byte(e))
}

// UnsupportedConstantError is returned when a constant pool tag is not one
// of the known JVM constant kinds.
type UnsupportedConstantError byte

func (e UnsupportedConstantError) Error() string {
	return fmt.Sprintf("classfile: unsupported constant pool tag %d", byte(e))
}

// InvalidConstantIndexError is returned when a 1-based constant pool index
// is zero, out of range, or points at the unusable second slot of a long or
// double entry.
type InvalidConstantIndexError uint16

func (e InvalidConstantIndexError) Error() string {
	return fmt.Sprintf("classfile: invalid constant pool index %d", uint16(e))
}

// ErrInvalidMagic is returned when the class file does not begin with the
// 0xCAFEBABE magic number.
var ErrInvalidMagic = MalformedClassFileError{Reason: "bad magic number"}
