// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Attribute is one entry of a class, field, method or Code attribute table.
// Known attribute kinds are decoded into the typed fields below (Code,
// LineNumbers, StackMapTable, SourceFile); everything else is retained as
// Raw so a later pass (or a future attribute kind) can still see it, the
// same way wasm/section.go keeps an unrecognized custom section's raw bytes
// rather than discarding them.
type Attribute struct {
	Name string
	Raw  []byte

	Code           *CodeAttribute
	LineNumbers    []LineNumberEntry
	StackMapTable  []StackMapFrame
	SourceFile     string
}

// CodeAttribute is the decoded body of a method's Code attribute: the
// bytecode itself plus the exception handler table. MaxStack/MaxLocals size
// the frame.Stack/frame.Locals that translate.Run will build.
type CodeAttribute struct {
	MaxStack   uint16
	MaxLocals  uint16
	Bytecode   []byte
	Exceptions []ExceptionHandler
	Attributes []Attribute
}

// ExceptionHandler is one row of a Code attribute's exception table.
type ExceptionHandler struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType ConstantIndex // 0 means catch-all (finally)
}

// LineNumberEntry maps a bytecode offset to a source line. The mapping is
// parsed and kept on CodeAttribute.LineNumbers; the emitter does not read
// it and emits no debug metadata.
type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

// StackMapFrame is one entry of a StackMapTable attribute. The translator
// does not require these (it reconstructs frame shapes itself by abstract
// interpretation, per spec.md §4.F), but they are retained for classfiles
// that carry them. `classc dump` does not print them.
type StackMapFrame struct {
	FrameType byte
	OffsetDelta uint16
}

func parseAttributes(r io.Reader, pool *ConstantPool, count uint16) ([]Attribute, error) {
	attrs := make([]Attribute, 0, count)
	for i := uint16(0); i < count; i++ {
		a, err := parseAttribute(r, pool)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func parseAttribute(r io.Reader, pool *ConstantPool) (Attribute, error) {
	var nameIdx uint16
	if err := readU16(r, &nameIdx); err != nil {
		return Attribute{}, err
	}
	name, err := pool.Utf8(ConstantIndex(nameIdx))
	if err != nil {
		return Attribute{}, err
	}
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return Attribute{}, TruncatedError{What: "attribute length"}
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Attribute{}, TruncatedError{What: "attribute body"}
	}

	a := Attribute{Name: name, Raw: raw}
	body := bytes.NewReader(raw)
	switch name {
	case "Code":
		code, err := parseCodeAttribute(body, pool)
		if err != nil {
			return Attribute{}, err
		}
		a.Code = code
	case "LineNumberTable":
		entries, err := parseLineNumberTable(body)
		if err != nil {
			return Attribute{}, err
		}
		a.LineNumbers = entries
	case "StackMapTable":
		frames, err := parseStackMapTable(body)
		if err != nil {
			return Attribute{}, err
		}
		a.StackMapTable = frames
	case "SourceFile":
		var idx uint16
		if err := readU16(body, &idx); err != nil {
			return Attribute{}, err
		}
		sf, err := pool.Utf8(ConstantIndex(idx))
		if err != nil {
			return Attribute{}, err
		}
		a.SourceFile = sf
	default:
		// Unknown or intentionally-unmodeled attribute (e.g. Signature,
		// InnerClasses, Deprecated): Raw already captured it above.
	}
	return a, nil
}

func parseCodeAttribute(r io.Reader, pool *ConstantPool) (*CodeAttribute, error) {
	c := &CodeAttribute{}
	if err := readU16(r, &c.MaxStack); err != nil {
		return nil, err
	}
	if err := readU16(r, &c.MaxLocals); err != nil {
		return nil, err
	}
	var codeLen uint32
	if err := binary.Read(r, binary.BigEndian, &codeLen); err != nil {
		return nil, TruncatedError{What: "code length"}
	}
	c.Bytecode = make([]byte, codeLen)
	if _, err := io.ReadFull(r, c.Bytecode); err != nil {
		return nil, TruncatedError{What: "bytecode"}
	}

	var exTableLen uint16
	if err := readU16(r, &exTableLen); err != nil {
		return nil, err
	}
	c.Exceptions = make([]ExceptionHandler, exTableLen)
	for i := range c.Exceptions {
		e := &c.Exceptions[i]
		if err := readU16(r, &e.StartPC); err != nil {
			return nil, err
		}
		if err := readU16(r, &e.EndPC); err != nil {
			return nil, err
		}
		if err := readU16(r, &e.HandlerPC); err != nil {
			return nil, err
		}
		var catchType uint16
		if err := readU16(r, &catchType); err != nil {
			return nil, err
		}
		e.CatchType = ConstantIndex(catchType)
	}

	var attrCount uint16
	if err := readU16(r, &attrCount); err != nil {
		return nil, err
	}
	attrs, err := parseAttributes(r, pool, attrCount)
	if err != nil {
		return nil, err
	}
	c.Attributes = attrs
	return c, nil
}

func parseLineNumberTable(r io.Reader) ([]LineNumberEntry, error) {
	var count uint16
	if err := readU16(r, &count); err != nil {
		return nil, err
	}
	entries := make([]LineNumberEntry, count)
	for i := range entries {
		if err := readU16(r, &entries[i].StartPC); err != nil {
			return nil, err
		}
		if err := readU16(r, &entries[i].LineNumber); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// parseStackMapTable only decodes enough of each frame to skip it correctly
// (frame type and implied/explicit offset delta); the verification-type
// payload is not needed since the translator derives frame shapes itself.
func parseStackMapTable(r io.Reader) ([]StackMapFrame, error) {
	var count uint16
	if err := readU16(r, &count); err != nil {
		return nil, err
	}
	frames := make([]StackMapFrame, 0, count)
	for i := uint16(0); i < count; i++ {
		var frameType byte
		if err := binary.Read(r, binary.BigEndian, &frameType); err != nil {
			return nil, TruncatedError{What: "stack map frame type"}
		}
		frame := StackMapFrame{FrameType: frameType}
		switch {
		case frameType <= 63: // same_frame
			frame.OffsetDelta = uint16(frameType)
		case frameType <= 127: // same_locals_1_stack_item_frame
			frame.OffsetDelta = uint16(frameType - 64)
			if err := skipVerificationTypeInfo(r); err != nil {
				return nil, err
			}
		case frameType == 247: // same_locals_1_stack_item_frame_extended
			if err := readU16(r, &frame.OffsetDelta); err != nil {
				return nil, err
			}
			if err := skipVerificationTypeInfo(r); err != nil {
				return nil, err
			}
		case frameType >= 248 && frameType <= 250: // chop_frame
			if err := readU16(r, &frame.OffsetDelta); err != nil {
				return nil, err
			}
		case frameType == 251: // same_frame_extended
			if err := readU16(r, &frame.OffsetDelta); err != nil {
				return nil, err
			}
		case frameType >= 252 && frameType <= 254: // append_frame
			if err := readU16(r, &frame.OffsetDelta); err != nil {
				return nil, err
			}
			for n := 0; n < int(frameType-251); n++ {
				if err := skipVerificationTypeInfo(r); err != nil {
					return nil, err
				}
			}
		case frameType == 255: // full_frame
			if err := readU16(r, &frame.OffsetDelta); err != nil {
				return nil, err
			}
			var numLocals uint16
			if err := readU16(r, &numLocals); err != nil {
				return nil, err
			}
			for n := 0; n < int(numLocals); n++ {
				if err := skipVerificationTypeInfo(r); err != nil {
					return nil, err
				}
			}
			var numStack uint16
			if err := readU16(r, &numStack); err != nil {
				return nil, err
			}
			for n := 0; n < int(numStack); n++ {
				if err := skipVerificationTypeInfo(r); err != nil {
					return nil, err
				}
			}
		default:
			return nil, UnsupportedBytecodeError(frameType)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func skipVerificationTypeInfo(r io.Reader) error {
	var tag byte
	if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
		return TruncatedError{What: "verification type tag"}
	}
	switch tag {
	case 7: // Object_variable_info
		var idx uint16
		return readU16(r, &idx)
	case 8: // Uninitialized_variable_info
		var offset uint16
		return readU16(r, &offset)
	default:
		return nil // Top/Integer/Float/Double/Long/Null/UninitializedThis: no payload
	}
}
