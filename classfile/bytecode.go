// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import (
	"encoding/binary"
	"fmt"
)

// Opcode is a single JVM bytecode instruction opcode, per JVM spec chapter 6.
type Opcode byte

// The subset of opcodes this compiler lowers. Grounded on disasm/disasm.go's
// switch-per-opcode decode shape, generalized from WASM's opcode table to
// the JVM's.
const (
	OpNop         Opcode = 0x00
	OpAConstNull  Opcode = 0x01
	OpIConstM1    Opcode = 0x02
	OpIConst0     Opcode = 0x03
	OpIConst1     Opcode = 0x04
	OpIConst2     Opcode = 0x05
	OpIConst3     Opcode = 0x06
	OpIConst4     Opcode = 0x07
	OpIConst5     Opcode = 0x08
	OpLConst0     Opcode = 0x09
	OpLConst1     Opcode = 0x0a
	OpFConst0     Opcode = 0x0b
	OpFConst1     Opcode = 0x0c
	OpFConst2     Opcode = 0x0d
	OpDConst0     Opcode = 0x0e
	OpDConst1     Opcode = 0x0f
	OpBIPush      Opcode = 0x10
	OpSIPush      Opcode = 0x11
	OpLdc         Opcode = 0x12
	OpLdcW        Opcode = 0x13
	OpLdc2W       Opcode = 0x14
	OpILoad       Opcode = 0x15
	OpLLoad       Opcode = 0x16
	OpFLoad       Opcode = 0x17
	OpDLoad       Opcode = 0x18
	OpALoad       Opcode = 0x19
	OpILoad0      Opcode = 0x1a
	OpILoad1      Opcode = 0x1b
	OpILoad2      Opcode = 0x1c
	OpILoad3      Opcode = 0x1d
	OpLLoad0      Opcode = 0x1e
	OpLLoad1      Opcode = 0x1f
	OpLLoad2      Opcode = 0x20
	OpLLoad3      Opcode = 0x21
	OpFLoad0      Opcode = 0x22
	OpFLoad1      Opcode = 0x23
	OpFLoad2      Opcode = 0x24
	OpFLoad3      Opcode = 0x25
	OpDLoad0      Opcode = 0x26
	OpDLoad1      Opcode = 0x27
	OpDLoad2      Opcode = 0x28
	OpDLoad3      Opcode = 0x29
	OpALoad0      Opcode = 0x2a
	OpALoad1      Opcode = 0x2b
	OpALoad2      Opcode = 0x2c
	OpALoad3      Opcode = 0x2d
	OpIALoad      Opcode = 0x2e
	OpLALoad      Opcode = 0x2f
	OpFALoad      Opcode = 0x30
	OpDALoad      Opcode = 0x31
	OpAALoad      Opcode = 0x32
	OpBALoad      Opcode = 0x33
	OpCALoad      Opcode = 0x34
	OpSALoad      Opcode = 0x35
	OpIStore      Opcode = 0x36
	OpLStore      Opcode = 0x37
	OpFStore      Opcode = 0x38
	OpDStore      Opcode = 0x39
	OpAStore      Opcode = 0x3a
	OpIStore0     Opcode = 0x3b
	OpIStore1     Opcode = 0x3c
	OpIStore2     Opcode = 0x3d
	OpIStore3     Opcode = 0x3e
	OpLStore0     Opcode = 0x3f
	OpLStore1     Opcode = 0x40
	OpLStore2     Opcode = 0x41
	OpLStore3     Opcode = 0x42
	OpFStore0     Opcode = 0x43
	OpFStore1     Opcode = 0x44
	OpFStore2     Opcode = 0x45
	OpFStore3     Opcode = 0x46
	OpDStore0     Opcode = 0x47
	OpDStore1     Opcode = 0x48
	OpDStore2     Opcode = 0x49
	OpDStore3     Opcode = 0x4a
	OpAStore0     Opcode = 0x4b
	OpAStore1     Opcode = 0x4c
	OpAStore2     Opcode = 0x4d
	OpAStore3     Opcode = 0x4e
	OpIAStore     Opcode = 0x4f
	OpLAStore     Opcode = 0x50
	OpFAStore     Opcode = 0x51
	OpDAStore     Opcode = 0x52
	OpAAStore     Opcode = 0x53
	OpBAStore     Opcode = 0x54
	OpCAStore     Opcode = 0x55
	OpSAStore     Opcode = 0x56
	OpPop         Opcode = 0x57
	OpPop2        Opcode = 0x58
	OpDup         Opcode = 0x59
	OpDupX1       Opcode = 0x5a
	OpDupX2       Opcode = 0x5b
	OpDup2        Opcode = 0x5c
	OpDup2X1      Opcode = 0x5d
	OpDup2X2      Opcode = 0x5e
	OpSwap        Opcode = 0x5f
	OpIAdd        Opcode = 0x60
	OpLAdd        Opcode = 0x61
	OpFAdd        Opcode = 0x62
	OpDAdd        Opcode = 0x63
	OpISub        Opcode = 0x64
	OpLSub        Opcode = 0x65
	OpFSub        Opcode = 0x66
	OpDSub        Opcode = 0x67
	OpIMul        Opcode = 0x68
	OpLMul        Opcode = 0x69
	OpFMul        Opcode = 0x6a
	OpDMul        Opcode = 0x6b
	OpIDiv        Opcode = 0x6c
	OpLDiv        Opcode = 0x6d
	OpFDiv        Opcode = 0x6e
	OpDDiv        Opcode = 0x6f
	OpIRem        Opcode = 0x70
	OpLRem        Opcode = 0x71
	OpFRem        Opcode = 0x72
	OpDRem        Opcode = 0x73
	OpINeg        Opcode = 0x74
	OpLNeg        Opcode = 0x75
	OpFNeg        Opcode = 0x76
	OpDNeg        Opcode = 0x77
	OpIShl        Opcode = 0x78
	OpLShl        Opcode = 0x79
	OpIShr        Opcode = 0x7a
	OpLShr        Opcode = 0x7b
	OpIUShr       Opcode = 0x7c
	OpLUShr       Opcode = 0x7d
	OpIAnd        Opcode = 0x7e
	OpLAnd        Opcode = 0x7f
	OpIOr         Opcode = 0x80
	OpLOr         Opcode = 0x81
	OpIXor        Opcode = 0x82
	OpLXor        Opcode = 0x83
	OpIInc        Opcode = 0x84
	OpI2L         Opcode = 0x85
	OpI2F         Opcode = 0x86
	OpI2D         Opcode = 0x87
	OpL2I         Opcode = 0x88
	OpL2F         Opcode = 0x89
	OpL2D         Opcode = 0x8a
	OpF2I         Opcode = 0x8b
	OpF2L         Opcode = 0x8c
	OpF2D         Opcode = 0x8d
	OpD2I         Opcode = 0x8e
	OpD2L         Opcode = 0x8f
	OpD2F         Opcode = 0x90
	OpI2B         Opcode = 0x91
	OpI2C         Opcode = 0x92
	OpI2S         Opcode = 0x93
	OpLCmp        Opcode = 0x94
	OpFCmpL       Opcode = 0x95
	OpFCmpG       Opcode = 0x96
	OpDCmpL       Opcode = 0x97
	OpDCmpG       Opcode = 0x98
	OpIfEq        Opcode = 0x99
	OpIfNe        Opcode = 0x9a
	OpIfLt        Opcode = 0x9b
	OpIfGe        Opcode = 0x9c
	OpIfGt        Opcode = 0x9d
	OpIfLe        Opcode = 0x9e
	OpIfICmpEq    Opcode = 0x9f
	OpIfICmpNe    Opcode = 0xa0
	OpIfICmpLt    Opcode = 0xa1
	OpIfICmpGe    Opcode = 0xa2
	OpIfICmpGt    Opcode = 0xa3
	OpIfICmpLe    Opcode = 0xa4
	OpIfACmpEq    Opcode = 0xa5
	OpIfACmpNe    Opcode = 0xa6
	OpGoto        Opcode = 0xa7
	OpJsr         Opcode = 0xa8
	OpRet         Opcode = 0xa9
	OpTableSwitch Opcode = 0xaa
	OpLookupSwitch Opcode = 0xab
	OpIReturn     Opcode = 0xac
	OpLReturn     Opcode = 0xad
	OpFReturn     Opcode = 0xae
	OpDReturn     Opcode = 0xaf
	OpAReturn     Opcode = 0xb0
	OpReturn      Opcode = 0xb1
	OpGetStatic   Opcode = 0xb2
	OpPutStatic   Opcode = 0xb3
	OpGetField    Opcode = 0xb4
	OpPutField    Opcode = 0xb5
	OpInvokeVirtual   Opcode = 0xb6
	OpInvokeSpecial   Opcode = 0xb7
	OpInvokeStatic    Opcode = 0xb8
	OpInvokeInterface Opcode = 0xb9
	OpInvokeDynamic   Opcode = 0xba
	OpNew          Opcode = 0xbb
	OpNewArray     Opcode = 0xbc
	OpANewArray    Opcode = 0xbd
	OpArrayLength  Opcode = 0xbe
	OpAThrow       Opcode = 0xbf
	OpCheckCast    Opcode = 0xc0
	OpInstanceOf   Opcode = 0xc1
	OpMonitorEnter Opcode = 0xc2
	OpMonitorExit  Opcode = 0xc3
	OpWide         Opcode = 0xc4
	OpMultiANewArray Opcode = 0xc5
	OpIfNull       Opcode = 0xc6
	OpIfNonNull    Opcode = 0xc7
	OpGotoW        Opcode = 0xc8
	OpJsrW         Opcode = 0xc9
)

// Instruction is one decoded bytecode instruction: its address (byte offset
// within the method's Code attribute), opcode, and any inline operands.
type Instruction struct {
	Offset  int
	Op      Opcode
	Operand Operand
}

// Operand carries the decoded inline arguments of an instruction. Which
// fields are meaningful depends on Op; zero value means "no operand".
type Operand struct {
	Int           int32
	ConstantIndex ConstantIndex
	VarIndex      uint16
	BranchTarget  int
	Dimensions    byte // multianewarray

	TableSwitch  *TableSwitchOperand
	LookupSwitch *LookupSwitchOperand
}

// TableSwitchOperand is the decoded body of a tableswitch instruction.
type TableSwitchOperand struct {
	Default int
	Low     int32
	High    int32
	Targets []int
}

// LookupSwitchOperand is the decoded body of a lookupswitch instruction.
type LookupSwitchOperand struct {
	Default int
	Pairs   []LookupSwitchPair
}

// LookupSwitchPair is one (match, target) row of a lookupswitch table.
type LookupSwitchPair struct {
	Match  int32
	Target int
}

// Disassembler decodes a Code attribute's raw bytecode into a sequence of
// Instructions, one at a time. It is driven externally by disasm.Partition,
// which calls DecodeNext repeatedly and inspects each Instruction's
// branch/fallthrough behavior to discover basic block boundaries.
type Disassembler struct {
	code []byte
	pos  int
}

// NewDisassembler returns a Disassembler positioned at the start of code.
func NewDisassembler(code []byte) *Disassembler {
	return &Disassembler{code: code}
}

// Position returns the current byte offset within the method's bytecode.
func (d *Disassembler) Position() int { return d.pos }

// SetPosition repositions the cursor, used when resuming decode at a known
// basic block leader address.
func (d *Disassembler) SetPosition(pos int) { d.pos = pos }

// Done reports whether every byte of the bytecode has been consumed.
func (d *Disassembler) Done() bool { return d.pos >= len(d.code) }

func (d *Disassembler) readByte() (byte, error) {
	if d.pos >= len(d.code) {
		return 0, TruncatedError{What: "bytecode"}
	}
	b := d.code[d.pos]
	d.pos++
	return b, nil
}

func (d *Disassembler) readU16() (uint16, error) {
	if d.pos+2 > len(d.code) {
		return 0, TruncatedError{What: "bytecode operand"}
	}
	v := binary.BigEndian.Uint16(d.code[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *Disassembler) readU32() (uint32, error) {
	if d.pos+4 > len(d.code) {
		return 0, TruncatedError{What: "bytecode operand"}
	}
	v := binary.BigEndian.Uint32(d.code[d.pos:])
	d.pos += 4
	return v, nil
}

// DecodeNext decodes the instruction at the current position and advances
// past it.
func (d *Disassembler) DecodeNext() (Instruction, error) {
	start := d.pos
	opByte, err := d.readByte()
	if err != nil {
		return Instruction{}, err
	}
	op := Opcode(opByte)
	inst := Instruction{Offset: start, Op: op}

	switch op {
	case OpBIPush:
		b, err := d.readByte()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.Int = int32(int8(b))
	case OpSIPush:
		v, err := d.readU16()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.Int = int32(int16(v))
	case OpLdc:
		idx, err := d.readByte()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.ConstantIndex = ConstantIndex(idx)
	case OpLdcW, OpLdc2W:
		idx, err := d.readU16()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.ConstantIndex = ConstantIndex(idx)
	case OpILoad, OpLLoad, OpFLoad, OpDLoad, OpALoad,
		OpIStore, OpLStore, OpFStore, OpDStore, OpAStore, OpRet:
		idx, err := d.readByte()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.VarIndex = uint16(idx)
	case OpIInc:
		idx, err := d.readByte()
		if err != nil {
			return Instruction{}, err
		}
		delta, err := d.readByte()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.VarIndex = uint16(idx)
		inst.Operand.Int = int32(int8(delta))
	case OpIfEq, OpIfNe, OpIfLt, OpIfGe, OpIfGt, OpIfLe,
		OpIfICmpEq, OpIfICmpNe, OpIfICmpLt, OpIfICmpGe, OpIfICmpGt, OpIfICmpLe,
		OpIfACmpEq, OpIfACmpNe, OpGoto, OpJsr, OpIfNull, OpIfNonNull:
		off, err := d.readU16()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.BranchTarget = start + int(int16(off))
	case OpGotoW, OpJsrW:
		off, err := d.readU32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.BranchTarget = start + int(int32(off))
	case OpTableSwitch:
		ts, err := d.decodeTableSwitch(start)
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.TableSwitch = ts
	case OpLookupSwitch:
		ls, err := d.decodeLookupSwitch(start)
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.LookupSwitch = ls
	case OpGetStatic, OpPutStatic, OpGetField, OpPutField,
		OpInvokeVirtual, OpInvokeSpecial, OpInvokeStatic,
		OpNew, OpCheckCast, OpInstanceOf, OpANewArray:
		idx, err := d.readU16()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.ConstantIndex = ConstantIndex(idx)
	case OpInvokeInterface:
		idx, err := d.readU16()
		if err != nil {
			return Instruction{}, err
		}
		if _, err := d.readByte(); err != nil { // count, redundant with descriptor
			return Instruction{}, err
		}
		if _, err := d.readByte(); err != nil { // must be zero
			return Instruction{}, err
		}
		inst.Operand.ConstantIndex = ConstantIndex(idx)
	case OpInvokeDynamic:
		idx, err := d.readU16()
		if err != nil {
			return Instruction{}, err
		}
		if _, err := d.readU16(); err != nil { // reserved
			return Instruction{}, err
		}
		inst.Operand.ConstantIndex = ConstantIndex(idx)
	case OpNewArray:
		b, err := d.readByte()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.Int = int32(b)
	case OpMultiANewArray:
		idx, err := d.readU16()
		if err != nil {
			return Instruction{}, err
		}
		dims, err := d.readByte()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.ConstantIndex = ConstantIndex(idx)
		inst.Operand.Dimensions = dims
	case OpWide:
		return d.decodeWide(start)
	case OpNop, OpAConstNull,
		OpIConstM1, OpIConst0, OpIConst1, OpIConst2, OpIConst3, OpIConst4, OpIConst5,
		OpLConst0, OpLConst1, OpFConst0, OpFConst1, OpFConst2, OpDConst0, OpDConst1,
		OpILoad0, OpILoad1, OpILoad2, OpILoad3, OpLLoad0, OpLLoad1, OpLLoad2, OpLLoad3,
		OpFLoad0, OpFLoad1, OpFLoad2, OpFLoad3, OpDLoad0, OpDLoad1, OpDLoad2, OpDLoad3,
		OpALoad0, OpALoad1, OpALoad2, OpALoad3,
		OpIALoad, OpLALoad, OpFALoad, OpDALoad, OpAALoad, OpBALoad, OpCALoad, OpSALoad,
		OpIStore0, OpIStore1, OpIStore2, OpIStore3, OpLStore0, OpLStore1, OpLStore2, OpLStore3,
		OpFStore0, OpFStore1, OpFStore2, OpFStore3, OpDStore0, OpDStore1, OpDStore2, OpDStore3,
		OpAStore0, OpAStore1, OpAStore2, OpAStore3,
		OpIAStore, OpLAStore, OpFAStore, OpDAStore, OpAAStore, OpBAStore, OpCAStore, OpSAStore,
		OpPop, OpPop2, OpDup, OpDupX1, OpDupX2, OpDup2, OpDup2X1, OpDup2X2, OpSwap,
		OpIAdd, OpLAdd, OpFAdd, OpDAdd, OpISub, OpLSub, OpFSub, OpDSub,
		OpIMul, OpLMul, OpFMul, OpDMul, OpIDiv, OpLDiv, OpFDiv, OpDDiv,
		OpIRem, OpLRem, OpFRem, OpDRem, OpINeg, OpLNeg, OpFNeg, OpDNeg,
		OpIShl, OpLShl, OpIShr, OpLShr, OpIUShr, OpLUShr, OpIAnd, OpLAnd, OpIOr, OpLOr, OpIXor, OpLXor,
		OpI2L, OpI2F, OpI2D, OpL2I, OpL2F, OpL2D, OpF2I, OpF2L, OpF2D, OpD2I, OpD2L, OpD2F,
		OpI2B, OpI2C, OpI2S, OpLCmp, OpFCmpL, OpFCmpG, OpDCmpL, OpDCmpG,
		OpIReturn, OpLReturn, OpFReturn, OpDReturn, OpAReturn, OpReturn,
		OpArrayLength, OpAThrow, OpMonitorEnter, OpMonitorExit:
		// no operand
	default:
		return Instruction{}, UnsupportedBytecodeError(opByte)
	}
	return inst, nil
}

func (d *Disassembler) decodeTableSwitch(start int) (*TableSwitchOperand, error) {
	d.pos = start + 1 + padTo4(start+1)
	def, err := d.readU32()
	if err != nil {
		return nil, err
	}
	lowU, err := d.readU32()
	if err != nil {
		return nil, err
	}
	highU, err := d.readU32()
	if err != nil {
		return nil, err
	}
	low, high := int32(lowU), int32(highU)
	if high < low {
		return nil, MalformedClassFileError{Reason: "tableswitch high < low"}
	}
	ts := &TableSwitchOperand{Default: start + int(int32(def)), Low: low, High: high}
	n := int(high-low) + 1
	ts.Targets = make([]int, n)
	for i := 0; i < n; i++ {
		off, err := d.readU32()
		if err != nil {
			return nil, err
		}
		ts.Targets[i] = start + int(int32(off))
	}
	return ts, nil
}

func (d *Disassembler) decodeLookupSwitch(start int) (*LookupSwitchOperand, error) {
	d.pos = start + 1 + padTo4(start+1)
	def, err := d.readU32()
	if err != nil {
		return nil, err
	}
	n, err := d.readU32()
	if err != nil {
		return nil, err
	}
	ls := &LookupSwitchOperand{Default: start + int(int32(def))}
	ls.Pairs = make([]LookupSwitchPair, n)
	for i := range ls.Pairs {
		match, err := d.readU32()
		if err != nil {
			return nil, err
		}
		target, err := d.readU32()
		if err != nil {
			return nil, err
		}
		ls.Pairs[i] = LookupSwitchPair{Match: int32(match), Target: start + int(int32(target))}
	}
	return ls, nil
}

func (d *Disassembler) decodeWide(start int) (Instruction, error) {
	sub, err := d.readByte()
	if err != nil {
		return Instruction{}, err
	}
	idx, err := d.readU16()
	if err != nil {
		return Instruction{}, err
	}
	inst := Instruction{Offset: start, Op: Opcode(sub)}
	inst.Operand.VarIndex = idx
	if Opcode(sub) == OpIInc {
		delta, err := d.readU16()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand.Int = int32(int16(delta))
	}
	return inst, nil
}

func padTo4(pos int) int {
	if m := pos % 4; m != 0 {
		return 4 - m
	}
	return 0
}

func (op Opcode) String() string {
	return fmt.Sprintf("0x%02x", byte(op))
}
