// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package translate

import (
	"fmt"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/frame"
	"github.com/go-interpreter/classc/ssa"
)

// interpret executes one non-terminating instruction against cur, mutating
// its stack/locals, and returns the Statement it produced (nil if the
// instruction has no side effect worth recording, e.g. a bare dup or a
// constant push that the frame already models as an immediate Value).
func interpret(cur *frame.Frame, pool *classfile.ConstantPool, gen *ssa.VarIDGen, inst classfile.Instruction) (*Statement, error) {
	switch inst.Op {
	case classfile.OpNop:
		return nil, nil

	case classfile.OpAConstNull:
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstNull}))
		return nil, nil
	case classfile.OpIConstM1, classfile.OpIConst0, classfile.OpIConst1, classfile.OpIConst2, classfile.OpIConst3, classfile.OpIConst4, classfile.OpIConst5:
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstInt, Int: int32(inst.Op) - int32(classfile.OpIConst0)}))
		return nil, nil
	case classfile.OpLConst0, classfile.OpLConst1:
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstLong, Long: int64(inst.Op) - int64(classfile.OpLConst0)}))
		return nil, nil
	case classfile.OpFConst0, classfile.OpFConst1, classfile.OpFConst2:
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstFloat, Float: float32(int(inst.Op) - int(classfile.OpFConst0))}))
		return nil, nil
	case classfile.OpDConst0, classfile.OpDConst1:
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstDouble, Double: float64(int(inst.Op) - int(classfile.OpDConst0))}))
		return nil, nil
	case classfile.OpBIPush, classfile.OpSIPush:
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstInt, Int: inst.Operand.Int}))
		return nil, nil

	case classfile.OpLdc, classfile.OpLdcW:
		return interpretLdc(cur, pool, gen, inst.Operand.ConstantIndex)
	case classfile.OpLdc2W:
		return interpretLdc2(cur, pool, inst.Operand.ConstantIndex)

	case classfile.OpILoad, classfile.OpLLoad, classfile.OpFLoad, classfile.OpDLoad, classfile.OpALoad:
		cur.Load(int(inst.Operand.VarIndex))
		return nil, nil
	case classfile.OpILoad0, classfile.OpILoad1, classfile.OpILoad2, classfile.OpILoad3:
		cur.Load(int(inst.Op) - int(classfile.OpILoad0))
		return nil, nil
	case classfile.OpLLoad0, classfile.OpLLoad1, classfile.OpLLoad2, classfile.OpLLoad3:
		cur.Load(int(inst.Op) - int(classfile.OpLLoad0))
		return nil, nil
	case classfile.OpFLoad0, classfile.OpFLoad1, classfile.OpFLoad2, classfile.OpFLoad3:
		cur.Load(int(inst.Op) - int(classfile.OpFLoad0))
		return nil, nil
	case classfile.OpDLoad0, classfile.OpDLoad1, classfile.OpDLoad2, classfile.OpDLoad3:
		cur.Load(int(inst.Op) - int(classfile.OpDLoad0))
		return nil, nil
	case classfile.OpALoad0, classfile.OpALoad1, classfile.OpALoad2, classfile.OpALoad3:
		cur.Load(int(inst.Op) - int(classfile.OpALoad0))
		return nil, nil

	case classfile.OpIStore, classfile.OpLStore, classfile.OpFStore, classfile.OpDStore, classfile.OpAStore:
		cur.Store(int(inst.Operand.VarIndex))
		return nil, nil
	case classfile.OpIStore0, classfile.OpIStore1, classfile.OpIStore2, classfile.OpIStore3:
		cur.Store(int(inst.Op) - int(classfile.OpIStore0))
		return nil, nil
	case classfile.OpLStore0, classfile.OpLStore1, classfile.OpLStore2, classfile.OpLStore3:
		cur.Store(int(inst.Op) - int(classfile.OpLStore0))
		return nil, nil
	case classfile.OpFStore0, classfile.OpFStore1, classfile.OpFStore2, classfile.OpFStore3:
		cur.Store(int(inst.Op) - int(classfile.OpFStore0))
		return nil, nil
	case classfile.OpDStore0, classfile.OpDStore1, classfile.OpDStore2, classfile.OpDStore3:
		cur.Store(int(inst.Op) - int(classfile.OpDStore0))
		return nil, nil
	case classfile.OpAStore0, classfile.OpAStore1, classfile.OpAStore2, classfile.OpAStore3:
		cur.Store(int(inst.Op) - int(classfile.OpAStore0))
		return nil, nil

	case classfile.OpPop:
		cur.Pop()
		return nil, nil
	case classfile.OpPop2:
		cur.PopN(2)
		return nil, nil
	case classfile.OpDup:
		v := cur.Pop()
		cur.Push(v)
		cur.Push(v)
		return nil, nil
	case classfile.OpDupX1:
		v1, v2 := cur.Pop(), cur.Pop()
		cur.Push(v1)
		cur.Push(v2)
		cur.Push(v1)
		return nil, nil
	case classfile.OpDupX2:
		v1, v2, v3 := cur.Pop(), cur.Pop(), cur.Pop()
		cur.Push(v1)
		cur.Push(v3)
		cur.Push(v2)
		cur.Push(v1)
		return nil, nil
	case classfile.OpDup2:
		vs := cur.PopN(2)
		cur.Push(vs[0])
		cur.Push(vs[1])
		cur.Push(vs[0])
		cur.Push(vs[1])
		return nil, nil
	case classfile.OpSwap:
		v1, v2 := cur.Pop(), cur.Pop()
		cur.Push(v1)
		cur.Push(v2)
		return nil, nil

	case classfile.OpIAdd, classfile.OpLAdd, classfile.OpFAdd, classfile.OpDAdd:
		return binary(cur, gen, BinAdd)
	case classfile.OpISub, classfile.OpLSub, classfile.OpFSub, classfile.OpDSub:
		return binary(cur, gen, BinSub)
	case classfile.OpIMul, classfile.OpLMul, classfile.OpFMul, classfile.OpDMul:
		return binary(cur, gen, BinMul)
	case classfile.OpIDiv, classfile.OpLDiv, classfile.OpFDiv, classfile.OpDDiv:
		return binary(cur, gen, BinDiv)
	case classfile.OpIRem, classfile.OpLRem, classfile.OpFRem, classfile.OpDRem:
		return binary(cur, gen, BinRem)
	case classfile.OpIAnd, classfile.OpLAnd:
		return binary(cur, gen, BinAnd)
	case classfile.OpIOr, classfile.OpLOr:
		return binary(cur, gen, BinOr)
	case classfile.OpIXor, classfile.OpLXor:
		return binary(cur, gen, BinXor)
	case classfile.OpIShl, classfile.OpLShl:
		return binary(cur, gen, BinShl)
	case classfile.OpIShr, classfile.OpLShr:
		return binary(cur, gen, BinShr)
	case classfile.OpIUShr, classfile.OpLUShr:
		return binary(cur, gen, BinUShr)

	case classfile.OpINeg, classfile.OpLNeg, classfile.OpFNeg, classfile.OpDNeg:
		v := cur.Pop()
		id := gen.Gen(v.Type())
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprNeg, Value: v, Type: v.Type()}}, nil

	case classfile.OpI2L:
		return convert(cur, gen, ssa.TypeInt, ssa.TypeLong)
	case classfile.OpI2F:
		return convert(cur, gen, ssa.TypeInt, ssa.TypeFloat)
	case classfile.OpI2D:
		return convert(cur, gen, ssa.TypeInt, ssa.TypeDouble)
	case classfile.OpL2I:
		return convert(cur, gen, ssa.TypeLong, ssa.TypeInt)
	case classfile.OpL2F:
		return convert(cur, gen, ssa.TypeLong, ssa.TypeFloat)
	case classfile.OpL2D:
		return convert(cur, gen, ssa.TypeLong, ssa.TypeDouble)
	case classfile.OpF2I:
		return convert(cur, gen, ssa.TypeFloat, ssa.TypeInt)
	case classfile.OpF2L:
		return convert(cur, gen, ssa.TypeFloat, ssa.TypeLong)
	case classfile.OpF2D:
		return convert(cur, gen, ssa.TypeFloat, ssa.TypeDouble)
	case classfile.OpD2I:
		return convert(cur, gen, ssa.TypeDouble, ssa.TypeInt)
	case classfile.OpD2L:
		return convert(cur, gen, ssa.TypeDouble, ssa.TypeLong)
	case classfile.OpD2F:
		return convert(cur, gen, ssa.TypeDouble, ssa.TypeFloat)
	case classfile.OpI2B, classfile.OpI2C, classfile.OpI2S:
		return convert(cur, gen, ssa.TypeInt, ssa.TypeInt) // narrowing handled at emit time per spec.md §4.K

	case classfile.OpLCmp:
		return compare(cur, gen, CmpLong)
	case classfile.OpFCmpL:
		return compare(cur, gen, CmpFloatL)
	case classfile.OpFCmpG:
		return compare(cur, gen, CmpFloatG)
	case classfile.OpDCmpL:
		return compare(cur, gen, CmpDoubleL)
	case classfile.OpDCmpG:
		return compare(cur, gen, CmpDoubleG)

	case classfile.OpIInc:
		slot := int(inst.Operand.VarIndex)
		cur.Load(slot)
		old := cur.Pop()
		id := gen.Gen(ssa.TypeInt)
		delta := ssa.ConstValue(ssa.Const{Kind: ssa.ConstInt, Int: inst.Operand.Int})
		cur.Push(ssa.VarValue(id))
		cur.Store(slot)
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprBinary, Op: BinAdd, LHS: old, RHS: delta, Type: ssa.TypeInt}}, nil

	case classfile.OpGetStatic:
		return getStatic(cur, pool, gen, inst.Operand.ConstantIndex)
	case classfile.OpPutStatic:
		return putStatic(cur, pool, inst.Operand.ConstantIndex)
	case classfile.OpGetField:
		return getField(cur, pool, gen, inst.Operand.ConstantIndex)
	case classfile.OpPutField:
		return putField(cur, pool, inst.Operand.ConstantIndex)

	case classfile.OpInvokeStatic:
		return invoke(cur, pool, gen, InvokeStatic, inst.Operand.ConstantIndex)
	case classfile.OpInvokeSpecial:
		return invoke(cur, pool, gen, InvokeSpecial, inst.Operand.ConstantIndex)
	case classfile.OpInvokeVirtual:
		return invoke(cur, pool, gen, InvokeVirtual, inst.Operand.ConstantIndex)
	case classfile.OpInvokeInterface:
		return invoke(cur, pool, gen, InvokeInterface, inst.Operand.ConstantIndex)

	case classfile.OpNew:
		className, err := pool.ClassName(inst.Operand.ConstantIndex)
		if err != nil {
			return nil, err
		}
		id := gen.Gen(ssa.TypeRef)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprNew, ClassName: className}}, nil

	case classfile.OpNewArray:
		count := cur.Pop()
		id := gen.Gen(ssa.TypeRef)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprNewArray, Value: count, Type: primitiveTypeOf(inst.Operand.Int)}}, nil

	case classfile.OpANewArray:
		count := cur.Pop()
		className, err := pool.ClassName(inst.Operand.ConstantIndex)
		if err != nil {
			return nil, err
		}
		id := gen.Gen(ssa.TypeRef)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprANewArray, Value: count, ClassName: className}}, nil

	case classfile.OpMultiANewArray:
		className, err := pool.ClassName(inst.Operand.ConstantIndex)
		if err != nil {
			return nil, err
		}
		dims := cur.PopN(int(inst.Operand.Dimensions))
		id := gen.Gen(ssa.TypeRef)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprMultiANewArray, ClassName: className, Dims: dims}}, nil

	case classfile.OpArrayLength:
		arr := cur.Pop()
		id := gen.Gen(ssa.TypeInt)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprArrayLength, Object: arr}}, nil

	case classfile.OpIALoad, classfile.OpLALoad, classfile.OpFALoad, classfile.OpDALoad, classfile.OpAALoad,
		classfile.OpBALoad, classfile.OpCALoad, classfile.OpSALoad:
		return arrayLoad(cur, gen, elementTypeOf(inst.Op))

	case classfile.OpIAStore, classfile.OpLAStore, classfile.OpFAStore, classfile.OpDAStore, classfile.OpAAStore,
		classfile.OpBAStore, classfile.OpCAStore, classfile.OpSAStore:
		return arrayStore(cur, elementTypeOf(storeLoadOpcode(inst.Op)))

	case classfile.OpCheckCast:
		className, err := pool.ClassName(inst.Operand.ConstantIndex)
		if err != nil {
			return nil, err
		}
		v := cur.Pop()
		id := gen.Gen(ssa.TypeRef)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprCheckCast, Object: v, ClassName: className}}, nil

	case classfile.OpInstanceOf:
		className, err := pool.ClassName(inst.Operand.ConstantIndex)
		if err != nil {
			return nil, err
		}
		v := cur.Pop()
		id := gen.Gen(ssa.TypeInt)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprInstanceOf, Object: v, ClassName: className}}, nil

	case classfile.OpMonitorEnter, classfile.OpMonitorExit:
		// classc targets a single-threaded AOT runtime (spec.md Non-goals
		// exclude a concurrent object model); the monitor stack discipline
		// is dropped and only the operand is consumed.
		cur.Pop()
		return nil, nil

	default:
		return nil, fmt.Errorf("translate: unhandled opcode %v", inst.Op)
	}
}

func binary(cur *frame.Frame, gen *ssa.VarIDGen, op BinaryOp) (*Statement, error) {
	rhs := cur.Pop()
	lhs := cur.Pop()
	id := gen.Gen(lhs.Type())
	cur.Push(ssa.VarValue(id))
	return &Statement{Assign: &id, Expr: Expr{Kind: ExprBinary, Op: op, LHS: lhs, RHS: rhs, Type: lhs.Type()}}, nil
}

func convert(cur *frame.Frame, gen *ssa.VarIDGen, from, to ssa.Type) (*Statement, error) {
	v := cur.Pop()
	id := gen.Gen(to)
	cur.Push(ssa.VarValue(id))
	return &Statement{Assign: &id, Expr: Expr{Kind: ExprConvert, Value: v, From: from, To: to}}, nil
}

func compare(cur *frame.Frame, gen *ssa.VarIDGen, kind CompareOp) (*Statement, error) {
	rhs := cur.Pop()
	lhs := cur.Pop()
	id := gen.Gen(ssa.TypeInt)
	cur.Push(ssa.VarValue(id))
	return &Statement{Assign: &id, Expr: Expr{Kind: ExprCompare, Cmp: kind, LHS: lhs, RHS: rhs}}, nil
}

func getStatic(cur *frame.Frame, pool *classfile.ConstantPool, gen *ssa.VarIDGen, idx classfile.ConstantIndex) (*Statement, error) {
	field, err := pool.FieldRef(idx)
	if err != nil {
		return nil, err
	}
	ft, err := classfile.ParseFieldType(field.Descriptor)
	if err != nil {
		return nil, err
	}
	id := gen.Gen(typeOf(ft))
	cur.Push(ssa.VarValue(id))
	return &Statement{Assign: &id, Expr: Expr{Kind: ExprGetStatic, ConstantIndex: idx, Type: typeOf(ft)}}, nil
}

func putStatic(cur *frame.Frame, pool *classfile.ConstantPool, idx classfile.ConstantIndex) (*Statement, error) {
	if _, err := pool.FieldRef(idx); err != nil {
		return nil, err
	}
	v := cur.Pop()
	return &Statement{Expr: Expr{Kind: ExprPutStatic, ConstantIndex: idx, Value: v}}, nil
}

func getField(cur *frame.Frame, pool *classfile.ConstantPool, gen *ssa.VarIDGen, idx classfile.ConstantIndex) (*Statement, error) {
	field, err := pool.FieldRef(idx)
	if err != nil {
		return nil, err
	}
	ft, err := classfile.ParseFieldType(field.Descriptor)
	if err != nil {
		return nil, err
	}
	obj := cur.Pop()
	id := gen.Gen(typeOf(ft))
	cur.Push(ssa.VarValue(id))
	return &Statement{Assign: &id, Expr: Expr{Kind: ExprGetField, ConstantIndex: idx, Object: obj, Type: typeOf(ft)}}, nil
}

func putField(cur *frame.Frame, pool *classfile.ConstantPool, idx classfile.ConstantIndex) (*Statement, error) {
	if _, err := pool.FieldRef(idx); err != nil {
		return nil, err
	}
	v := cur.Pop()
	obj := cur.Pop()
	return &Statement{Expr: Expr{Kind: ExprPutField, ConstantIndex: idx, Object: obj, Value: v}}, nil
}

func invoke(cur *frame.Frame, pool *classfile.ConstantPool, gen *ssa.VarIDGen, kind InvokeKind, idx classfile.ConstantIndex) (*Statement, error) {
	var ref classfile.MemberRef
	var err error
	if kind == InvokeInterface {
		ref, err = pool.InterfaceMethodRef(idx)
	} else {
		ref, err = pool.MethodRef(idx)
	}
	if err != nil {
		return nil, err
	}
	md, err := classfile.ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return nil, err
	}

	args := cur.PopN(len(md.Params))
	var receiver ssa.Value
	if kind != InvokeStatic {
		receiver = cur.Pop()
	}

	ie := &InvokeExpr{Kind: kind, ConstantIndex: idx, Receiver: receiver, Args: args}
	if md.Returns == nil {
		return &Statement{Expr: Expr{Kind: ExprInvoke, Invoke: ie}}, nil
	}
	retType := typeOf(*md.Returns)
	id := gen.Gen(retType)
	cur.Push(ssa.VarValue(id))
	return &Statement{Assign: &id, Expr: Expr{Kind: ExprInvoke, Invoke: ie, Type: retType}}, nil
}

func arrayLoad(cur *frame.Frame, gen *ssa.VarIDGen, elemType ssa.Type) (*Statement, error) {
	index := cur.Pop()
	arr := cur.Pop()
	id := gen.Gen(elemType)
	cur.Push(ssa.VarValue(id))
	return &Statement{Assign: &id, Expr: Expr{Kind: ExprArrayLoad, Object: arr, Index: index, Type: elemType}}, nil
}

func arrayStore(cur *frame.Frame, elemType ssa.Type) (*Statement, error) {
	v := cur.Pop()
	index := cur.Pop()
	arr := cur.Pop()
	return &Statement{Expr: Expr{Kind: ExprArrayStore, Object: arr, Index: index, Value: v, Type: elemType}}, nil
}

func interpretLdc(cur *frame.Frame, pool *classfile.ConstantPool, gen *ssa.VarIDGen, idx classfile.ConstantIndex) (*Statement, error) {
	tag, err := pool.Tag(idx)
	if err != nil {
		return nil, err
	}
	switch tag {
	case classfile.TagString:
		id := gen.Gen(ssa.TypeRef)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprStringConst, ConstantIndex: idx}}, nil
	case classfile.TagInteger:
		v, err := pool.Integer(idx)
		if err != nil {
			return nil, err
		}
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstInt, Int: v}))
		return nil, nil
	case classfile.TagFloat:
		v, err := pool.Float(idx)
		if err != nil {
			return nil, err
		}
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstFloat, Float: v}))
		return nil, nil
	case classfile.TagClass:
		name, err := pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		id := gen.Gen(ssa.TypeRef)
		cur.Push(ssa.VarValue(id))
		return &Statement{Assign: &id, Expr: Expr{Kind: ExprClassConst, ClassName: name, ConstantIndex: idx}}, nil
	default:
		return nil, fmt.Errorf("translate: ldc of unsupported constant kind (tag %d) at index %d", tag, idx)
	}
}

func interpretLdc2(cur *frame.Frame, pool *classfile.ConstantPool, idx classfile.ConstantIndex) (*Statement, error) {
	tag, err := pool.Tag(idx)
	if err != nil {
		return nil, err
	}
	switch tag {
	case classfile.TagLong:
		v, err := pool.Long(idx)
		if err != nil {
			return nil, err
		}
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstLong, Long: v}))
		return nil, nil
	case classfile.TagDouble:
		v, err := pool.Double(idx)
		if err != nil {
			return nil, err
		}
		cur.Push(ssa.ConstValue(ssa.Const{Kind: ssa.ConstDouble, Double: v}))
		return nil, nil
	default:
		return nil, fmt.Errorf("translate: ldc2_w of unsupported constant kind (tag %d) at index %d", tag, idx)
	}
}

func typeOf(ft classfile.FieldType) ssa.Type {
	switch ft.Kind {
	case classfile.KindBase:
		switch ft.Base {
		case classfile.BaseLong:
			return ssa.TypeLong
		case classfile.BaseFloat:
			return ssa.TypeFloat
		case classfile.BaseDouble:
			return ssa.TypeDouble
		default:
			return ssa.TypeInt
		}
	default:
		return ssa.TypeRef
	}
}

func primitiveTypeOf(arrayTypeCode int32) ssa.Type {
	// JVM spec Table 6.5.newarray-A: 4=boolean 5=char 6=float 7=double
	// 8=byte 9=short 10=int 11=long
	switch arrayTypeCode {
	case 6:
		return ssa.TypeFloat
	case 7:
		return ssa.TypeDouble
	case 11:
		return ssa.TypeLong
	default:
		return ssa.TypeInt
	}
}

func elementTypeOf(op classfile.Opcode) ssa.Type {
	switch op {
	case classfile.OpLALoad, classfile.OpLAStore:
		return ssa.TypeLong
	case classfile.OpFALoad, classfile.OpFAStore:
		return ssa.TypeFloat
	case classfile.OpDALoad, classfile.OpDAStore:
		return ssa.TypeDouble
	case classfile.OpAALoad, classfile.OpAAStore:
		return ssa.TypeRef
	default:
		return ssa.TypeInt
	}
}

// storeLoadOpcode normalizes an *astore opcode to its *aload counterpart so
// elementTypeOf's switch (written in terms of load opcodes) can classify it.
func storeLoadOpcode(store classfile.Opcode) classfile.Opcode {
	switch store {
	case classfile.OpLAStore:
		return classfile.OpLALoad
	case classfile.OpFAStore:
		return classfile.OpFALoad
	case classfile.OpDAStore:
		return classfile.OpDALoad
	case classfile.OpAAStore:
		return classfile.OpAALoad
	default:
		return classfile.OpIALoad
	}
}
