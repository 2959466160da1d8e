// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"fmt"
	"strings"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/mangle"
	"github.com/go-interpreter/classc/ssa"
	"github.com/go-interpreter/classc/translate"
)

// ssaTypeOf widens a declared field type to the translator's runtime type
// lattice, mirroring translate.typeOf (unexported there; the emitter needs
// the same mapping to seed a method's parameter VarIDs before calling
// translate.Run).
func ssaTypeOf(ft classfile.FieldType) ssa.Type {
	if ft.Kind != classfile.KindBase {
		return ssa.TypeRef
	}
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
}

// methodEmitter holds the per-method state threaded through statement and
// terminator rendering: the output buffer, a monotonic register counter for
// intermediate GEP/bitcast/load values the translator's statements don't
// themselves name, and the shared lookups needed to re-resolve constant-pool
// references at emission time.
type methodEmitter struct {
	out       *strings.Builder
	gen       *Generator
	pool      *classfile.ConstantPool
	className string
	tmp       int
}

func (me *methodEmitter) newTemp() string {
	me.tmp++
	return fmt.Sprintf("%%t%d", me.tmp)
}

// valueRef renders an SSA value as an operand: a variable reference or an
// inline constant.
func valueRef(v ssa.Value) string {
	if v.Kind == ssa.ValueVar {
		return v.Var.String()
	}
	switch v.Const.Kind {
	case ssa.ConstInt:
		return fmt.Sprintf("%d", v.Const.Int)
	case ssa.ConstLong:
		return fmt.Sprintf("%d", v.Const.Long)
	case ssa.ConstFloat:
		return fmt.Sprintf("%g", v.Const.Float)
	case ssa.ConstDouble:
		return fmt.Sprintf("%g", v.Const.Double)
	case ssa.ConstNull:
		return "zeroinitializer"
	default:
		return "0"
	}
}

func typedValue(v ssa.Value) string {
	return llvmType(v.Type()) + " " + valueRef(v)
}

// renderMethod emits one method: an external declaration for a native
// method, a minimal call-the-runtime-trap body for an abstract method, or a
// full function definition translated from its Code attribute.
func (g *Generator) renderMethod(out *strings.Builder, className string, method classfile.MethodInfo, pool *classfile.ConstantPool) error {
	descriptor := method.Descriptor
	symbol := mangle.MangleMethodName(className, method.Name, descriptor)
	isStatic := method.AccessFlags.Has(classfile.AccStatic)

	gen := &ssa.VarIDGen{}
	var args []ssa.Value
	sigParts := make([]string, 0, len(descriptor.Params)+1)
	if !isStatic {
		recv := gen.Gen(ssa.TypeRef)
		args = append(args, ssa.VarValue(recv))
		sigParts = append(sigParts, refType+" "+recv.String())
	}
	for _, p := range descriptor.Params {
		id := gen.Gen(ssaTypeOf(p))
		args = append(args, ssa.VarValue(id))
		sigParts = append(sigParts, llvmType(ssaTypeOf(p))+" "+id.String())
	}

	retType := "void"
	if descriptor.Returns != nil {
		retType = llvmFieldType(*descriptor.Returns)
	}

	if method.AccessFlags.Has(classfile.AccNative) {
		fmt.Fprintf(out, "declare %s @%s(%s)\n\n", retType, symbol, strings.Join(sigParts, ", "))
		return nil
	}

	fmt.Fprintf(out, "define %s @%s(%s) {\n", retType, symbol, strings.Join(sigParts, ", "))
	if method.AccessFlags.Has(classfile.AccAbstract) {
		out.WriteString("entry:\n")
		out.WriteString("  call void @_Jrt_abstract()\n")
		out.WriteString("  unreachable\n")
		out.WriteString("}\n\n")
		return nil
	}

	code := method.Code()
	if code == nil {
		return fmt.Errorf("emit: %s.%s carries neither native/abstract flags nor a Code attribute", className, method.Name)
	}

	cfg, err := translate.Run(code, pool, args)
	if err != nil {
		return fmt.Errorf("emit: %s.%s: %w", className, method.Name, err)
	}

	me := &methodEmitter{out: out, gen: g, pool: pool, className: className}
	for _, addr := range cfg.Order {
		bb := cfg.Blocks[addr]
		fmt.Fprintf(out, "L%d:\n", addr)
		for _, phi := range bb.Phis {
			me.renderPhi(cfg, addr, phi)
		}
		for _, stmt := range bb.Statements {
			if err := me.renderStatement(stmt); err != nil {
				return fmt.Errorf("emit: %s.%s: %w", className, method.Name, err)
			}
		}
		me.renderTerminator(bb.Branch)
	}
	out.WriteString("}\n\n")
	logger.Debugw("emitted method", "class", className, "method", method.Name)
	return nil
}

func (me *methodEmitter) renderPhi(cfg *translate.CFG, target int, phi translate.Phi) {
	typ := llvmType(phi.Var.Type)
	preds := translate.Predecessors(cfg, target)
	operands := make([]string, 0, len(preds))
	for _, p := range preds {
		val := "undef"
		for _, b := range phi.Bindings {
			if b.From == p {
				val = valueRef(b.Value)
				break
			}
		}
		operands = append(operands, fmt.Sprintf("[ %s, %%L%d ]", val, p))
	}
	fmt.Fprintf(me.out, "  %s = phi %s %s\n", phi.Var.String(), typ, strings.Join(operands, ", "))
}

// renderStatement dispatches one translated statement to its IR lowering,
// re-resolving any constant-pool reference the translator left unresolved
// (field refs, method refs, string/class constants) against me.pool.
func (me *methodEmitter) renderStatement(stmt translate.Statement) error {
	var assign string
	if stmt.Assign != nil {
		assign = stmt.Assign.String()
	}
	e := stmt.Expr

	switch e.Kind {
	case translate.ExprStringConst:
		text, utf8Index, err := me.pool.String(e.ConstantIndex)
		if err != nil {
			return err
		}
		n := len(text) + 1
		fmt.Fprintf(me.out, "  %s = call %%ref @_Jrt_ldstr(i32 %d, i8* getelementptr inbounds ([%d x i8], [%d x i8]* @.str%d, i32 0, i32 0))\n",
			assign, utf8Index, n, n, utf8Index)

	case translate.ExprClassConst:
		fmt.Fprintf(me.out, "  %s = bitcast %%ref zeroinitializer to %%ref ; class literal %s\n", assign, e.ClassName)

	case translate.ExprGetStatic:
		ref, ft, typ, err := me.resolveField(e.ConstantIndex)
		if err != nil {
			return err
		}
		symbol := mangle.MangleFieldName(ref.ClassName, ref.Name)
		_ = ft
		fmt.Fprintf(me.out, "  %s = load %s, %s* @%s\n", assign, typ, typ, symbol)

	case translate.ExprPutStatic:
		ref, _, typ, err := me.resolveField(e.ConstantIndex)
		if err != nil {
			return err
		}
		symbol := mangle.MangleFieldName(ref.ClassName, ref.Name)
		fmt.Fprintf(me.out, "  store %s %s, %s* @%s\n", typ, valueRef(e.Value), typ, symbol)

	case translate.ExprGetField:
		ref, ft, typ, err := me.resolveField(e.ConstantIndex)
		if err != nil {
			return err
		}
		ptr, err := me.fieldPointer(ref, ft, e.Object)
		if err != nil {
			return err
		}
		fmt.Fprintf(me.out, "  %s = load %s, %s* %s\n", assign, typ, typ, ptr)

	case translate.ExprPutField:
		ref, ft, typ, err := me.resolveField(e.ConstantIndex)
		if err != nil {
			return err
		}
		ptr, err := me.fieldPointer(ref, ft, e.Object)
		if err != nil {
			return err
		}
		fmt.Fprintf(me.out, "  store %s %s, %s* %s\n", typ, valueRef(e.Value), typ, ptr)

	case translate.ExprInvoke:
		return me.renderInvoke(assign, e.Invoke)

	case translate.ExprNew:
		vt, err := me.gen.VTables.Get(e.ClassName)
		if err != nil {
			return err
		}
		objType := objectTypeName(e.ClassName)
		vtSym := vtableTypeName(e.ClassName)
		_ = vt
		szPtr := me.newTemp()
		fmt.Fprintf(me.out, "  %s = getelementptr %%%s, %%%s* null, i32 1\n", szPtr, objType, objType)
		szInt := me.newTemp()
		fmt.Fprintf(me.out, "  %s = ptrtoint %%%s* %s to i64\n", szInt, objType, szPtr)
		fmt.Fprintf(me.out, "  %s = call %%ref @_Jrt_new(i64 %s, i8* bitcast (%%%s* @%s to i8*))\n", assign, szInt, vtSym, vtSym)

	case translate.ExprNewArray:
		return me.renderArrayAlloc(assign, llvmType(e.Type), arrayElemSize(e.Type), e.Value)

	case translate.ExprANewArray:
		return me.renderArrayAlloc(assign, refType, 16, e.Value)

	case translate.ExprMultiANewArray:
		// Only the outermost dimension is allocated here; nested dimensions
		// of a multi-dimensional array are left for the runtime's own
		// recursive allocation helper, since classc's constant-size array
		// struct cannot itself express a jagged nested shape.
		if len(e.Dims) == 0 {
			return fmt.Errorf("emit: multianewarray of %s with no dimensions", e.ClassName)
		}
		return me.renderArrayAlloc(assign, refType, 16, e.Dims[0])

	case translate.ExprArrayLength:
		return me.renderArrayLength(assign, e.Object)

	case translate.ExprArrayLoad:
		ptr, err := me.arrayElementPointer(llvmType(e.Type), e.Object, e.Index)
		if err != nil {
			return err
		}
		typ := llvmType(e.Type)
		fmt.Fprintf(me.out, "  %s = load %s, %s* %s\n", assign, typ, typ, ptr)

	case translate.ExprArrayStore:
		ptr, err := me.arrayElementPointer(llvmType(e.Type), e.Object, e.Index)
		if err != nil {
			return err
		}
		typ := llvmType(e.Type)
		fmt.Fprintf(me.out, "  store %s %s, %s* %s\n", typ, valueRef(e.Value), typ, ptr)

	case translate.ExprCheckCast:
		// No runtime type tag is modeled (the runtime extern set carries no
		// RTTI check); a checked cast is a value-preserving relabeling.
		fmt.Fprintf(me.out, "  %s = bitcast %%ref %s to %%ref ; checkcast %s\n", assign, valueRef(e.Object), e.ClassName)

	case translate.ExprInstanceOf:
		// Same scope limitation as checkcast: without a runtime type tag,
		// instanceof cannot be evaluated, so it is conservatively true.
		fmt.Fprintf(me.out, "  %s = add i32 1, 0 ; instanceof %s (not modeled)\n", assign, e.ClassName)

	case translate.ExprBinary:
		return me.renderBinary(assign, e)

	case translate.ExprNeg:
		typ := llvmType(e.Type)
		if e.Type == ssa.TypeFloat || e.Type == ssa.TypeDouble {
			fmt.Fprintf(me.out, "  %s = fneg %s %s\n", assign, typ, valueRef(e.Value))
		} else {
			fmt.Fprintf(me.out, "  %s = sub %s 0, %s\n", assign, typ, valueRef(e.Value))
		}

	case translate.ExprConvert:
		me.renderConvert(assign, e)

	case translate.ExprCompare:
		me.renderCompare(assign, e)

	default:
		return fmt.Errorf("emit: unhandled expression kind %d", e.Kind)
	}
	return nil
}

func (me *methodEmitter) resolveField(idx classfile.ConstantIndex) (classfile.MemberRef, classfile.FieldType, string, error) {
	ref, err := me.pool.FieldRef(idx)
	if err != nil {
		return classfile.MemberRef{}, classfile.FieldType{}, "", err
	}
	ft, err := classfile.ParseFieldType(ref.Descriptor)
	if err != nil {
		return classfile.MemberRef{}, classfile.FieldType{}, "", err
	}
	return ref, ft, llvmFieldType(ft), nil
}

func (me *methodEmitter) fieldPointer(ref classfile.MemberRef, ft classfile.FieldType, object ssa.Value) (string, error) {
	fl, err := me.gen.Fields.Get(ref.ClassName)
	if err != nil {
		return "", err
	}
	offset, ok := fl.Offset(ref.Name, ft)
	if !ok {
		return "", fmt.Errorf("emit: %s.%s not found in field layout", ref.ClassName, ref.Name)
	}
	objType := objectTypeName(ref.ClassName)
	objPtr := me.newTemp()
	fmt.Fprintf(me.out, "  %s = extractvalue %%ref %s, 0\n", objPtr, valueRef(object))
	typed := me.newTemp()
	fmt.Fprintf(me.out, "  %s = bitcast i8* %s to %%%s*\n", typed, objPtr, objType)
	slot := me.newTemp()
	fmt.Fprintf(me.out, "  %s = getelementptr %%%s, %%%s* %s, i32 0, i32 %d\n", slot, objType, objType, typed, offset)
	return slot, nil
}

func retTypeLLVM(md classfile.MethodDescriptor) string {
	if md.Returns == nil {
		return "void"
	}
	return llvmFieldType(*md.Returns)
}

func (me *methodEmitter) renderInvoke(assign string, inv *translate.InvokeExpr) error {
	var ref classfile.MemberRef
	var err error
	if inv.Kind == translate.InvokeInterface {
		ref, err = me.pool.InterfaceMethodRef(inv.ConstantIndex)
	} else {
		ref, err = me.pool.MethodRef(inv.ConstantIndex)
	}
	if err != nil {
		return err
	}
	md, err := classfile.ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return err
	}

	callArgs := make([]string, 0, len(inv.Args)+1)
	if inv.Kind != translate.InvokeStatic {
		callArgs = append(callArgs, typedValue(inv.Receiver))
	}
	for _, a := range inv.Args {
		callArgs = append(callArgs, typedValue(a))
	}
	argList := strings.Join(callArgs, ", ")
	ret := retTypeLLVM(md)

	var callee string
	switch inv.Kind {
	case translate.InvokeStatic, translate.InvokeSpecial:
		callee = "@" + mangle.MangleMethodName(ref.ClassName, ref.Name, md)

	case translate.InvokeVirtual:
		fnPtr, err := me.vtableSlotLoad(ref.ClassName, ref.Name, md, inv.Receiver)
		if err != nil {
			return err
		}
		callee = fnPtr

	case translate.InvokeInterface:
		// Simplification: the object's vtable pointer is reinterpreted
		// directly as the interface's own vtable layout rather than walking
		// the interface sub-table recorded at a dynamic offset, so this
		// only resolves correctly when the interface's methods happen to
		// sit at the front of the implementer's vtable.
		fnPtr, err := me.vtableSlotLoad(ref.ClassName, ref.Name, md, inv.Receiver)
		if err != nil {
			return err
		}
		callee = fnPtr

	default:
		return fmt.Errorf("emit: unknown invoke kind %d", inv.Kind)
	}

	if assign != "" {
		fmt.Fprintf(me.out, "  %s = call %s %s(%s)\n", assign, ret, callee, argList)
	} else {
		fmt.Fprintf(me.out, "  call %s %s(%s)\n", ret, callee, argList)
	}
	return nil
}

// vtableSlotLoad extracts receiver's vtable pointer, casts it to declName's
// vtable type, and loads the function pointer at the resolved method's
// slot (offset + 1, slot 0 being the method-count header), per spec.md
// §4.K point 5.
func (me *methodEmitter) vtableSlotLoad(declName, methodName string, md classfile.MethodDescriptor, receiver ssa.Value) (string, error) {
	vt, err := me.gen.VTables.Get(declName)
	if err != nil {
		return "", err
	}
	target, ok := vt.Get(methodName, md)
	if !ok {
		return "", fmt.Errorf("emit: %s.%s not found in vtable", declName, methodName)
	}
	vtTypeName := vtableTypeName(declName)
	fnType := functionType(target.Descriptor)

	vtPtr := me.newTemp()
	fmt.Fprintf(me.out, "  %s = extractvalue %%ref %s, 1\n", vtPtr, valueRef(receiver))
	typed := me.newTemp()
	fmt.Fprintf(me.out, "  %s = bitcast i8* %s to %%%s*\n", typed, vtPtr, vtTypeName)
	slotPtr := me.newTemp()
	fmt.Fprintf(me.out, "  %s = getelementptr %%%s, %%%s* %s, i32 0, i32 %d\n", slotPtr, vtTypeName, vtTypeName, typed, target.SlotLower+1)
	fn := me.newTemp()
	fmt.Fprintf(me.out, "  %s = load %s, %s* %s\n", fn, fnType, fnType, slotPtr)
	return fn, nil
}

// arrayElemSize reports the byte width of one array member in the array's
// backing allocation, used to compute the allocation size before the fixed
// 64-byte header.
func arrayElemSize(t ssa.Type) int {
	switch t {
	case ssa.TypeLong, ssa.TypeDouble:
		return 8
	case ssa.TypeRef:
		return 16
	default:
		return 4
	}
}

// renderArrayAlloc implements spec.md §4.K's "New array" path: widen the
// count to 64 bits, multiply by the element size, add the fixed 64-byte
// header, allocate against java/lang/Object's vtable (arrays carry no
// dispatch table of their own), then write the length field. The
// allocation uses an anonymous {i32, [0 x elem]} struct literal rather than
// a named array-class type, since the exact array-class identity (and
// therefore its declared named type) is not always recoverable at this
// bytecode instruction -- structurally equivalent either way.
func (me *methodEmitter) renderArrayAlloc(assign, elemType string, elemSize int, count ssa.Value) error {
	rootVT, err := me.gen.VTables.Get("java/lang/Object")
	if err != nil {
		return err
	}
	_ = rootVT
	vtSym := vtableTypeName("java/lang/Object")

	wide := me.newTemp()
	fmt.Fprintf(me.out, "  %s = zext i32 %s to i64\n", wide, valueRef(count))
	size := me.newTemp()
	fmt.Fprintf(me.out, "  %s = mul i64 %s, %d\n", size, wide, elemSize)
	total := me.newTemp()
	fmt.Fprintf(me.out, "  %s = add i64 %s, 64\n", total, size)
	raw := me.newTemp()
	fmt.Fprintf(me.out, "  %s = call %%ref @_Jrt_new(i64 %s, i8* bitcast (%%%s* @%s to i8*))\n", raw, total, vtSym, vtSym)

	objPtr := me.newTemp()
	fmt.Fprintf(me.out, "  %s = extractvalue %%ref %s, 0\n", objPtr, raw)
	typed := me.newTemp()
	fmt.Fprintf(me.out, "  %s = bitcast i8* %s to {i32, [0 x %s]}*\n", typed, objPtr, elemType)
	lenPtr := me.newTemp()
	fmt.Fprintf(me.out, "  %s = getelementptr {i32, [0 x %s]}, {i32, [0 x %s]}* %s, i32 0, i32 0\n", lenPtr, elemType, elemType, typed)
	fmt.Fprintf(me.out, "  store i32 %s, i32* %s\n", valueRef(count), lenPtr)

	fmt.Fprintf(me.out, "  %s = bitcast %%ref %s to %%ref ; array alloc\n", assign, raw)
	return nil
}

func (me *methodEmitter) renderArrayLength(assign string, object ssa.Value) error {
	objPtr := me.newTemp()
	fmt.Fprintf(me.out, "  %s = extractvalue %%ref %s, 0\n", objPtr, valueRef(object))
	typed := me.newTemp()
	fmt.Fprintf(me.out, "  %s = bitcast i8* %s to i32*\n", typed, objPtr)
	fmt.Fprintf(me.out, "  %s = load i32, i32* %s\n", assign, typed)
	return nil
}

// arrayElementPointer implements spec.md §4.K's "Array access" path: extract
// the object pointer, reinterpret the backing allocation as
// {i32 length, [0 x elem]}, and GEP past the length word to the indexed
// member.
func (me *methodEmitter) arrayElementPointer(elemType string, object, index ssa.Value) (string, error) {
	objPtr := me.newTemp()
	fmt.Fprintf(me.out, "  %s = extractvalue %%ref %s, 0\n", objPtr, valueRef(object))
	typed := me.newTemp()
	fmt.Fprintf(me.out, "  %s = bitcast i8* %s to {i32, [0 x %s]}*\n", typed, objPtr, elemType)
	elemPtr := me.newTemp()
	fmt.Fprintf(me.out, "  %s = getelementptr {i32, [0 x %s]}, {i32, [0 x %s]}* %s, i32 0, i32 1, i32 %s\n",
		elemPtr, elemType, elemType, typed, valueRef(index))
	return elemPtr, nil
}

func (me *methodEmitter) renderBinary(assign string, e translate.Expr) error {
	typ := llvmType(e.Type)
	isFloat := e.Type == ssa.TypeFloat || e.Type == ssa.TypeDouble

	lhs := valueRef(e.LHS)
	rhs := valueRef(e.RHS)

	if e.Op == translate.BinShl || e.Op == translate.BinShr || e.Op == translate.BinUShr {
		// JVM shift semantics mask the shift distance to the low bits of
		// the shifted type's width (5 bits for int, 6 for long) before the
		// shift itself, per spec.md §4.F -- otherwise a count >= the width
		// is poison in LLVM rather than the JVM-defined wraparound.
		mask := "31"
		if e.Type == ssa.TypeLong {
			mask = "63"
		}
		masked := me.newTemp()
		fmt.Fprintf(me.out, "  %s = and i32 %s, %s\n", masked, rhs, mask)
		rhs = masked

		if e.Type == ssa.TypeLong {
			wide := me.newTemp()
			fmt.Fprintf(me.out, "  %s = zext i32 %s to i64\n", wide, rhs)
			rhs = wide
		}
	}

	var op string
	switch e.Op {
	case translate.BinAdd:
		op = pick(isFloat, "fadd", "add")
	case translate.BinSub:
		op = pick(isFloat, "fsub", "sub")
	case translate.BinMul:
		op = pick(isFloat, "fmul", "mul")
	case translate.BinDiv:
		op = pick(isFloat, "fdiv", "sdiv")
	case translate.BinRem:
		op = pick(isFloat, "frem", "srem")
	case translate.BinAnd:
		op = "and"
	case translate.BinOr:
		op = "or"
	case translate.BinXor:
		op = "xor"
	case translate.BinShl:
		op = "shl"
	case translate.BinShr:
		op = "ashr"
	case translate.BinUShr:
		op = "lshr"
	default:
		return fmt.Errorf("emit: unknown binary op %d", e.Op)
	}
	fmt.Fprintf(me.out, "  %s = %s %s %s, %s\n", assign, op, typ, lhs, rhs)
	return nil
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

func (me *methodEmitter) renderConvert(assign string, e translate.Expr) {
	v := valueRef(e.Value)
	fromTy := llvmType(e.From)

	if e.From == ssa.TypeInt && e.To == ssa.TypeInt {
		// i2b/i2c/i2s collapse to this identity-typed conversion in
		// translate; per spec.md §4.K, narrowing is an 8-bit truncate
		// followed by a zero-extend back to 32 bits.
		t := me.newTemp()
		fmt.Fprintf(me.out, "  %s = trunc i32 %s to i8\n", t, v)
		fmt.Fprintf(me.out, "  %s = zext i8 %s to i32\n", assign, t)
		return
	}

	toTy := llvmType(e.To)
	var op string
	switch {
	case e.From == ssa.TypeInt && e.To == ssa.TypeLong:
		op = "sext"
	case e.From == ssa.TypeLong && e.To == ssa.TypeInt:
		op = "trunc"
	case e.From == ssa.TypeFloat && e.To == ssa.TypeDouble:
		op = "fpext"
	case e.From == ssa.TypeDouble && e.To == ssa.TypeFloat:
		op = "fptrunc"
	case (e.From == ssa.TypeInt || e.From == ssa.TypeLong) && (e.To == ssa.TypeFloat || e.To == ssa.TypeDouble):
		op = "sitofp"
	case (e.From == ssa.TypeFloat || e.From == ssa.TypeDouble) && (e.To == ssa.TypeInt || e.To == ssa.TypeLong):
		op = "fptosi"
	default:
		op = "bitcast"
	}
	fmt.Fprintf(me.out, "  %s = %s %s %s to %s\n", assign, op, fromTy, v, toTy)
}

func (me *methodEmitter) renderCompare(assign string, e translate.Expr) {
	switch e.Cmp {
	case translate.CmpLong:
		me.threeWayCompare(assign, "i64", valueRef(e.LHS), valueRef(e.RHS), "sgt", 1, "slt", -1)
	case translate.CmpFloatL:
		me.threeWayCompare(assign, "float", valueRef(e.LHS), valueRef(e.RHS), "ult", -1, "ogt", 1)
	case translate.CmpFloatG:
		me.threeWayCompare(assign, "float", valueRef(e.LHS), valueRef(e.RHS), "ugt", 1, "olt", -1)
	case translate.CmpDoubleL:
		me.threeWayCompare(assign, "double", valueRef(e.LHS), valueRef(e.RHS), "ult", -1, "ogt", 1)
	case translate.CmpDoubleG:
		me.threeWayCompare(assign, "double", valueRef(e.LHS), valueRef(e.RHS), "ugt", 1, "olt", -1)
	}
}

// threeWayCompare lowers one of the JVM's *cmp* instructions to a -1/0/1
// int: the first predicate/constant pair takes priority (NaN-aware for the
// float/double variants), the second breaks the remaining tie, and the
// fallback is 0.
func (me *methodEmitter) threeWayCompare(assign, typ, lhs, rhs, pred1 string, const1 int, pred2 string, const2 int) {
	cmpOp := "icmp"
	if typ == "float" || typ == "double" {
		cmpOp = "fcmp"
	}
	c1 := me.newTemp()
	fmt.Fprintf(me.out, "  %s = %s %s %s %s, %s\n", c1, cmpOp, pred1, typ, lhs, rhs)
	c2 := me.newTemp()
	fmt.Fprintf(me.out, "  %s = %s %s %s %s, %s\n", c2, cmpOp, pred2, typ, lhs, rhs)
	inner := me.newTemp()
	fmt.Fprintf(me.out, "  %s = select i1 %s, i32 %d, i32 0\n", inner, c2, const2)
	fmt.Fprintf(me.out, "  %s = select i1 %s, i32 %d, i32 %s\n", assign, c1, const1, inner)
}

func (me *methodEmitter) renderTerminator(b translate.Branch) {
	switch b.Kind {
	case translate.BranchGoto:
		fmt.Fprintf(me.out, "  br label %%L%d\n", b.Target)

	case translate.BranchIf:
		me.renderIf(b)

	case translate.BranchSwitch:
		fmt.Fprintf(me.out, "  switch i32 %s, label %%L%d [\n", valueRef(b.SwitchValue), b.SwitchDefault)
		for _, c := range b.SwitchCases {
			fmt.Fprintf(me.out, "    i32 %d, label %%L%d\n", c.Match, c.Target)
		}
		me.out.WriteString("  ]\n")

	case translate.BranchReturn:
		if b.ReturnValue != nil {
			fmt.Fprintf(me.out, "  ret %s\n", typedValue(*b.ReturnValue))
		} else {
			me.out.WriteString("  ret void\n")
		}

	case translate.BranchThrow:
		fmt.Fprintf(me.out, "  call void @_Jrt_throw(%%ref %s)\n", valueRef(b.ThrowValue))
		me.out.WriteString("  unreachable\n")
	}
}

func (me *methodEmitter) renderIf(b translate.Branch) {
	pred := ifPredicate(b.Compare)
	var cond string
	if b.LHS.Type() == ssa.TypeRef {
		lp := me.newTemp()
		fmt.Fprintf(me.out, "  %s = extractvalue %%ref %s, 0\n", lp, valueRef(b.LHS))
		rp := me.newTemp()
		fmt.Fprintf(me.out, "  %s = extractvalue %%ref %s, 0\n", rp, valueRef(b.RHS))
		cond = me.newTemp()
		fmt.Fprintf(me.out, "  %s = icmp %s i8* %s, %s\n", cond, pred, lp, rp)
	} else {
		typ := llvmType(b.LHS.Type())
		cond = me.newTemp()
		fmt.Fprintf(me.out, "  %s = icmp %s %s %s, %s\n", cond, pred, typ, valueRef(b.LHS), valueRef(b.RHS))
	}
	fmt.Fprintf(me.out, "  br i1 %s, label %%L%d, label %%L%d\n", cond, b.TrueTarget, b.ElseTarget)
}

func ifPredicate(kind translate.IfCompareKind) string {
	switch kind {
	case translate.IfEq:
		return "eq"
	case translate.IfNe:
		return "ne"
	case translate.IfLt:
		return "slt"
	case translate.IfGe:
		return "sge"
	case translate.IfGt:
		return "sgt"
	default:
		return "sle"
	}
}
