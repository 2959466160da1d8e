// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"fmt"
	"strings"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classloader"
	"github.com/go-interpreter/classc/layout"
	"github.com/go-interpreter/classc/mangle"
	"github.com/go-interpreter/classc/ssa"
)

// refType is the single reference value type every object/array value of
// the JVM's non-primitive kinds is represented as: an opaque object pointer
// paired with an opaque vtable pointer.
const refType = "%ref"

// llvmType renders the LLVM IR type for a translator-level runtime type.
// All integer-carrying values are emitted at 32-bit precision per the
// widening policy; only Long is 64-bit.
func llvmType(t ssa.Type) string {
	switch t {
	case ssa.TypeInt:
		return "i32"
	case ssa.TypeLong:
		return "i64"
	case ssa.TypeFloat:
		return "float"
	case ssa.TypeDouble:
		return "double"
	case ssa.TypeRef:
		return refType
	default:
		return "i32"
	}
}

// llvmFieldType renders the LLVM IR member type for a declared field
// descriptor, under the same widening policy as llvmType.
func llvmFieldType(ft classfile.FieldType) string {
	switch ft.Kind {
	case classfile.KindBase:
		switch ft.Base {
		case classfile.BaseLong:
			return "i64"
		case classfile.BaseFloat:
			return "float"
		case classfile.BaseDouble:
			return "double"
		default: // byte, char, short, int, boolean all widen to i32
			return "i32"
		}
	default: // object, array
		return refType
	}
}

// functionType renders the LLVM IR function-pointer type for a method
// descriptor's signature: an implicit receiver reference first, then the
// declared parameters, per spec.md §4.K's vtable slot typing.
func functionType(descriptor classfile.MethodDescriptor) string {
	ret := "void"
	if descriptor.Returns != nil {
		ret = llvmFieldType(*descriptor.Returns)
	}
	params := make([]string, 0, len(descriptor.Params)+1)
	params = append(params, refType)
	for _, p := range descriptor.Params {
		params = append(params, llvmFieldType(p))
	}
	return fmt.Sprintf("%s (%s)*", ret, strings.Join(params, ", "))
}

// objectTypeName is the mangled struct-type symbol backing instances of
// className, whether an ordinary class or a synthesized array type.
func objectTypeName(className string) string {
	return mangle.MangleClassName(className)
}

// vtableTypeName is the mangled struct-type symbol for className's vtable.
func vtableTypeName(className string) string {
	return mangle.MangleVTableName(className)
}

// arrayComponentType renders the LLVM IR element type backing one
// dimension of an array class: the primitive's type, or %ref for an object
// or nested-array component (nested array classes are not walked).
func arrayComponentType(a *classloader.ArrayClass) string {
	if a.Primitive != nil {
		return llvmFieldType(classfile.FieldType{Kind: classfile.KindBase, Base: *a.Primitive})
	}
	return refType
}

// renderObjectStructType emits the struct-type declaration for an ordinary
// (non-array) class: its flattened field layout, in slot order.
func renderObjectStructType(out *strings.Builder, className string, fl *layout.FieldLayout) {
	fmt.Fprintf(out, "%%%s = type {\n", objectTypeName(className))
	for i, slot := range fl.Slots {
		sep := ","
		if i == len(fl.Slots)-1 {
			sep = ""
		}
		fmt.Fprintf(out, "  %s%s ; %s.%s\n", llvmFieldType(slot.Type), sep, slot.OwnerClass, slot.Name)
	}
	out.WriteString("}\n")
}

// renderArrayStructType emits the struct-type declaration for an array
// class: a 32-bit length header followed by a zero-length tail of the
// component type, so a single allocation can carry any element count.
func renderArrayStructType(out *strings.Builder, className string, array *classloader.ArrayClass) {
	fmt.Fprintf(out, "%%%s = type {\n", objectTypeName(className))
	out.WriteString("  i32, ; length\n")
	fmt.Fprintf(out, "  [0 x %s] ; members\n", arrayComponentType(array))
	out.WriteString("}\n")
}

// renderVTableStructType emits the struct-type declaration for a class's
// vtable: a leading method-count header word, the typed function pointers
// in slot order, then an interface count and, per embedded interface, an
// opaque sub-table pointer and its offset -- the superset layout resolved
// in DESIGN.md's Open Question entry.
func renderVTableStructType(out *strings.Builder, className string, vt *layout.VTable) {
	fmt.Fprintf(out, "%%%s = type {\n", vtableTypeName(className))
	out.WriteString("  i32, ; method count\n")
	for i := 0; i < vt.MethodCount(); i++ {
		target := vt.Method(i)
		fmt.Fprintf(out, "  %s, ; %s\n", functionType(target.Descriptor), target.Name)
	}
	if len(vt.InterfaceOrder) > 0 {
		out.WriteString("  i32, ; interface count\n")
	} else {
		out.WriteString("  i32 ; interface count\n")
	}
	for i, name := range vt.InterfaceOrder {
		sep := ","
		if i == len(vt.InterfaceOrder)-1 {
			sep = ""
		}
		fmt.Fprintf(out, "  {i8*, i32}%s ; %s sub-table\n", sep, name)
	}
	out.WriteString("}\n")
}
