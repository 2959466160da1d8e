// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package emit

import (
	"fmt"
	"strings"

	"github.com/go-interpreter/classc/layout"
	"github.com/go-interpreter/classc/mangle"
)

// renderVTableConstant emits the global constant populating className's
// vtable type: the method count, a mangled function pointer per slot
// (bound to whichever class currently implements that slot), the interface
// count, and a (sub-table pointer, offset) pair per embedded interface.
func renderVTableConstant(out *strings.Builder, className string, vt *layout.VTable) {
	fmt.Fprintf(out, "@%s = constant %%%s {\n", vtableTypeName(className), vtableTypeName(className))
	fmt.Fprintf(out, "  i32 %d,\n", vt.MethodCount())
	for i := 0; i < vt.MethodCount(); i++ {
		target := vt.Method(i)
		symbol := mangle.MangleMethodName(target.ClassName, target.Name, target.Descriptor)
		fmt.Fprintf(out, "  %s @%s, ; %s\n", functionType(target.Descriptor), symbol, target.Name)
	}
	fmt.Fprintf(out, "  i32 %d", len(vt.InterfaceOrder))
	if len(vt.InterfaceOrder) > 0 {
		out.WriteString(",\n")
	} else {
		out.WriteString("\n")
	}
	for i, name := range vt.InterfaceOrder {
		offset := vt.Interfaces[name]
		sep := ","
		if i == len(vt.InterfaceOrder)-1 {
			sep = ""
		}
		fmt.Fprintf(out, "  {i8*, i32} {i8* bitcast (%%%s* @%s to i8*), i32 %d}%s ; %s\n",
			vtableTypeName(name), vtableTypeName(name), offset, sep, name)
	}
	out.WriteString("}\n")
}
