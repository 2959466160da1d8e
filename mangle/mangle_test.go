// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mangle_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/mangle"
)

func TestMangleMethodNameNoParams(t *testing.T) {
	got := mangle.MangleMethodName("java/lang/Object", "wait", classfile.MethodDescriptor{})

	require.True(t, strHasPrefix(got, "_ZN4java4lang6Object4waitIu9J"))
	require.Regexp(t, regexp.MustCompile(`^_ZN4java4lang6Object4waitIu9J[0-9a-f]{8}EEvv$`), got)
}

func TestMangleMethodNameWithObjectParam(t *testing.T) {
	descriptor := classfile.MethodDescriptor{
		Params:  []classfile.FieldType{{Kind: classfile.KindObject, ClassName: "java/lang/Object"}},
		Returns: &classfile.FieldType{Kind: classfile.KindBase, Base: classfile.BaseBoolean},
	}
	got := mangle.MangleMethodName("java/lang/Object", "equals", descriptor)

	require.Contains(t, got, "6equals")
	require.True(t, strHasSuffix(got, "N4java4lang6ObjectE"))
}

func TestMangleMethodNameWithArrayParam(t *testing.T) {
	descriptor := classfile.MethodDescriptor{
		Params: []classfile.FieldType{{
			Kind: classfile.KindArray,
			Elem: &classfile.FieldType{Kind: classfile.KindObject, ClassName: "java/lang/Object"},
		}},
		Returns: &classfile.FieldType{Kind: classfile.KindBase, Base: classfile.BaseInt},
	}
	got := mangle.MangleMethodName("java/util/Arrays", "hashCode", descriptor)

	require.True(t, strHasSuffix(got, "iA_N4java4lang6ObjectE"))
}

func TestMangleMethodNameInitAndClinit(t *testing.T) {
	ctor := mangle.MangleMethodName("Foo", "<init>", classfile.MethodDescriptor{})
	require.Contains(t, ctor, "4init")

	clinit := mangle.MangleMethodName("Foo", "<clinit>", classfile.MethodDescriptor{})
	require.Contains(t, clinit, "6clinit")
}

func TestMangleMethodNameOverloadsDiffer(t *testing.T) {
	a := mangle.MangleMethodName("Foo", "bar", classfile.MethodDescriptor{
		Returns: &classfile.FieldType{Kind: classfile.KindBase, Base: classfile.BaseInt},
	})
	b := mangle.MangleMethodName("Foo", "bar", classfile.MethodDescriptor{
		Returns: &classfile.FieldType{Kind: classfile.KindBase, Base: classfile.BaseLong},
	})
	require.NotEqual(t, a, b, "distinct return types must hash to distinct overload tags")
}

func TestMangleFieldName(t *testing.T) {
	got := mangle.MangleFieldName("java/lang/Object", "shadow$_monitor_")
	require.True(t, strHasPrefix(got, "_ZN4java4lang6Object"))
	require.True(t, strHasSuffix(got, "E"))
}

func TestMangleClassName(t *testing.T) {
	got := mangle.MangleClassName("java/lang/Object")
	require.Equal(t, "_ZN4java4lang6ObjectE", got)
}

func TestMangleVTableName(t *testing.T) {
	got := mangle.MangleVTableName("java/lang/Object")
	require.Equal(t, "_ZTVN4java4lang6ObjectE", got)
}

func strHasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func strHasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
