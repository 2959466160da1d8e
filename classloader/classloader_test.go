// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classloader_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classloader"
)

func u16(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

func utf8Entry(s string) []byte {
	out := append([]byte{1}, u16(uint16(len(s)))...)
	return append(out, s...)
}

func classEntry(nameIdx uint16) []byte {
	return append([]byte{7}, u16(nameIdx)...)
}

// minimalClassBytes builds `public class <name> extends java/lang/Object`.
func minimalClassBytes(name string) []byte {
	var buf []byte
	buf = append(buf, 0xCA, 0xFE, 0xBA, 0xBE)
	buf = append(buf, u16(0)...)
	buf = append(buf, u16(52)...)
	buf = append(buf, u16(5)...)
	buf = append(buf, utf8Entry(name)...)
	buf = append(buf, classEntry(1)...)
	buf = append(buf, utf8Entry("java/lang/Object")...)
	buf = append(buf, classEntry(3)...)
	buf = append(buf, u16(0x0021)...)
	buf = append(buf, u16(2)...)
	buf = append(buf, u16(4)...)
	buf = append(buf, u16(0)...) // interfaces
	buf = append(buf, u16(0)...) // fields
	buf = append(buf, u16(0)...) // methods
	buf = append(buf, u16(0)...) // attributes
	return buf
}

func TestLoaderLoadsFromDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Main.class"), minimalClassBytes("Main"), 0o644); err != nil {
		t.Fatal(err)
	}

	l, err := classloader.Open([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	cls, err := l.Load("Main")
	if err != nil {
		t.Fatal(err)
	}
	if cls.File == nil || cls.File.ThisClass != "Main" {
		t.Fatalf("got %+v", cls)
	}
}

func TestLoaderNotFound(t *testing.T) {
	dir := t.TempDir()
	l, err := classloader.Open([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	if _, err := l.Load("DoesNotExist"); err == nil {
		t.Fatal("expected ClassNotFoundError")
	}
}

func TestLoaderLoadsFromJar(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "app.jar")
	f, err := os.Create(jarPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("pkg/Foo.class")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(minimalClassBytes("pkg/Foo")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	l, err := classloader.Open([]string{jarPath})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	cls, err := l.Load("pkg/Foo")
	if err != nil {
		t.Fatal(err)
	}
	if cls.File.ThisClass != "pkg/Foo" {
		t.Fatalf("got %q", cls.File.ThisClass)
	}
}

func TestLoaderSynthesizesPrimitiveArray(t *testing.T) {
	dir := t.TempDir()
	l, err := classloader.Open([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	cls, err := l.Load("[I")
	if err != nil {
		t.Fatal(err)
	}
	if cls.Array == nil || cls.Array.Primitive == nil || *cls.Array.Primitive != classfile.BaseInt {
		t.Fatalf("got %+v", cls)
	}
	if cls.Name() != "[I" {
		t.Fatalf("Name() = %q", cls.Name())
	}
}

func TestLoaderSynthesizesObjectArray(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Main.class"), minimalClassBytes("Main"), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := classloader.Open([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	cls, err := l.Load("[LMain;")
	if err != nil {
		t.Fatal(err)
	}
	if cls.Array == nil || cls.Array.Component == nil || cls.Array.Component.File.ThisClass != "Main" {
		t.Fatalf("got %+v", cls)
	}
}

func TestLoaderMultiDimensionalArray(t *testing.T) {
	dir := t.TempDir()
	l, err := classloader.Open([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	cls, err := l.Load("[[I")
	if err != nil {
		t.Fatal(err)
	}
	if cls.Name() != "[[I" {
		t.Fatalf("Name() = %q", cls.Name())
	}
}
