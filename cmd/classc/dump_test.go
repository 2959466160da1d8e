// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func u16(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

// buildMinimalClass assembles a one-field, one-method class file good
// enough to exercise dump's output shape.
func buildMinimalClass(name string) []byte {
	var buf bytes.Buffer
	utf8 := func(s string) []byte {
		e := append([]byte{1}, u16(uint16(len(s)))...)
		return append(e, s...)
	}
	var entries [][]byte
	entries = append(entries, utf8(name))                  // 1
	entries = append(entries, append([]byte{7}, u16(1)...)) // 2: class -> name
	entries = append(entries, utf8("java/lang/Object"))    // 3
	entries = append(entries, append([]byte{7}, u16(3)...)) // 4: class -> super
	entries = append(entries, utf8("count"))               // 5
	entries = append(entries, utf8("I"))                   // 6
	entries = append(entries, utf8("greet"))               // 7
	entries = append(entries, utf8("()V"))                 // 8

	buf.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	buf.Write(u16(0))
	buf.Write(u16(52))
	buf.Write(u16(uint16(len(entries) + 1)))
	for _, e := range entries {
		buf.Write(e)
	}
	buf.Write(u16(0x0021)) // public super
	buf.Write(u16(2))      // this_class
	buf.Write(u16(4))      // super_class
	buf.Write(u16(0))      // interfaces

	buf.Write(u16(1)) // fields_count
	buf.Write(u16(0x0001))
	buf.Write(u16(5)) // count
	buf.Write(u16(6)) // I
	buf.Write(u16(0))

	buf.Write(u16(1)) // methods_count
	buf.Write(u16(0x0401)) // public abstract (so no Code attribute is required)
	buf.Write(u16(7))      // greet
	buf.Write(u16(8))      // ()V
	buf.Write(u16(0))

	buf.Write(u16(0)) // class attributes
	return buf.Bytes()
}

func TestDumpPrintsClassShape(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Sample.class")
	if err := os.WriteFile(path, buildMinimalClass("Sample"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := dump(&out, path); err != nil {
		t.Fatal(err)
	}

	got := out.String()
	for _, want := range []string{"class Sample", "super: java/lang/Object", "count", "greet", "()void"} {
		if !strings.Contains(got, want) {
			t.Fatalf("dump output missing %q; got:\n%s", want, got)
		}
	}
}

func TestSanitizeForFilename(t *testing.T) {
	if got, want := sanitizeForFilename("java/lang/Object"), "java.lang.Object"; got != want {
		t.Fatalf("sanitizeForFilename = %q, want %q", got, want)
	}
}

func TestBuildClassPathIncludesInputDirsAndJavaHome(t *testing.T) {
	t.Setenv("JAVA_HOME", "/opt/jdk")
	roots, err := buildClassPath([]string{"/tmp/a/Main.class", "/tmp/b/Other.class"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/tmp/a", "/tmp/b", "/opt/jdk"}
	if len(roots) != len(want) {
		t.Fatalf("roots = %v, want %v", roots, want)
	}
	for i := range want {
		if roots[i] != want[i] {
			t.Fatalf("roots[%d] = %q, want %q", i, roots[i], want[i])
		}
	}
}
