// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package classloader resolves class names to parsed classfile.ClassFile
// values (or synthesizes array classes) by searching an ordered class path
// of directories and jar archives, the way wasm's module reader resolves a
// single binary but generalized to a multi-root search, grounded on
// rustretto's loader.rs BootstrapClassLoader.
package classloader

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/go-interpreter/classc/classfile"
)

// ClassNotFoundError is returned when no class path entry has a resource
// for the requested name.
type ClassNotFoundError string

func (e ClassNotFoundError) Error() string {
	return fmt.Sprintf("classloader: class not found: %s", string(e))
}

// Class is either a parsed class file or a synthesized array class. Exactly
// one of File/Array is set, mirroring rustretto's Class enum.
type Class struct {
	File  *classfile.ClassFile
	Array *ArrayClass
}

// Name returns the binary class name ("java/lang/Object", "[I", ...).
func (c *Class) Name() string {
	if c.File != nil {
		return c.File.ThisClass
	}
	return c.Array.Name()
}

// ArrayClass describes an array type's component, recursively for
// multi-dimensional arrays.
type ArrayClass struct {
	Primitive *classfile.BaseType // set for a primitive component ("[I")
	Component *Class              // set for an object/array component
}

// Name returns this array class's binary name in descriptor form.
func (a *ArrayClass) Name() string {
	if a.Primitive != nil {
		return "[" + string(*a.Primitive)
	}
	return "[" + componentDescriptor(a.Component)
}

func componentDescriptor(c *Class) string {
	if c.Array != nil {
		return c.Array.Name()
	}
	return "L" + c.File.ThisClass + ";"
}

// ClassLoader resolves a binary class name to its Class.
type ClassLoader interface {
	Load(name string) (*Class, error)
}

// entry is one searchable class path root: a directory of .class files or
// a jar/zip archive of them.
type entry interface {
	open(name string) (io.ReadCloser, bool, error)
	close() error
}

// Loader is the bootstrap class loader: an ordered class path of
// directories and jars, searched in order the way BootstrapClassLoader
// walks its Vec<JarReader> in loader.rs. It does not cache decoded
// ClassFiles itself -- that is classgraph's job -- and it does not remember
// which entry satisfied an earlier lookup: every lookup probes the entries
// in order, since entries are cheap to probe.
type Loader struct {
	mu      sync.Mutex
	entries []entry
}

// Open builds a Loader over the given class path roots, in search order.
// Each root is either a directory or a .jar/.zip archive; archives are
// opened once via mmap for the lifetime of the Loader.
func Open(classPath []string) (*Loader, error) {
	l := &Loader{}
	for _, root := range classPath {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			l.entries = append(l.entries, &dirEntry{root: root})
			continue
		}
		e, err := openArchiveEntry(root)
		if err != nil {
			return nil, err
		}
		l.entries = append(l.entries, e)
	}
	return l, nil
}

// Close releases every archive mapping held by the loader.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, e := range l.entries {
		if err := e.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Load resolves name to a Class, decoding it from the first class path
// entry that has it, or synthesizing an ArrayClass when name begins with
// '[', per JVM spec §5.3.3.
func (l *Loader) Load(name string) (*Class, error) {
	logger.Debugw("loading class", "name", name)
	if strings.HasPrefix(name, "[") {
		return l.loadArray(name)
	}
	return l.loadFromPath(name)
}

func (l *Loader) loadFromPath(name string) (*Class, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	resource := name + ".class"
	for _, e := range l.entries {
		rc, ok, err := e.open(resource)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cf, err := func() (*classfile.ClassFile, error) {
			defer rc.Close()
			return classfile.Parse(rc)
		}()
		if err != nil {
			return nil, err
		}
		return &Class{File: cf}, nil
	}
	return nil, ClassNotFoundError(name)
}

func (l *Loader) loadArray(name string) (*Class, error) {
	ft, err := classfile.ParseFieldType(name[1:])
	if err != nil {
		return nil, err
	}
	array, err := l.arrayByComponentType(ft)
	if err != nil {
		return nil, err
	}
	return &Class{Array: array}, nil
}

func (l *Loader) arrayByComponentType(ft classfile.FieldType) (*ArrayClass, error) {
	switch ft.Kind {
	case classfile.KindBase:
		base := ft.Base
		return &ArrayClass{Primitive: &base}, nil
	case classfile.KindArray:
		inner, err := l.arrayByComponentType(*ft.Elem)
		if err != nil {
			return nil, err
		}
		return &ArrayClass{Component: &Class{Array: inner}}, nil
	case classfile.KindObject:
		cls, err := l.loadFromPath(ft.ClassName)
		if err != nil {
			return nil, err
		}
		return &ArrayClass{Component: cls}, nil
	default:
		return nil, fmt.Errorf("classloader: unrecognized component type %v", ft)
	}
}

// dirEntry resolves class resources against a filesystem directory laid out
// the way a compiled source tree or extracted jar would be.
type dirEntry struct {
	root string
}

func (d *dirEntry) open(name string) (io.ReadCloser, bool, error) {
	path := filepath.Join(d.root, filepath.FromSlash(name))
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return f, true, nil
}

func (d *dirEntry) close() error { return nil }

// archiveEntry resolves class resources against a jar/zip file, mmap'd
// once and kept open for the loader's lifetime, grounded on saferwall's
// mmap.Map(f, mmap.RDONLY, 0) idiom for zero-copy archive reads.
type archiveEntry struct {
	f    *os.File
	data mmap.MMap
	zr   *zip.Reader
}

func openArchiveEntry(path string) (*archiveEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	zr, err := zip.NewReader(bytesReaderAt{data}, int64(len(data)))
	if err != nil {
		data.Unmap()
		f.Close()
		return nil, err
	}
	return &archiveEntry{f: f, data: data, zr: zr}, nil
}

func (a *archiveEntry) open(name string) (io.ReadCloser, bool, error) {
	for _, zf := range a.zr.File {
		if zf.Name == name {
			rc, err := zf.Open()
			if err != nil {
				return nil, false, err
			}
			return rc, true, nil
		}
	}
	return nil, false, nil
}

func (a *archiveEntry) close() error {
	if err := a.data.Unmap(); err != nil {
		a.f.Close()
		return err
	}
	return a.f.Close()
}

// bytesReaderAt adapts an mmap.MMap ([]byte) to io.ReaderAt for zip.NewReader.
type bytesReaderAt struct {
	data []byte
}

func (b bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
