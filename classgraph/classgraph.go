// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package classgraph maintains the transitive closure of classes reachable
// from a root class file, resolving and caching each dependency exactly
// once. Grounded on rustretto's classes.rs ClassGraph, translated from its
// RwLock<Inner>+name_map shape into the sync.RWMutex-guarded cache style the
// teacher uses for its own shared, concurrently-read module state (spec.md
// §5 names this cache explicitly).
package classgraph

import (
	"sync"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classloader"
)

// Graph is the set of classes discovered while compiling a root class,
// keyed by binary class name. Safe for concurrent use: Get takes the read
// lock; getOrLoad holds the write lock across the lookup, the loader call
// and the insert.
type Graph struct {
	mu      sync.RWMutex
	byName  map[string]*classloader.Class
	loader  classloader.ClassLoader
}

// Build constructs a Graph seeded with root and every class transitively
// referenced from its constant pool, resolved through loader.
func Build(root *classloader.Class, loader classloader.ClassLoader) (*Graph, error) {
	g := &Graph{
		byName: make(map[string]*classloader.Class),
		loader: loader,
	}
	g.addLocked(root.Name(), root)
	if err := g.resolveDependencies(root); err != nil {
		return nil, err
	}
	logger.Debugw("built class graph", "root", root.Name(), "classes", len(g.byName))
	return g, nil
}

// Get returns the cached class for name, or (nil, false) if it has not been
// resolved into the graph yet.
func (g *Graph) Get(name string) (*classloader.Class, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.byName[name]
	return c, ok
}

// Names returns every class name currently resolved into the graph.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.byName))
	for n := range g.byName {
		names = append(names, n)
	}
	return names
}

func (g *Graph) addLocked(name string, c *classloader.Class) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byName[name] = c
}

// getOrLoad returns the cached class for name, loading and caching it via
// g.loader if this is the first reference, and reports whether a load
// actually occurred (so the caller knows whether to walk its dependencies
// in turn).
func (g *Graph) getOrLoad(name string) (*classloader.Class, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.byName[name]; ok {
		return c, false, nil
	}
	c, err := g.loader.Load(name)
	if err != nil {
		return nil, false, err
	}
	g.byName[name] = c
	return c, true, nil
}

// resolveDependencies walks the constant pool of root and every class
// transitively referenced by a CONSTANT_Class entry, loading and caching
// each one. A worklist of constant pools stands in for rustretto's explicit
// stack of ConstantPool clones.
func (g *Graph) resolveDependencies(root *classloader.Class) error {
	if root.File == nil {
		return nil
	}
	var pending [][]string
	refs, err := root.File.ConstantPool.ClassRefs()
	if err != nil {
		return err
	}
	pending = append(pending, refs)

	for len(pending) > 0 {
		refs := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		for _, className := range refs {
			cls, loaded, err := g.getOrLoad(className)
			if err != nil {
				return err
			}
			if !loaded {
				continue
			}
			leaf := leafClassFile(cls)
			if leaf == nil {
				continue
			}
			moreRefs, err := leaf.ConstantPool.ClassRefs()
			if err != nil {
				return err
			}
			pending = append(pending, moreRefs)
		}
	}
	return nil
}

// leafClassFile unwraps nested array component classes down to the
// classfile.ClassFile at the bottom, or nil for a primitive array, mirroring
// rustretto's `loop { match class { ... } }` descent in resolve_dependencies.
func leafClassFile(c *classloader.Class) *classfile.ClassFile {
	for {
		if c.File != nil {
			return c.File
		}
		if c.Array.Primitive != nil {
			return nil
		}
		c = c.Array.Component
	}
}
