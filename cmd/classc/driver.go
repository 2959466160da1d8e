// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/go-interpreter/classc/classgraph"
	"github.com/go-interpreter/classc/classloader"
	"github.com/go-interpreter/classc/emit"
)

const defaultTriple = "x86_64-unknown-linux-gnu"

// Options binds the flags of the `compile` subcommand.
type Options struct {
	Output    string
	Runtime   string
	OptLevel  int
	SaveTemp  string
	MainClass string
	Inputs    []string
	Triple    string
}

// Compile drives the full pipeline: load the input classes, build their
// class graph, emit every reachable class to LLVM IR, then invoke the
// system compiler front-end to link the result against the runtime
// archive (spec.md §6).
func Compile(opts Options) error {
	if opts.MainClass == "" {
		return fmt.Errorf("classc: --main is required")
	}
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("classc: at least one input .class file is required")
	}

	classPath, err := buildClassPath(opts.Inputs)
	if err != nil {
		return err
	}
	loader, err := classloader.Open(classPath)
	if err != nil {
		return err
	}
	defer loader.Close()

	root, err := loader.Load(opts.MainClass)
	if err != nil {
		return fmt.Errorf("classc: loading main class %s: %w", opts.MainClass, err)
	}
	graph, err := classgraph.Build(root, loader)
	if err != nil {
		return fmt.Errorf("classc: building class graph: %w", err)
	}

	tempDir := opts.SaveTemp
	cleanup := func() {}
	if tempDir == "" {
		dir, err := os.MkdirTemp("", "classc-")
		if err != nil {
			return fmt.Errorf("classc: creating scratch directory: %w", err)
		}
		tempDir = dir
		cleanup = func() { os.RemoveAll(dir) }
	}
	defer cleanup()

	emit.EmitMain(opts.MainClass)
	defer emit.EmitMain("")

	gen := emit.NewGenerator(graph)
	var modules []string
	for _, name := range graph.Names() {
		cls, ok := graph.Get(name)
		if !ok || cls.File == nil {
			continue // array classes carry no IR module of their own
		}
		ir, err := gen.EmitClass(name)
		if err != nil {
			return fmt.Errorf("classc: emitting %s: %w", name, err)
		}
		path := filepath.Join(tempDir, sanitizeForFilename(name)+".ll")
		if err := os.WriteFile(path, []byte(ir), 0o644); err != nil {
			return fmt.Errorf("classc: writing %s: %w", path, err)
		}
		modules = append(modules, path)
	}

	return link(opts, modules)
}

// buildClassPath assembles the loader's search roots: the directories
// holding the explicit input files, then JAVA_HOME if set, matching
// spec.md §6's "JAVA_HOME supplies the archive search root".
func buildClassPath(inputs []string) ([]string, error) {
	seen := make(map[string]bool)
	var roots []string
	add := func(p string) {
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		roots = append(roots, p)
	}
	for _, in := range inputs {
		add(filepath.Dir(in))
	}
	if home := os.Getenv("JAVA_HOME"); home != "" {
		add(home)
	}
	return roots, nil
}

// sanitizeForFilename turns a binary class name (slash-separated package
// path) into a safe single path component.
func sanitizeForFilename(className string) string {
	out := make([]byte, len(className))
	for i := 0; i < len(className); i++ {
		c := className[i]
		if c == '/' {
			out[i] = '.'
			continue
		}
		out[i] = c
	}
	return string(out)
}

// link shells out to the system compiler front-end per spec.md §6's linker
// contract: --target=<triple>, -Wno-override-module, the requested
// optimization level plus -flto, the runtime archive, and every emitted
// module.
func link(opts Options, modules []string) error {
	triple := opts.Triple
	if triple == "" {
		triple = defaultTriple
	}
	args := []string{
		"--target=" + triple,
		"-Wno-override-module",
		fmt.Sprintf("-O%d", opts.OptLevel),
		"-flto",
		"-o", opts.Output,
		opts.Runtime,
	}
	args = append(args, modules...)

	cc := compilerFrontEnd()
	cmd := exec.Command(cc, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	logger.Debugw("invoking linker", "command", cc, "args", args)
	if err := cmd.Start(); err != nil {
		return LinkerFailureError{Err: err}
	}

	// A Ctrl-C during linking should take the whole process group down
	// with it rather than leaving clang's own child processes (the LLVM
	// backend, the system assembler) orphaned and still running.
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		signal.Stop(sigc)
		if err != nil {
			return LinkerFailureError{Err: err}
		}
		return nil
	case <-sigc:
		unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
		<-done
		return LinkerFailureError{Err: fmt.Errorf("interrupted")}
	}
}

// compilerFrontEnd returns the system compiler driver to invoke, honoring
// CC the way most cross-compilation setups expect, and falling back to
// clang since it alone accepts .ll textual IR modules directly.
func compilerFrontEnd() string {
	if cc := os.Getenv("CC"); cc != "" {
		return cc
	}
	return "clang"
}
