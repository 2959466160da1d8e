// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"runtime"
	"strings"
)

// LinkerFailureError is returned when the system compiler front-end exits
// non-zero while linking the emitted IR against the runtime archive.
type LinkerFailureError struct {
	Output []byte
	Err    error
}

func (e LinkerFailureError) Error() string {
	return fmt.Sprintf("classc: linker failed: %v\n%s", e.Err, e.Output)
}

// traced wraps an error with the call stack at the point it was first
// reported to the CLI, so a failure prints a back-trace the way a Go
// panic would, without needing every error kind in every package to carry
// its own capture (spec.md §7).
type traced struct {
	err   error
	stack []uintptr
}

func trace(err error) error {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	return &traced{err: err, stack: pcs[:n]}
}

func (t *traced) Error() string { return t.err.Error() }
func (t *traced) Unwrap() error { return t.err }

func (t *traced) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v\n", t.err)
	frames := runtime.CallersFrames(t.stack)
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "\t%s\n\t\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}
