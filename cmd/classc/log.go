// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"go.uber.org/zap"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/classgraph"
	"github.com/go-interpreter/classc/classloader"
	"github.com/go-interpreter/classc/emit"
	"github.com/go-interpreter/classc/layout"
	"github.com/go-interpreter/classc/translate"
)

var logger *zap.SugaredLogger

func init() {
	setLogger(false)
}

func setLogger(verbose bool) {
	if !verbose {
		logger = zap.NewNop().Sugar()
		return
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop().Sugar()
		return
	}
	logger = l.Sugar()
}

// setDebugMode gates every package's own per-package logger in lockstep,
// the way cmd/wasm-run's main.go calls wasm.SetDebugMode for the single
// package it wraps.
func setDebugMode(verbose bool) {
	setLogger(verbose)
	classfile.SetDebugMode(verbose)
	classloader.SetDebugMode(verbose)
	classgraph.SetDebugMode(verbose)
	translate.SetDebugMode(verbose)
	layout.SetDebugMode(verbose)
	emit.SetDebugMode(verbose)
}
