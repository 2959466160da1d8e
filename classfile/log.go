// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classfile

import (
	"go.uber.org/zap"
)

// PrintDebugInfo mirrors the teacher's wasm.PrintDebugInfo switch: quiet by
// default, verbose parse tracing when a driver opts in.
var PrintDebugInfo = false

var logger *zap.SugaredLogger

func init() {
	setLogger()
}

func setLogger() {
	if !PrintDebugInfo {
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

// SetDebugMode toggles parse-time tracing, rebuilding the package logger the
// way wasm.SetDebugMode flips the discard writer for its stdlib logger.
func SetDebugMode(v bool) {
	PrintDebugInfo = v
	setLogger()
}
