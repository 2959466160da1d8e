// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classloader

import "go.uber.org/zap"

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

// SetDebugMode toggles resolution tracing for class path lookups.
func SetDebugMode(v bool) {
	PrintDebugInfo = v
	setLogger()
}
