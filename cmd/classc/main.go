// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "classc",
		Short: "classc compiles JVM class files to native executables via LLVM",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setDebugMode(verbose)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newCompileCommand())
	root.AddCommand(newDumpCommand())
	root.AddCommand(newDemangleCommand())

	if err := root.Execute(); err != nil {
		if t, ok := err.(*traced); ok {
			fmt.Fprintln(os.Stderr, t.String())
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
