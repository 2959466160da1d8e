// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/spf13/cobra"
)

func newCompileCommand() *cobra.Command {
	var opts Options
	cmd := &cobra.Command{
		Use:   "compile <input.class>...",
		Short: "compile class files into a native executable",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Inputs = args
			if err := Compile(opts); err != nil {
				return trace(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "a.out", "output executable path")
	cmd.Flags().StringVarP(&opts.Runtime, "runtime", "r", "", "path to the runtime archive")
	cmd.Flags().IntVarP(&opts.OptLevel, "optimize", "O", 0, "optimization level passed to the linker (0-3)")
	cmd.Flags().StringVar(&opts.SaveTemp, "save-temp", "", "keep emitted .ll files in this directory instead of a scratch one")
	cmd.Flags().StringVar(&opts.MainClass, "main", "", "binary name of the class carrying the program's main(String[]) method")
	cmd.Flags().StringVar(&opts.Triple, "target", "", "override the target triple passed to the linker")
	cmd.MarkFlagRequired("runtime")
	cmd.MarkFlagRequired("main")
	return cmd
}
