// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-interpreter/classc/mangle"
)

func newDemangleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demangle <symbol>",
		Short: "render a classc symbol back into a human-readable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := mangle.Demangle(args[0])
			if err != nil {
				return trace(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
