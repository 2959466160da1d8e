// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-interpreter/classc/classfile"
)

func newDumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <input.class>",
		Short: "print a class file's header, fields, and methods (not its constant pool or attributes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := dump(cmd.OutOrStdout(), args[0]); err != nil {
				return trace(err)
			}
			return nil
		},
	}
}

func dump(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cf, err := classfile.Parse(f)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "class %s\n", cf.ThisClass)
	if cf.SuperClass != "" {
		fmt.Fprintf(w, "  super: %s\n", cf.SuperClass)
	}
	for _, iface := range cf.Interfaces {
		fmt.Fprintf(w, "  implements: %s\n", iface)
	}
	fmt.Fprintf(w, "  access: %s\n", describeAccess(cf.AccessFlags))
	if cf.SourceFile != "" {
		fmt.Fprintf(w, "  source file: %s\n", cf.SourceFile)
	}

	fmt.Fprintf(w, "\nfields (%d):\n", len(cf.Fields))
	for _, field := range cf.Fields {
		fmt.Fprintf(w, "  %-24s %s %s\n", field.Name, field.Descriptor.Descriptor(), describeAccess(field.AccessFlags))
	}

	fmt.Fprintf(w, "\nmethods (%d):\n", len(cf.Methods))
	for _, m := range cf.Methods {
		fmt.Fprintf(w, "  %-24s %s %s\n", m.Name, m.Descriptor.String(), describeAccess(m.AccessFlags))
		if code := m.Code(); code != nil {
			fmt.Fprintf(w, "    max_stack=%d max_locals=%d code_length=%d\n", code.MaxStack, code.MaxLocals, len(code.Bytecode))
		}
	}
	return nil
}

func describeAccess(flags classfile.AccessFlags) string {
	var tags []string
	for _, f := range []struct {
		bit  classfile.AccessFlags
		name string
	}{
		{classfile.AccPublic, "public"},
		{classfile.AccPrivate, "private"},
		{classfile.AccProtected, "protected"},
		{classfile.AccStatic, "static"},
		{classfile.AccFinal, "final"},
		{classfile.AccInterface, "interface"},
		{classfile.AccAbstract, "abstract"},
		{classfile.AccNative, "native"},
		{classfile.AccSynthetic, "synthetic"},
	} {
		if flags.Has(f.bit) {
			tags = append(tags, f.name)
		}
	}
	if len(tags) == 0 {
		return "()"
	}
	out := "("
	for i, t := range tags {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out + ")"
}
