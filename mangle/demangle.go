// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mangle

import (
	"fmt"
	"strconv"
	"strings"
)

// Demangle renders a classc symbol back into a human-readable form,
// inverting MangleMethodName/MangleFieldName/MangleClassName/MangleVTableName
// well enough to satisfy round-tripping without an external c++filt. It is
// not a general Itanium ABI demangler: classc's fieldType encoding borrows
// vendor-extended-type syntax for byte/char/boolean and a private template
// segment for overload disambiguation, both of which are decoded here by
// their own construction rather than by the full ABI grammar.
func Demangle(symbol string) (string, error) {
	s := symbol
	isVTable := false
	switch {
	case strings.HasPrefix(s, "_ZTV"):
		isVTable = true
		s = s[len("_ZTV"):]
	case strings.HasPrefix(s, "_Z"):
		s = s[len("_Z"):]
	default:
		return "", fmt.Errorf("mangle: %q is not a classc symbol", symbol)
	}

	className, methodName, rest, err := decodeNestedName(s)
	if err != nil {
		return "", err
	}
	// MangleMethodName writes <init> and <clinit> as the bare components init
	// and clinit; in a method symbol they are shown with their angle brackets
	// again (so is a method whose own name is init or clinit).
	if !isVTable && rest != "" {
		switch methodName {
		case "init":
			methodName = "<init>"
		case "clinit":
			methodName = "<clinit>"
		}
	}
	path := strings.Join(className, ".")
	if methodName != "" {
		path += "." + methodName
	}
	if isVTable {
		return "vtable for " + path, nil
	}
	if rest == "" {
		return path, nil
	}

	ret, rest, err := decodeFieldTypeOrVoid(rest)
	if err != nil {
		return "", err
	}
	var params []string
	if rest == "v" {
		rest = ""
	}
	for rest != "" {
		var p string
		p, rest, err = decodeFieldType(rest)
		if err != nil {
			return "", err
		}
		params = append(params, p)
	}
	return fmt.Sprintf("%s %s(%s)", ret, path, strings.Join(params, ", ")), nil
}

// decodeNestedName reads the leading "N <namespace>... [I u9 J {hash} E] E"
// segment, returning the namespace parts (with the trailing method/<init>/
// <clinit> segment split out as methodName when one follows a class path),
// and whatever trails the closing E.
func decodeNestedName(s string) (className []string, methodName string, rest string, err error) {
	if !strings.HasPrefix(s, "N") {
		return nil, "", "", fmt.Errorf("mangle: expected nested-name marker 'N' in %q", s)
	}
	s = s[1:]

	var parts []string
	for {
		if s == "" {
			return nil, "", "", fmt.Errorf("mangle: unterminated nested name")
		}
		if s[0] == 'E' {
			s = s[1:]
			break
		}
		if strings.HasPrefix(s, "Iu9J") {
			s = s[len("Iu9J"):]
			if len(s) < 9 || s[8] != 'E' {
				return nil, "", "", fmt.Errorf("mangle: malformed overload-hash segment")
			}
			s = s[9:]
			continue
		}
		name, tail, err := decodeLengthPrefixed(s)
		if err != nil {
			return nil, "", "", err
		}
		parts = append(parts, name)
		s = tail
	}
	if len(parts) == 0 {
		return nil, "", s, nil
	}
	// MangleMethodName/MangleFieldName append one trailing name component
	// (the method or field) after the class's own namespace parts;
	// MangleClassName/MangleVTableName don't. There is no marker
	// distinguishing the two shapes from the mangled text alone, so the
	// last component is reported as the member name whenever more than one
	// part was read -- the caller treats a single part as a bare class name.
	if len(parts) == 1 {
		return parts, "", s, nil
	}
	return parts[:len(parts)-1], parts[len(parts)-1], s, nil
}

// decodeClassPath reads a bare "N <part>... E" nested name with no trailing
// member-name or overload-hash segment, as embedded for object field types
// by mangler.fieldType's KindObject case.
func decodeClassPath(s string) (parts []string, rest string, err error) {
	if !strings.HasPrefix(s, "N") {
		return nil, "", fmt.Errorf("mangle: expected nested-name marker 'N' in %q", s)
	}
	s = s[1:]
	for {
		if s == "" {
			return nil, "", fmt.Errorf("mangle: unterminated nested name")
		}
		if s[0] == 'E' {
			return parts, s[1:], nil
		}
		var name string
		name, s, err = decodeLengthPrefixed(s)
		if err != nil {
			return nil, "", err
		}
		parts = append(parts, name)
	}
}

func decodeLengthPrefixed(s string) (name, rest string, err error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return "", "", fmt.Errorf("mangle: expected a length prefix in %q", s)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return "", "", err
	}
	if i+n > len(s) {
		return "", "", fmt.Errorf("mangle: length prefix %d overruns %q", n, s)
	}
	return s[i : i+n], s[i+n:], nil
}

func decodeFieldTypeOrVoid(s string) (string, string, error) {
	if strings.HasPrefix(s, "v") {
		return "void", s[1:], nil
	}
	return decodeFieldType(s)
}

// decodeFieldType inverts mangler.fieldType.
func decodeFieldType(s string) (string, string, error) {
	if s == "" {
		return "", "", fmt.Errorf("mangle: expected a field type, got empty string")
	}
	switch s[0] {
	case 'i':
		return "int", s[1:], nil
	case 'l':
		return "long", s[1:], nil
	case 'f':
		return "float", s[1:], nil
	case 'd':
		return "double", s[1:], nil
	case 's':
		return "short", s[1:], nil
	case 'u':
		name, rest, err := decodeLengthPrefixed(s[1:])
		if err != nil {
			return "", "", err
		}
		switch name {
		case "byte":
			return "byte", rest, nil
		case "char":
			return "char", rest, nil
		case "boolean":
			return "boolean", rest, nil
		default:
			return name, rest, nil
		}
	case 'N':
		className, rest, err := decodeClassPath(s)
		if err != nil {
			return "", "", err
		}
		return strings.Join(className, "/"), rest, nil
	default:
		if strings.HasPrefix(s, "A_") {
			elem, rest, err := decodeFieldType(s[2:])
			if err != nil {
				return "", "", err
			}
			return elem + "[]", rest, nil
		}
		return "", "", fmt.Errorf("mangle: unrecognized field type at %q", s)
	}
}
