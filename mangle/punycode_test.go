// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mangle

import "testing"

func TestPunycodeASCIIPassesThrough(t *testing.T) {
	if got := punycode("wait"); got != "wait" {
		t.Fatalf("punycode(wait) = %q, want unchanged ASCII", got)
	}
}

func TestPunycodeEncodesNonASCII(t *testing.T) {
	got := punycode("bücher")
	const wantPrefix = "bcher-"
	if len(got) <= len(wantPrefix) || got[:len(wantPrefix)] != wantPrefix {
		t.Fatalf("punycode(bücher) = %q, want basic-code prefix %q", got, wantPrefix)
	}
	for _, r := range got {
		if r >= 0x80 {
			t.Fatalf("punycode(bücher) = %q, contains non-ASCII rune %q", got, r)
		}
	}
}
