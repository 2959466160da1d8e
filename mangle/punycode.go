// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mangle

import "strings"

// punycode encodes s per RFC 3492, the ASCII-compatible transform used to
// carry non-ASCII class, method, and field names through the mangled symbol
// alphabet (letters, digits, '$', '.', '_'). ASCII-only input round-trips
// through the "basic code points, then empty extended string" fast path and
// is returned unchanged aside from the algorithm's own no-op bookkeeping.
//
// golang.org/x/net/idna carries a production punycode codec but is absent
// from this module's dependency surface (see DESIGN.md); this is a direct,
// self-contained port of the reference algorithm rather than a dependency
// substitute for a single non-ASCII corner case.
func punycode(s string) string {
	const (
		base        = 36
		tmin        = 1
		tmax        = 26
		skew        = 38
		damp        = 700
		initialBias = 72
		initialN    = 128
	)

	var basic []rune
	var extended []rune
	for _, r := range s {
		if r < 0x80 {
			basic = append(basic, r)
		} else {
			extended = append(extended, r)
		}
	}
	if len(extended) == 0 {
		return s
	}

	var out strings.Builder
	for _, r := range basic {
		out.WriteRune(r)
	}
	handled := len(basic)
	if handled > 0 {
		out.WriteByte('-')
	}

	adapt := func(delta, numPoints int, firstTime bool) int {
		if firstTime {
			delta /= damp
		} else {
			delta /= 2
		}
		delta += delta / numPoints
		k := 0
		for delta > ((base-tmin)*tmax)/2 {
			delta /= base - tmin
			k += base
		}
		return k + (base-tmin+1)*delta/(delta+skew)
	}

	encodeDigit := func(d int) byte {
		switch {
		case d < 26:
			return byte('a' + d)
		default:
			return byte('0' + d - 26)
		}
	}

	n := initialN
	delta := 0
	bias := initialBias
	total := len(basic) + len(extended)

	for handled < total {
		m := maxRune(s, n)
		delta += (m - n) * (handled + 1)
		n = m

		for _, r := range s {
			c := int(r)
			if c < n {
				delta++
			}
			if c == n {
				q := delta
				for k := base; ; k += base {
					t := threshold(k, bias, tmin, tmax)
					if q < t {
						out.WriteByte(encodeDigit(q))
						break
					}
					out.WriteByte(encodeDigit(t + (q-t)%(base-t)))
					q = (q - t) / (base - t)
				}
				bias = adapt(delta, handled+1, handled == len(basic))
				delta = 0
				handled++
			}
		}
		delta++
		n++
	}

	return out.String()
}

func threshold(k, bias, tmin, tmax int) int {
	switch {
	case k <= bias+tmin:
		return tmin
	case k >= bias+tmax:
		return tmax
	default:
		return k - bias
	}
}

func maxRune(s string, floor int) int {
	m := 1 << 30
	found := false
	for _, r := range s {
		c := int(r)
		if c >= floor && (!found || c < m) {
			m = c
			found = true
		}
	}
	if !found {
		return floor
	}
	return m
}
