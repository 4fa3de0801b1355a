// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation and per-namespace
// slug allocation for content items.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxLength caps generated slugs, counted in runes.
const MaxLength = 200

// multipleHyphens collapses consecutive hyphens into one.
var multipleHyphens = regexp.MustCompile(`-{2,}`)

// Generate creates a URL-friendly slug from the given string.
// Accents on Latin letters are folded ("Café" → "cafe"); text in other
// scripts (Bengali) keeps its exact code points and is percent-encoded at
// link time.
// Example: "Hello, World! 2026" → "hello-world-2026"
func Generate(s string) string {
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	prevLatin := false
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			if !prevLatin {
				b.WriteRune(r)
			}
			continue
		}
		prevLatin = unicode.Is(unicode.Latin, r)
		if prevLatin && r > unicode.MaxASCII {
			// Only Latin letters are decomposed, to drop their accents.
			for _, d := range norm.NFD.String(string(r)) {
				if !unicode.Is(unicode.Mn, d) {
					writeRune(&b, d)
				}
			}
			continue
		}
		writeRune(&b, r)
	}

	result := multipleHyphens.ReplaceAllString(b.String(), "-")
	result = strings.Trim(result, "-")
	return truncate(result, MaxLength)
}

func writeRune(b *strings.Builder, r rune) {
	switch {
	case unicode.IsSpace(r) || r == '_' || r == '-':
		b.WriteByte('-')
	case r <= unicode.MaxASCII:
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	case unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsDigit(r):
		b.WriteRune(unicode.ToLower(r))
	}
}

// truncate shortens s to at most n runes without leaving a trailing hyphen.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimRight(string(runes[:n]), "-")
}
