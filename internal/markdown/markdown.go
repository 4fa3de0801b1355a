// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package markdown renders archive item bodies to HTML using goldmark.
// Inline HTML is allowed in the source, so older entries keep their
// formatting, and everything is passed through a bluemonday UGC policy
// because blog bodies come from readers.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"mollik/internal/models"
)

// prose renders essays, blog posts and media descriptions.
var prose = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// verse keeps every source line break, so stanzas survive rendering.
var verse = goldmark.New(
	goldmark.WithExtensions(
		extension.Strikethrough,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithUnsafe(),
	),
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// ToHTML converts a body of the given kind into sanitized HTML.
func ToHTML(kind models.ContentKind, source string) (string, error) {
	md := prose
	if kind == models.KindPoem || kind == models.KindSong {
		md = verse
	}

	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render %s body: %w", kind, err)
	}
	return string(policy.SanitizeBytes(buf.Bytes())), nil
}
