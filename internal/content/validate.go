package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"mollik/internal/models"
)

// Validation limits for content fields.
const (
	maxTitleLen   = 300
	maxSlugLen    = 300
	maxBodyLen    = 100_000
	maxExcerptLen = 1_000
)

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, models.ErrInvalidInput)
}

// validateFields checks user-supplied content fields and returns the first
// problem found.
func validateFields(title, slug, body string, excerpt *string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return invalid("title is too long (max 300 characters)")
	}
	if utf8.RuneCountInString(slug) > maxSlugLen {
		return invalid("slug is too long (max 300 characters)")
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		return invalid("body is too long (max 100,000 characters)")
	}
	if excerpt != nil && utf8.RuneCountInString(*excerpt) > maxExcerptLen {
		return invalid("excerpt is too long (max 1,000 characters)")
	}
	return nil
}
