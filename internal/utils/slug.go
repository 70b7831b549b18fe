package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

var (
	nonSlugChars = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	slugPattern  = regexp.MustCompile(`^[\p{L}\p{N}]+(-[\p{L}\p{N}]+)*$`)
)

// Slugify lowercases name and joins its letters and digits with dashes.
// Non-Latin letters are kept so Hebrew names still produce a slug.
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(slug, "-")
}

// IsValidSlug reports whether slug has the shape Slugify produces.
func IsValidSlug(slug string) bool {
	return slug != "" && len(slug) <= 100 && slugPattern.MatchString(slug)
}

// GenerateSlug slugifies name and appends a random suffix in the format xxxx-xxxx.
func GenerateSlug(name string) (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	suffix := hex.EncodeToString(bytes)
	base := Slugify(name)
	if base == "" {
		base = "org"
	}
	if runes := []rune(base); len(runes) > 40 {
		base = strings.Trim(string(runes[:40]), "-")
	}
	return fmt.Sprintf("%s-%s-%s", base, suffix[0:4], suffix[4:8]), nil
}
