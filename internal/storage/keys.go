package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ResultKey builds a collision-free object key for a conversion result,
// keeping the human-readable base name in front of a random suffix.
func ResultKey(fileName string) string {
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(filepath.Base(fileName), ext)
	base = sanitizeBase(base)
	if base == "" {
		base = "converted"
	}
	return fmt.Sprintf("%s_%s%s", base, uuid.New().String()[:8], ext)
}

func sanitizeBase(base string) string {
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}
