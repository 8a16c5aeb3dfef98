// Package validation provides input validation for uploads and conversion
// options: filename sanitation, extension checks, and option clamping.
package validation

import (
	"path/filepath"
	"strings"

	"github.com/incipitworks/incipit/core/errors"
)

// Limits applied to uploads.
const (
	// MaxUploadBytes is the maximum allowed upload size (50 MB).
	MaxUploadBytes = 50 << 20
	// MaxFilenameLength is the maximum allowed filename length.
	MaxFilenameLength = 255
)

// DocumentExtension is the only accepted upload extension.
const DocumentExtension = ".docx"

// ValidateUploadName checks that an uploaded filename is safe and names a
// Word document. Path separators and traversal sequences are rejected.
func ValidateUploadName(name string) error {
	if name == "" {
		return errors.NewValidation("file", "no file selected")
	}
	if len(name) > MaxFilenameLength {
		return errors.NewValidation("file", "filename too long")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return errors.NewValidation("file", "invalid filename")
	}
	if !strings.EqualFold(filepath.Ext(name), DocumentExtension) {
		return errors.NewValidation("file", "please upload a .docx file")
	}
	return nil
}

// SanitizeBaseName strips the extension and any character that could leak
// into a Content-Disposition header from an uploaded filename.
func SanitizeBaseName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.' || r == ' ':
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" {
		return "document"
	}
	return cleaned
}

// ClampWordCount forces a word count into the accepted range, mapping zero to
// the default.
func ClampWordCount(wc, min, max, def int) int {
	if wc == 0 {
		return def
	}
	if wc < min {
		return min
	}
	if wc > max {
		return max
	}
	return wc
}

// ValidateStyle checks an emphasis style name.
func ValidateStyle(style string) error {
	switch strings.ToLower(style) {
	case "", "bold", "italic":
		return nil
	}
	return errors.NewValidation("format_style", "must be bold or italic")
}
