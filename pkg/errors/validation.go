package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// formatRegex matches image format names. Formats end up in file extensions
// and in command-line flags, so only plain alphanumerics are accepted.
var formatRegex = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

// ValidateFormat validates an output image format name such as "png" or "svg".
func ValidateFormat(format string) error {
	if format == "" {
		return New(ErrCodeInvalidFormat, "format cannot be empty")
	}
	if !formatRegex.MatchString(format) {
		return New(ErrCodeInvalidFormat, "invalid format name: %q", format)
	}
	return nil
}

// ValidateFolder validates an image folder taken from a block attribute or
// document metadata. Absolute paths are allowed because authors commonly point
// the cache at a shared build directory.
//
// Validation rules:
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidateFolder(folder string) error {
	const maxPathLength = 500
	if len(folder) > maxPathLength {
		return New(ErrCodeInvalidPath, "folder too long (max %d characters)", maxPathLength)
	}

	for _, r := range folder {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "folder contains invalid characters")
		}
	}
	return nil
}

// ValidatePath validates a path that must stay inside a root directory, such
// as an image folder received over the HTTP API.
//
// Validation rules:
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if err := ValidateFolder(path); err != nil {
		return err
	}

	if strings.HasPrefix(path, "/") || filepath.IsAbs(path) {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
