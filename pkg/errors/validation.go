package errors

import (
	"path"
	"strings"
	"unicode"
)

// ValidateSourcePath validates the provenance path recorded on a component.
//
// Source paths are stored relative to the scanned project root using forward
// slashes. Validation rules:
//   - Path cannot be empty
//   - No null bytes or control characters
//   - No absolute paths (leading "/" or a Windows drive letter)
//   - No backslashes
//   - No parent traversal after cleaning
func ValidateSourcePath(p string) error {
	if p == "" {
		return New(ErrCodeInvalidPath, "source path cannot be empty")
	}

	for _, r := range p {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "source path contains invalid characters")
		}
	}

	if IsAbsolutePath(p) {
		return New(ErrCodeInvalidPath, "source path must be relative: %q", p)
	}

	if strings.Contains(p, "\\") {
		return New(ErrCodeInvalidPath, "source path cannot contain backslashes")
	}

	if c := path.Clean(p); c == ".." || strings.HasPrefix(c, "../") {
		return New(ErrCodeInvalidPath, "source path escapes the project root: %q", p)
	}

	return nil
}

// IsAbsolutePath reports whether p is absolute on any platform stackbom
// reads manifests from. filepath.IsAbs is not enough because documents
// produced on Windows are validated on Unix and vice versa.
func IsAbsolutePath(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return true
	}
	if len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/') {
		c := p[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	return false
}

// ValidateManifestFilename validates a manifest filename for safety.
// It ensures the filename is a simple basename without path components.
func ValidateManifestFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidManifest, "manifest filename cannot be empty")
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidManifest, "manifest filename cannot contain path separators")
	}

	if filename == "." || filename == ".." {
		return New(ErrCodeInvalidManifest, "manifest filename cannot be %q", filename)
	}

	return nil
}
