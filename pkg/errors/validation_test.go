package errors

import (
	"testing"
)

func TestValidateSourcePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple file", "package-lock.json", false},
		{"nested", "a/package-lock.json", false},
		{"dot prefix", "./go.mod", false},
		{"inner dotdot that stays inside", "a/../b/go.mod", false},

		{"empty", "", true},
		{"absolute unix", "/root/go.mod", true},
		{"absolute windows", `C:\src\go.mod`, true},
		{"windows forward slash", "c:/src/go.mod", true},
		{"unc-like", `\\server\share`, true},
		{"backslash relative", `a\go.mod`, true},
		{"escapes root", "../go.mod", true},
		{"escapes root after clean", "a/../../go.mod", true},
		{"null byte", "go\x00.mod", true},
		{"newline", "go\n.mod", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSourcePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSourcePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("ValidateSourcePath(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidPath)
			}
		})
	}
}

func TestIsAbsolutePath(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/a", true},
		{`D:\a`, true},
		{"d:/a", true},
		{"a/b", false},
		{"1:/a", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAbsolutePath(tt.input); got != tt.want {
			t.Errorf("IsAbsolutePath(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidateManifestFilename(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"package-lock", "package-lock.json", false},
		{"go.mod", "go.mod", false},
		{"Podfile.lock", "Podfile.lock", false},

		{"empty", "", true},
		{"with path /", "path/to/file", true},
		{"with path \\", "path\\to\\file", true},
		{"dot", ".", true},
		{"dotdot", "..", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateManifestFilename(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateManifestFilename(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}
