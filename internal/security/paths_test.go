package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWithinDir(t *testing.T) {
	root := t.TempDir()
	safe := filepath.Join(root, "safe")
	other := filepath.Join(root, "other")
	if err := os.MkdirAll(safe, 0755); err != nil {
		t.Fatalf("Failed to create safe directory: %v", err)
	}
	if err := os.MkdirAll(other, 0755); err != nil {
		t.Fatalf("Failed to create other directory: %v", err)
	}
	if err := os.Symlink(other, filepath.Join(safe, "link")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"file in dir", filepath.Join(safe, "chart.html"), true},
		{"not yet created subdir", filepath.Join(safe, "a", "b", "chart.html"), true},
		{"dir itself", safe, true},
		{"dot dot", filepath.Join(safe, "..", "other", "x"), false},
		{"sibling", filepath.Join(other, "x"), false},
		{"through symlink", filepath.Join(safe, "link", "x"), false},
		{"new file behind symlink", filepath.Join(safe, "link", "new", "x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WithinDir(tt.path, safe)
			if tt.ok && err != nil {
				t.Errorf("WithinDir(%q) = %v, want nil", tt.path, err)
			}
			if !tt.ok && !errors.Is(err, ErrOutsideDir) {
				t.Errorf("WithinDir(%q) = %v, want ErrOutsideDir", tt.path, err)
			}
		})
	}
}

func TestWithinAnyDir(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	path := filepath.Join(b, "x")

	if err := WithinAnyDir(path, a, b); err != nil {
		t.Errorf("WithinAnyDir with matching dir: %v", err)
	}
	if err := WithinAnyDir(path, a); !errors.Is(err, ErrOutsideDir) {
		t.Errorf("WithinAnyDir outside dir = %v, want ErrOutsideDir", err)
	}
	if err := WithinAnyDir(path); !errors.Is(err, ErrOutsideDir) {
		t.Errorf("WithinAnyDir with no dirs = %v, want ErrOutsideDir", err)
	}
}

func TestValidateOutputPath(t *testing.T) {
	if err := ValidateOutputPath("chart.html"); err != nil {
		t.Errorf("relative path: %v", err)
	}
	if err := ValidateOutputPath(filepath.Join(os.TempDir(), "chart.html")); err != nil {
		t.Errorf("temp dir path: %v", err)
	}
	if err := ValidateOutputPath("/proc/self/chart.html"); !errors.Is(err, ErrOutsideDir) {
		t.Errorf("/proc path = %v, want ErrOutsideDir", err)
	}
}

func TestSafeName(t *testing.T) {
	tests := map[string]string{
		"patient_01.csv":         "patient_01.csv",
		"../../etc/passwd":       "passwd",
		`C:\exports\lead ii.csv`: "lead_ii.csv",
		"ecg (copy) #2.txt":      "ecg_copy_2.txt",
		"":                       "recording",
		"...":                    "recording",
		"  ..hidden.csv":         "hidden.csv",
	}
	for in, want := range tests {
		if got := SafeName(in); got != want {
			t.Errorf("SafeName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := SafeName(strings.Repeat("a", 500) + ".csv"); len(got) != maxNameLen {
		t.Errorf("long name length = %d, want %d", len(got), maxNameLen)
	}
}
