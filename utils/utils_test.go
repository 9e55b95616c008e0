package utils

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mdobak/go-xerrors"
)

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("GENRE_TEST_STR", "")
	if got := GetEnv("GENRE_TEST_STR", "default"); got != "default" {
		t.Fatalf("blank value should fall back, got %q", got)
	}

	t.Setenv("GENRE_TEST_STR", "value")
	if got := GetEnv("GENRE_TEST_STR", "default"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}

	t.Setenv("GENRE_TEST_INT", "not-a-number")
	if got := GetEnvInt("GENRE_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback 7, got %d", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"90s", 90 * time.Second},
		{"120", 120 * time.Second},
		{"1.5", 1500 * time.Millisecond},
		{"bogus", time.Minute},
	}
	for _, tc := range cases {
		t.Setenv("GENRE_TEST_DURATION", tc.raw)
		if got := GetEnvDuration("GENRE_TEST_DURATION", time.Minute); got != tc.want {
			t.Fatalf("%q: expected %v, got %v", tc.raw, tc.want, got)
		}
	}
}

func TestCreateFolderNested(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := CreateFolder(dir); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if err := CreateFolder(dir); err != nil {
		t.Fatalf("CreateFolder should be idempotent: %v", err)
	}
}

func TestUniqueNameDistinct(t *testing.T) {
	t.Parallel()

	a, b := UniqueName("upload"), UniqueName("upload")
	if a == b {
		t.Fatalf("expected distinct names, got %q twice", a)
	}
	if !strings.HasPrefix(a, "upload-") {
		t.Fatalf("missing prefix in %q", a)
	}
}

func TestFmtErrIncludesTrace(t *testing.T) {
	t.Parallel()

	v := fmtErr(xerrors.New(errors.New("boom")))
	attrs := v.Group()
	if len(attrs) != 2 {
		t.Fatalf("expected msg and trace attributes, got %d", len(attrs))
	}
	if !strings.Contains(attrs[0].Value.String(), "boom") {
		t.Fatalf("unexpected message %q", attrs[0].Value.String())
	}

	plain := fmtErr(errors.New("plain")).Group()
	if len(plain) != 1 {
		t.Fatalf("plain errors carry no trace, got %d attributes", len(plain))
	}
}
