package downloads

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResumeOffset_matchingSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(p, make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	if got := resumeOffset(p, 100); got != 100 {
		t.Errorf("expected resume at 100, got %d", got)
	}
}

func TestResumeOffset_mismatchedSize(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(p, make([]byte, 50), 0644); err != nil {
		t.Fatal(err)
	}
	if got := resumeOffset(p, 100); got != 0 {
		t.Errorf("expected restart from 0 on mismatch, got %d", got)
	}
}

func TestResumeOffset_missingFile(t *testing.T) {
	if got := resumeOffset("/nonexistent/path", 100); got != 0 {
		t.Errorf("expected 0 for missing file, got %d", got)
	}
}

func TestResumeOffset_zeroRecorded(t *testing.T) {
	if got := resumeOffset("/nonexistent/path", 0); got != 0 {
		t.Errorf("expected 0 when nothing recorded, got %d", got)
	}
}

func TestParseContentRangeTotal(t *testing.T) {
	total, ok := parseContentRangeTotal("bytes 100-199/2000")
	if !ok || total != 2000 {
		t.Errorf("got (%d, %v), want (2000, true)", total, ok)
	}
	if _, ok := parseContentRangeTotal("garbage"); ok {
		t.Error("expected parse failure on garbage input")
	}
}

func TestFormatChapterNumber(t *testing.T) {
	if got := formatChapterNumber(12); got != "12" {
		t.Errorf("got %q, want %q", got, "12")
	}
	if got := formatChapterNumber(12.5); got != "12.5" {
		t.Errorf("got %q, want %q", got, "12.5")
	}
}

func TestExtFromURLOrContentType(t *testing.T) {
	if got := extFromURLOrContentType("https://x.com/img/page1.png", ""); got != ".png" {
		t.Errorf("got %q", got)
	}
	if got := extFromURLOrContentType("https://x.com/img/page1", "image/webp"); got != ".webp" {
		t.Errorf("got %q", got)
	}
	if got := extFromURLOrContentType("https://x.com/img/page1", ""); got != ".jpg" {
		t.Errorf("got %q, want default .jpg", got)
	}
}
