package reports

import (
	"io"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"weird name!.txt", "weird_name_.txt"},
		{"...", "attachment"},
		{"", "attachment"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFileStorageSaveOpenRemove(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	path, size, err := fs.Save("report-1", "notes.txt", strings.NewReader("field notes"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if size != int64(len("field notes")) {
		t.Errorf("size = %d", size)
	}

	reader, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil || string(data) != "field notes" {
		t.Errorf("read %q, err %v", data, err)
	}

	if err := fs.Remove(path); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	// Removing again is a no-op.
	if err := fs.Remove(path); err != nil {
		t.Errorf("second Remove() error: %v", err)
	}
}

func TestFileStorageRejectsOutsidePaths(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	if _, err := fs.Open("/etc/passwd"); err == nil {
		t.Error("Open() escaped the storage directory")
	}
	if err := fs.Remove("/etc/passwd"); err == nil {
		t.Error("Remove() escaped the storage directory")
	}
}

func TestFileStorageUniqueNames(t *testing.T) {
	fs := NewFileStorage(t.TempDir())

	first, _, err := fs.Save("report-1", "same.txt", strings.NewReader("a"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	second, _, err := fs.Save("report-1", "same.txt", strings.NewReader("b"))
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if first == second {
		t.Error("same stored path for two uploads")
	}
}
