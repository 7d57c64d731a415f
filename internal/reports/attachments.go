package reports

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// FileStorage writes attachment payloads under a base directory, one
// subdirectory per report.
type FileStorage struct {
	baseDir string
}

func NewFileStorage(baseDir string) *FileStorage {
	if baseDir == "" {
		baseDir = "uploads"
	}
	return &FileStorage{baseDir: baseDir}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips path components and unsafe characters so the
// stored name cannot escape the report directory.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "attachment"
	}
	return name
}

// Save stores the payload and returns the internal path and size.
func (fs *FileStorage) Save(reportID, filename string, payload io.Reader) (string, int64, error) {
	dir := filepath.Join(fs.baseDir, "report_"+reportID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", 0, err
	}

	// Prefix with a fresh ID so repeated uploads of the same name never collide.
	stored := fmt.Sprintf("%s_%s", uuid.NewString()[:8], SanitizeFilename(filename))
	path := filepath.Join(dir, stored)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(f, payload)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, size, nil
}

// Open returns a reader over a stored attachment.
func (fs *FileStorage) Open(path string) (io.ReadCloser, error) {
	cleaned := filepath.Clean(path)
	if !strings.HasPrefix(cleaned, filepath.Clean(fs.baseDir)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("attachment path %q is outside the storage directory", path)
	}
	return os.Open(cleaned)
}

// Remove deletes a stored attachment. Missing files are not an error.
func (fs *FileStorage) Remove(path string) error {
	cleaned := filepath.Clean(path)
	if !strings.HasPrefix(cleaned, filepath.Clean(fs.baseDir)+string(os.PathSeparator)) {
		return fmt.Errorf("attachment path %q is outside the storage directory", path)
	}
	err := os.Remove(cleaned)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
