package document

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// SanitizeFilename strips everything outside [a-zA-Z0-9_.-], so the
// result can never contain a path separator.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "")
}

// LocalFile resolves a requested filename inside dir. Dot-only names and
// names that sanitize to nothing are rejected with ErrNotFound.
func LocalFile(dir, requested string) (string, error) {
	name := SanitizeFilename(requested)
	if strings.Trim(name, ".") == "" {
		return "", ErrNotFound
	}

	full := filepath.Join(dir, name)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", ErrNotFound
	}
	return full, nil
}

// TempName returns a collision-resistant file name: prefix, timestamp and
// a random component.
func TempName(prefix, ext string) string {
	return fmt.Sprintf("%s_%d_%s%s", prefix, time.Now().UnixNano(), uuid.NewString(), ext)
}

// removeQuietly deletes a file this request created. A missing file or a
// failed removal is logged, never returned.
func removeQuietly(name string) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		log.Warnf("failed to clean up temp file %s: %v", name, err)
	}
}

// Extension returns the lower-cased trailing extension of a document URL
// without the dot.
func Extension(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(p)), ".")
}

// ContentTypeFor infers a document's content type from its URL
func ContentTypeFor(raw string) string {
	switch Extension(raw) {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "doc":
		return "application/msword"
	default:
		return "application/octet-stream"
	}
}
