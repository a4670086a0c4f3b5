// Package upload implements the image ingestion pipeline: it accepts
// untrusted binary payloads from multipart uploads or inline data URIs,
// verifies they are genuinely images, and persists them under the
// managed uploads/ directory. Destructive operations are confined to
// that directory; a stored path that does not begin with "uploads/" is
// never touched on disk.
package upload

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	// Structural validation decodes image headers; these registrations
	// back image.DecodeConfig for every accepted format.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// MaxImageBytes caps both the declared multipart size and the decoded
// data-URI payload.
const MaxImageBytes = 10 << 20 // 10 MiB

// RelPrefix is the path prefix every managed image reference carries.
// Product rows may instead hold external URLs, which the pipeline never
// deletes.
const RelPrefix = "uploads"

// Sniffed content types the pipeline accepts. The sniff is a cheap
// pre-filter; image.DecodeConfig is the authoritative check.
var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Store persists validated images under <root>/uploads.
type Store struct {
	root     string
	maxBytes int64
}

// NewStore returns a Store rooted at the application directory holding
// uploads/. The directory itself is created lazily on first write so a
// read-only deployment can still serve existing files.
func NewStore(root string) *Store {
	return &Store{root: root, maxBytes: MaxImageBytes}
}

// Dir returns the absolute managed directory.
func (s *Store) Dir() string { return filepath.Join(s.root, RelPrefix) }

// SaveUpload ingests the multipart shape. The *multipart.FileHeader
// must come from the parsed request form; accepting only that type (and
// never a client-supplied path) is what keeps arbitrary filesystem
// files out of the pipeline. The declared size is checked before the
// content is read, then the bytes go through the common validate-and-
// store path.
func (s *Store) SaveUpload(fh *multipart.FileHeader) (string, error) {
	if fh == nil || fh.Size == 0 {
		return "", failf(ReasonIO, "no uploaded file present")
	}
	if fh.Size > s.maxBytes {
		return "", failf(ReasonTooLarge, "declared size %d exceeds limit %d", fh.Size, s.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return "", failf(ReasonIO, "open uploaded file: %w", err)
	}
	defer f.Close()

	// The declared size is client-controlled; re-check while reading.
	data, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return "", failf(ReasonIO, "read uploaded file: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", failf(ReasonTooLarge, "uploaded content exceeds limit %d", s.maxBytes)
	}
	return s.store(data)
}

// SaveDataURI ingests the inline shape: a data:image/<type>;base64,
// string. The base64 payload is decoded strictly and capped at the same
// limit as multipart uploads.
func (s *Store) SaveDataURI(uri string) (string, error) {
	_, payload, ok := splitDataURI(uri)
	if !ok {
		return "", failf(ReasonWrongType, "malformed data URI prefix %q", truncate(uri, 40))
	}
	// Bound the decode before allocating: 4 base64 chars per 3 bytes.
	if int64(len(payload)) > (s.maxBytes/3+1)*4+4 {
		return "", failf(ReasonTooLarge, "encoded payload of %d chars exceeds limit", len(payload))
	}
	data, err := base64.StdEncoding.Strict().DecodeString(payload)
	if err != nil {
		return "", failf(ReasonWrongType, "strict base64 decode: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", failf(ReasonTooLarge, "decoded payload %d exceeds limit %d", len(data), s.maxBytes)
	}
	return s.store(data)
}

// Remove deletes a previously stored file, but only when its recorded
// path is confined to the managed directory. External URLs and paths
// that resolve outside uploads/ are silently left alone; that is the
// invariant protecting unrelated files from a malformed stored path.
func (s *Store) Remove(rel string) error {
	if !Managed(rel) {
		return nil
	}
	clean := path.Clean(rel)
	if !strings.HasPrefix(clean, RelPrefix+"/") || strings.Contains(clean, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(clean)))
	if err != nil && !os.IsNotExist(err) {
		return failf(ReasonIO, "remove %s: %w", clean, err)
	}
	return nil
}

// Managed reports whether an image reference points into the managed
// uploads directory (as opposed to an external URL or empty value).
func Managed(rel string) bool {
	return strings.HasPrefix(rel, RelPrefix+"/")
}

// store runs the common tail of both shapes: structural validation,
// directory checks, and an atomic write. Either a complete valid file
// exists at the returned relative path, or nothing was written.
func (s *Store) store(data []byte) (string, error) {
	ext, err := validate(data)
	if err != nil {
		return "", err
	}
	if err := s.ensureDir(); err != nil {
		return "", err
	}

	name := fmt.Sprintf("product_%d_%s.%s",
		time.Now().UTC().Unix(),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		ext)
	final := filepath.Join(s.Dir(), name)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", failf(ReasonIO, "write image: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", failf(ReasonIO, "finalize image: %w", err)
	}
	return path.Join(RelPrefix, name), nil
}

// validate confirms the bytes are a structurally valid image of an
// accepted type and returns the stored file extension. The extension
// comes from the decoded format, not from any client-declared name or
// MIME type, so a renamed or mislabelled payload cannot smuggle a
// different type through.
func validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", failf(ReasonNotImage, "empty payload")
	}
	sniffed := http.DetectContentType(data)
	if !allowedMIME[sniffed] {
		return "", failf(ReasonWrongType, "content sniffed as %s", sniffed)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", failf(ReasonNotImage, "decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", failf(ReasonNotImage, "image has no resolvable dimensions")
	}
	if format == "jpeg" {
		return "jpg", nil
	}
	return format, nil
}

// ensureDir creates the managed directory when absent and probes that
// it is writable, mirroring the pre-flight the persistence contract
// requires.
func (s *Store) ensureDir() error {
	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failf(ReasonUnwritable, "create %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return failf(ReasonUnwritable, "probe %s: %w", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
