// Package upload persists user images to local disk.
//
// Handlers pass multipart file headers in; the core only ever sees the
// resulting public paths ("/uploads/posts/<name>"), and hands them back to
// Remove when a write has to be compensated.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/xid"

	"github.com/sakif/socialgraph/internal/apperror"
)

const (
	// MaxFileSize is the per-file limit.
	MaxFileSize = 5 << 20
	// MaxFiles is the number of images one post may carry.
	MaxFiles = 10
	// MaxRequestBytes bounds a whole multipart body.
	MaxRequestBytes = MaxFiles*MaxFileSize + 1<<20

	// URLPrefix is where saved files are served from.
	URLPrefix = "/uploads/"
)

// Kind selects the subdirectory a file is stored in.
type Kind string

const (
	KindPost   Kind = "posts"
	KindAvatar Kind = "avatars"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var allowedMIME = []string{"image/jpeg", "image/png", "image/gif"}

var unsafeNameChars = regexp.MustCompile(`[^\w\-]`)

const invalidTypeMessage = "Invalid file type. Only JPEG, JPG, PNG, and GIF images are allowed."

// Store writes files under a root directory.
type Store struct {
	root string
}

// NewStore creates root and its per-kind subdirectories.
func NewStore(root string) (*Store, error) {
	for _, kind := range []Kind{KindPost, KindAvatar} {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("upload: creating %s directory: %w", kind, err)
		}
	}
	return &Store{root: root}, nil
}

// Root is the directory the server exposes under URLPrefix.
func (s *Store) Root() string {
	return s.root
}

// SaveAll validates and writes every file. If any file fails, the ones
// already written are removed and the first error is returned.
func (s *Store) SaveAll(kind Kind, files []*multipart.FileHeader) ([]string, error) {
	if len(files) > MaxFiles {
		return nil, apperror.ValidationFailed("photos",
			fmt.Sprintf("Too many files. Maximum is %d files per post.", MaxFiles))
	}

	saved := make([]string, 0, len(files))
	for _, fh := range files {
		p, err := s.Save(kind, fh)
		if err != nil {
			for _, done := range saved {
				_ = s.Remove(done)
			}
			return nil, err
		}
		saved = append(saved, p)
	}
	return saved, nil
}

// Save validates one file by extension, size and sniffed content, then writes
// it as "<xid>-<sanitized name><ext>". It returns the public path.
func (s *Store) Save(kind Kind, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return "", apperror.ValidationFailed(string(kind), invalidTypeMessage)
	}
	if fh.Size > MaxFileSize {
		return "", apperror.ValidationFailed(string(kind), "File too large. Maximum size is 5MB per file.")
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("upload: opening %q: %w", fh.Filename, err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("upload: sniffing %q: %w", fh.Filename, err)
	}
	if !mimetype.EqualsAny(mtype.String(), allowedMIME...) {
		return "", apperror.ValidationFailed(string(kind), invalidTypeMessage)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("upload: rewinding %q: %w", fh.Filename, err)
	}

	base := strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename))
	name := xid.New().String() + "-" + unsafeNameChars.ReplaceAllString(base, "_") + ext

	dst, err := os.OpenFile(filepath.Join(s.root, string(kind), name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("upload: creating %s: %w", name, err)
	}

	// One byte over the limit is enough to tell the header lied about Size.
	n, copyErr := io.Copy(dst, io.LimitReader(src, MaxFileSize+1))
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("upload: writing %s: %w", name, err)
	}
	if n > MaxFileSize {
		_ = os.Remove(dst.Name())
		return "", apperror.ValidationFailed(string(kind), "File too large. Maximum size is 5MB per file.")
	}

	return URLPrefix + path.Join(string(kind), name), nil
}

// Remove deletes a file previously returned by Save. Paths that do not
// resolve inside the store are rejected. A file that is already gone is not
// an error.
func (s *Store) Remove(publicPath string) error {
	rel, ok := strings.CutPrefix(publicPath, URLPrefix)
	if !ok || rel == "" {
		return fmt.Errorf("upload: %q is not an upload path", publicPath)
	}

	full := filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+rel)))
	within, err := filepath.Rel(s.root, full)
	if err != nil || within == "." || strings.HasPrefix(within, "..") {
		return fmt.Errorf("upload: %q escapes the upload directory", publicPath)
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload: removing %s: %w", publicPath, err)
	}
	return nil
}
