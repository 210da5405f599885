// Package storage keeps uploaded files: profile photos and tenant logos.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var (
	ErrObjectNotFound  = errors.New("object not found")
	ErrInvalidKey      = errors.New("invalid object key")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyUpload     = errors.New("empty upload")
)

// TooLargeError reports an upload over the size limit. It formats the limit
// for humans.
type TooLargeError struct {
	Limit int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("file exceeds the %s limit", humanize.IBytes(uint64(e.Limit)))
}

// Object describes a stored file.
type Object struct {
	Key         string
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Store saves and retrieves files by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	Delete(ctx context.Context, key string) error
}

// allowed maps sniffed content types to the file extension they are stored with.
var allowed = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// ImageTypes are the content types accepted for photos and logos.
var ImageTypes = []string{"image/jpeg", "image/png", "image/webp"}

// DocumentTypes also accept PDF files.
var DocumentTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

func contentTypeFor(ext string) string {
	for ct, e := range allowed {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}

// Upload is a validated file ready to be stored.
type Upload struct {
	Data        []byte
	ContentType string
	Ext         string
}

// ReadUpload reads at most limit bytes from r and sniffs its content type,
// which must be one of accept.
func ReadUpload(r io.Reader, limit int64, accept []string) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, &TooLargeError{Limit: limit}
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}

	contentType := http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	ext, ok := allowed[contentType]
	if !ok || !contains(accept, contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}
	return &Upload{Data: data, ContentType: contentType, Ext: ext}, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Save stores u under key and returns the key.
func Save(ctx context.Context, s Store, key string, u *Upload) (string, error) {
	if err := s.Put(ctx, key, bytes.NewReader(u.Data), u.ContentType); err != nil {
		return "", err
	}
	return key, nil
}

// cleanKey validates a slash-separated key and returns it in canonical form.
func cleanKey(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, '\\') || strings.ContainsRune(key, 0) {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := path.Clean(key)
	if path.IsAbs(cleaned) || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// Disk stores files under a root directory.
type Disk struct {
	root string
}

// NewDisk creates the root directory if needed and returns a Disk store.
func NewDisk(root string) (*Disk, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	return &Disk{root: abs}, nil
}

func (d *Disk) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(cleaned)), nil
}

// Put writes r to key atomically, replacing any existing file.
func (d *Disk) Put(ctx context.Context, key string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("creating object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing object: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("storing object: %w", err)
	}
	return nil
}

// Open returns a reader for key. The caller must close it.
func (d *Disk) Open(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p, err := d.path(key)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrObjectNotFound
		}
		return nil, nil, fmt.Errorf("opening object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat object: %w", err)
	}
	obj := &Object{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentTypeFor(strings.ToLower(filepath.Ext(p))),
		ModTime:     info.ModTime(),
	}
	return f, obj, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (d *Disk) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting object: %w", err)
	}
	return nil
}
