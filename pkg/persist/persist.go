// Package persist writes generated samples to storage.
package persist

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"golang.org/x/image/tiff"
)

// ImageFormat is an on-disk image encoding.
type ImageFormat int

const (
	PNG ImageFormat = iota
	JPEG
	TIFF
	BMP
)

// Ext returns the file extension including the dot.
func (f ImageFormat) Ext() string {
	switch f {
	case PNG:
		return ".png"
	case JPEG:
		return ".jpg"
	case TIFF:
		return ".tiff"
	case BMP:
		return ".bmp"
	}
	return ""
}

func (f ImageFormat) String() string {
	if e := f.Ext(); e != "" {
		return e[1:]
	}
	return fmt.Sprintf("ImageFormat(%d)", int(f))
}

// ParseImageFormat accepts png, jpg/jpeg, tif/tiff and bmp.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "png", "":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "tif", "tiff":
		return TIFF, nil
	case "bmp":
		return BMP, nil
	}
	return PNG, fmt.Errorf("persist: unknown image format %q", s)
}

// JPEGQuality is used for every JPEG the store writes.
const JPEGQuality = 95

func tiffEncoder(w io.Writer, img image.Image) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

func encoder(f ImageFormat) (imgio.Encoder, error) {
	switch f {
	case PNG:
		return imgio.PNGEncoder(), nil
	case JPEG:
		return imgio.JPEGEncoder(JPEGQuality), nil
	case TIFF:
		return tiffEncoder, nil
	case BMP:
		return imgio.BMPEncoder(), nil
	}
	return nil, fmt.Errorf("persist: unsupported image format %s", f)
}

// Store persists one sample's artifacts. Paths are relative to the
// store's root and use forward slashes. Every method returns the number
// of bytes written.
type Store interface {
	SaveImage(rel string, img image.Image, f ImageFormat) (int64, error)
	SaveLabel(rel string, text string) (int64, error)
	SaveJSON(rel string, v any) (int64, error)
}

// ErrMissingDir is returned when an output directory does not exist and
// the store was not allowed to create it.
var ErrMissingDir = errors.New("persist: missing output directory")

// DirStore writes files below a root directory.
type DirStore struct {
	root string
}

var _ Store = (*DirStore)(nil)

// NewDirStore checks that root and each of dirs (relative to root) exist.
// With create set, missing directories are created instead.
func NewDirStore(root string, dirs []string, create bool) (*DirStore, error) {
	for _, d := range append([]string{"."}, dirs...) {
		path := filepath.Join(root, filepath.FromSlash(d))
		fi, err := os.Stat(path)
		switch {
		case err == nil && !fi.IsDir():
			return nil, fmt.Errorf("persist: %s is not a directory", path)
		case err == nil:
		case errors.Is(err, os.ErrNotExist) && create:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, fmt.Errorf("persist: create %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrMissingDir, path)
		default:
			return nil, fmt.Errorf("persist: %w", err)
		}
	}
	return &DirStore{root: root}, nil
}

// Root returns the store's root directory.
func (s *DirStore) Root() string { return s.root }

// Path resolves rel against the root.
func (s *DirStore) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *DirStore) SaveImage(rel string, img image.Image, f ImageFormat) (int64, error) {
	enc, err := encoder(f)
	if err != nil {
		return 0, err
	}
	return s.write(rel, func(w io.Writer) error { return enc(w, img) })
}

func (s *DirStore) SaveLabel(rel string, text string) (int64, error) {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return s.write(rel, func(w io.Writer) error {
		_, err := io.WriteString(w, text)
		return err
	})
}

func (s *DirStore) SaveJSON(rel string, v any) (int64, error) {
	return s.write(rel, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// countingWriter counts bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (s *DirStore) write(rel string, fn func(io.Writer) error) (int64, error) {
	path := s.Path(rel)
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("persist: %w", err)
	}
	cw := &countingWriter{w: f}
	bw := bufio.NewWriter(cw)
	if err := fn(bw); err != nil {
		f.Close()
		return cw.n, fmt.Errorf("persist: encode %s: %w", rel, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return cw.n, fmt.Errorf("persist: write %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		return cw.n, fmt.Errorf("persist: close %s: %w", rel, err)
	}
	return cw.n, nil
}
