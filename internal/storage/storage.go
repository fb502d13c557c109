// Package storage keeps uploaded profile images on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
)

// MaxImageBytes is the largest accepted upload.
const MaxImageBytes = 2 << 20

// PublicPrefix is the URL path prefix images are served under.
const PublicPrefix = "uploads"

const clientsDir = "clients"

var allowed = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// ImageStore persists profile images and returns their relative public path.
type ImageStore interface {
	SaveImage(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, rel string) error
}

// Disk stores files below Root. Files land in Root/clients and are
// addressed as uploads/clients/<uuid>.<ext>.
type Disk struct {
	Root string
}

var _ ImageStore = (*Disk)(nil)

// NewDisk creates the directory layout under root.
func NewDisk(root string) (*Disk, error) {
	if err := os.MkdirAll(filepath.Join(root, clientsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Disk{Root: root}, nil
}

// SaveImage validates extension, size and content type, then writes the file.
func (d *Disk) SaveImage(_ context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowed[ext]
	if !ok {
		return "", errs.Validationf("profile_image must be a file of type: jpg, jpeg, png, webp")
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", errs.Validationf("profile_image must not be greater than 2048 kilobytes")
	}
	if len(data) == 0 || !sameImageType(http.DetectContentType(data), want) {
		return "", errs.Validationf("profile_image must be an image")
	}

	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	name := id.String() + ext
	if err := os.WriteFile(filepath.Join(d.Root, clientsDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path.Join(PublicPrefix, clientsDir, name), nil
}

// Remove deletes a previously saved image. Missing files are ignored.
func (d *Disk) Remove(_ context.Context, rel string) error {
	rel = ImagePath(rel)
	if !strings.HasPrefix(rel, PublicPrefix+"/"+clientsDir+"/") {
		return nil
	}
	name := path.Base(rel)
	err := os.Remove(filepath.Join(d.Root, clientsDir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// webp sniffs as application/octet-stream on older runtimes.
func sameImageType(sniffed, want string) bool {
	if sniffed == want {
		return true
	}
	return want == "image/webp" && sniffed == "application/octet-stream"
}

var publicRe = regexp.MustCompile(`^public/`)

// ImagePath normalises a stored image reference to a bare relative path:
// absolute URLs lose scheme and host, a leading "public/" and slashes are dropped.
func ImagePath(p string) string {
	if p == "" {
		return ""
	}
	lower := strings.ToLower(p)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(p)
		if err != nil {
			return ""
		}
		p = strings.TrimLeft(u.Path, "/")
	}
	p = publicRe.ReplaceAllString(p, "")
	return strings.TrimLeft(p, "/")
}

// ImagePathPtr applies ImagePath to an optional value.
func ImagePathPtr(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	s := ImagePath(*p)
	if s == "" {
		return nil
	}
	return &s
}
