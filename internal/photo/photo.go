// Package photo stores tap snapshots and hands back a URL. Every store
// degrades to "" on failure so attendance capture never waits on it.
package photo

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"absensi/internal/attendance"
	"absensi/internal/cloudinary"
	"absensi/internal/logging"
)

var ErrInvalidImage = errors.New("image_data is not valid base64")

// Decode accepts raw base64 or a data URL such as "data:image/jpeg;base64,...".
func Decode(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	if strings.HasPrefix(data, "data:") {
		i := strings.Index(data, ",")
		if i < 0 {
			return nil, ErrInvalidImage
		}
		data = data[i+1:]
	}
	img, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidImage
	}
	return img, nil
}

// Cloudinary uploads snapshots to Cloudinary.
type Cloudinary struct {
	client *cloudinary.Client
	log    logging.Logger
}

var _ attendance.PhotoStore = (*Cloudinary)(nil)

// NewCloudinary wraps client as a PhotoStore.
func NewCloudinary(client *cloudinary.Client, log logging.Logger) *Cloudinary {
	return &Cloudinary{client: client, log: log}
}

// Store uploads image and returns its secure URL, or "" on failure.
func (c *Cloudinary) Store(ctx context.Context, image []byte, hint string) string {
	res, err := c.client.UploadBytes(ctx, image, hint)
	if err != nil {
		c.log.Warn("cloudinary upload failed", "hint", hint, "err", err)
		return ""
	}
	return res.SecureURL
}

// Local writes snapshots as JPEG files under Dir and serves them from
// URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
	log       logging.Logger
}

var _ attendance.PhotoStore = (*Local)(nil)

// NewLocal stores photos under dir and serves them from urlPrefix.
func NewLocal(dir, urlPrefix string, log logging.Logger) *Local {
	return &Local{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/"), log: log}
}

// Store writes image to disk and returns its URL, or "" on failure.
func (l *Local) Store(ctx context.Context, image []byte, hint string) string {
	if err := ctx.Err(); err != nil {
		l.log.Warn("photo store skipped", "hint", hint, "err", err)
		return ""
	}
	name := safeName(hint) + ".jpg"
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		l.log.Warn("create photo dir failed", "dir", l.Dir, "err", err)
		return ""
	}
	if err := os.WriteFile(filepath.Join(l.Dir, name), image, 0o644); err != nil {
		l.log.Warn("write photo failed", "file", name, "err", err)
		return ""
	}
	return l.URLPrefix + "/" + name
}

func safeName(hint string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, hint)
}
