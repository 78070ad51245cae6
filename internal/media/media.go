// Package media stores uploaded images (recipe pictures, avatars) and
// hands back the public URL that goes into the database.
//
// Uploads arrive either as a base64 data URI inside a JSON body or as a
// multipart file. Both are decoded with imaging, shrunk if wider than
// MaxWidth, re-encoded, and written to a Store under "<folder>/<xid>.<ext>".
// Re-encoding strips metadata and guarantees the stored bytes really are
// an image.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/xid"
)

// Folders used as key prefixes.
const (
	RecipeFolder = "recipes/images"
	AvatarFolder = "users/avatars"
)

// MaxWidth is the widest image kept as uploaded; wider ones are scaled
// down preserving aspect ratio.
const MaxWidth = 1200

// MaxUploadBytes bounds the decoded size of a single upload.
const MaxUploadBytes = 10 << 20

// MaxPixels bounds width*height of an upload. Decoding allocates the whole
// canvas, so a small file declaring a huge one is rejected from its header
// alone.
const MaxPixels = 40_000_000

// ErrInvalidImage is returned for payloads that are not a decodable image.
var ErrInvalidImage = errors.New("media: invalid image")

// Store persists bytes under a key and maps keys to public URLs.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	// Delete removes the object a URL previously returned by Put points
	// at. URLs that do not belong to the store are ignored.
	Delete(ctx context.Context, url string) error
}

// Uploader turns raw uploads into stored images.
type Uploader struct {
	store Store
}

func NewUploader(store Store) *Uploader {
	return &Uploader{store: store}
}

// SaveDataURI stores a "data:image/<type>;base64,<payload>" string.
func (u *Uploader) SaveDataURI(ctx context.Context, folder, dataURI string) (string, error) {
	raw, err := DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}
	return u.Save(ctx, folder, bytes.NewReader(raw))
}

// Save decodes an image from r and stores it, returning its public URL.
func (u *Uploader) Save(ctx context.Context, folder string, r io.Reader) (string, error) {
	data, contentType, ext, err := normalize(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s/%s.%s", folder, xid.New().String(), ext)
	url, err := u.store.Put(ctx, key, data, contentType)
	if err != nil {
		return "", fmt.Errorf("media: storing %s: %w", key, err)
	}
	return url, nil
}

// Delete removes a previously stored image. Empty URLs are a no-op.
func (u *Uploader) Delete(ctx context.Context, url string) error {
	if url == "" {
		return nil
	}
	return u.store.Delete(ctx, url)
}

// DecodeDataURI extracts the bytes of a base64 image data URI.
func DecodeDataURI(s string) ([]byte, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("%w: expected data:image/...;base64,...", ErrInvalidImage)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxUploadBytes)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return raw, nil
}

// normalize decodes, bounds and re-encodes an image. PNG and GIF keep
// lossless PNG output so transparency survives; everything else becomes
// JPEG.
func normalize(r io.Reader) (data []byte, contentType, ext string, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, "", "", fmt.Errorf("media: reading upload: %w", err)
	}
	if len(raw) > MaxUploadBytes {
		return nil, "", "", fmt.Errorf("%w: larger than %d bytes", ErrInvalidImage, MaxUploadBytes)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxPixels/cfg.Height {
		return nil, "", "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if img.Bounds().Dx() > MaxWidth {
		img = imaging.Resize(img, MaxWidth, 0, imaging.Lanczos)
	}

	out := imaging.JPEG
	contentType, ext = "image/jpeg", "jpg"
	if format == "png" || format == "gif" {
		out = imaging.PNG
		contentType, ext = "image/png", "png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, out, imaging.JPEGQuality(85)); err != nil {
		return nil, "", "", fmt.Errorf("media: encoding image: %w", err)
	}
	return buf.Bytes(), contentType, ext, nil
}
