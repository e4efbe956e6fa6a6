package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"friendchat/internal/domain"
)

// DefaultMaxBytes caps a single decoded image.
const DefaultMaxBytes = 10 << 20

// RoutePrefix is where the HTTP layer serves stored files.
const RoutePrefix = "/api/uploads/"

var extByMIME = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// Uploader stores base64 data URLs on local disk and hands back a public URL.
type Uploader struct {
	dir      string
	baseURL  string
	maxBytes int
	log      *zap.Logger
}

func NewUploader(dir, publicBaseURL string, log *zap.Logger) (*Uploader, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Uploader{
		dir:      dir,
		baseURL:  strings.TrimSuffix(publicBaseURL, "/"),
		maxBytes: DefaultMaxBytes,
		log:      log,
	}, nil
}

func (u *Uploader) Dir() string { return u.dir }

// Upload decodes a "data:<mime>;base64,<payload>" string and writes it
// under a fresh name.
func (u *Uploader) Upload(ctx context.Context, dataURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mime, payload, err := parseDataURL(dataURL)
	if err != nil {
		return "", err
	}
	ext, ok := extByMIME[mime]
	if !ok {
		return "", fmt.Errorf("unsupported image type %q: %w", mime, domain.ErrInvalidInput)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > u.maxBytes {
		return "", fmt.Errorf("image too large: %w", domain.ErrInvalidInput)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", domain.ErrInvalidInput)
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(u.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	u.log.Debug("image stored", zap.String("file", name), zap.Int("bytes", len(data)))

	return u.baseURL + RoutePrefix + name, nil
}

func parseDataURL(s string) (mime, payload string, err error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", "", fmt.Errorf("image must be a data URL: %w", domain.ErrInvalidInput)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", "", fmt.Errorf("image must be base64 encoded: %w", domain.ErrInvalidInput)
	}
	mime = strings.ToLower(strings.TrimSuffix(header, ";base64"))
	return mime, payload, nil
}
