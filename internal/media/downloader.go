// Package media downloads novel cover images for embedding in exports.
package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/NovelGoat/internal/config"
)

// ErrUnsupportedImage is returned for bodies that are not JPEG, PNG or GIF.
var ErrUnsupportedImage = errors.New("unsupported image type")

// maxCached bounds the cover cache; it is cleared when full.
const maxCached = 64

// Image is a downloaded, decoded-header image.
type Image struct {
	URL         string
	Data        []byte
	ContentType string
	Width       int
	Height      int
	Hash        string
}

// Extension returns the file extension matching ContentType.
func (img *Image) Extension() string {
	switch img.ContentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// Downloader fetches cover images and remembers them by URL.
type Downloader struct {
	client     *http.Client
	userAgent  string
	maxSize    int64
	downloaded atomic.Int64
	logger     *slog.Logger

	mu    sync.Mutex
	cache map[string]*Image
}

// NewDownloader creates a new cover downloader using the fetcher's timeout,
// body limit and first user agent.
func NewDownloader(cfg config.FetcherConfig, logger *slog.Logger) *Downloader {
	ua := ""
	if len(cfg.UserAgents) > 0 {
		ua = cfg.UserAgents[0]
	}
	return &Downloader{
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		userAgent: ua,
		maxSize:   cfg.MaxBodySize,
		logger:    logger.With("component", "media_downloader"),
		cache:     make(map[string]*Image),
	}
}

// Cover downloads the image at rawURL and validates it.
func (d *Downloader) Cover(ctx context.Context, rawURL string) (*Image, error) {
	d.mu.Lock()
	if img, ok := d.cache[rawURL]; ok {
		d.mu.Unlock()
		return img, nil
	}
	d.mu.Unlock()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}
	req.Header.Set("Accept", "image/jpeg,image/png,image/gif;q=0.9,*/*;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}

	// Check size
	if d.maxSize > 0 && resp.ContentLength > d.maxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", resp.ContentLength, d.maxSize)
	}

	reader := io.Reader(resp.Body)
	if d.maxSize > 0 {
		reader = io.LimitReader(resp.Body, d.maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if d.maxSize > 0 && int64(len(data)) > d.maxSize {
		return nil, fmt.Errorf("file too large: more than %d bytes", d.maxSize)
	}

	img, err := decode(rawURL, data)
	if err != nil {
		return nil, err
	}
	d.downloaded.Add(1)

	d.mu.Lock()
	if len(d.cache) >= maxCached {
		clear(d.cache)
	}
	d.cache[rawURL] = img
	d.mu.Unlock()

	d.logger.Debug("cover downloaded",
		"url", rawURL,
		"size", humanSize(int64(len(data))),
		"type", img.ContentType,
		"hash", img.Hash[:16],
		"duration", time.Since(start),
	)
	return img, nil
}

// Stats returns download statistics.
func (d *Downloader) Stats() map[string]int64 {
	return map[string]int64{
		"total_downloaded": d.downloaded.Load(),
	}
}

// decode sniffs the body and reads the image header. The Content-Type
// header is ignored; many sites serve covers as octet-stream.
func decode(rawURL string, data []byte) (*Image, error) {
	contentType := http.DetectContentType(data)
	switch contentType {
	case "image/jpeg", "image/png", "image/gif":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	hash := sha256.Sum256(data)
	return &Image{
		URL:         rawURL,
		Data:        data,
		ContentType: contentType,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Hash:        hex.EncodeToString(hash[:]),
	}, nil
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
