// Package uploader validates and stores one verification document:
// type/size checks before any I/O, optional client-side style
// compression for oversized images, a deterministic upsert path per
// (user, docType), and distinct failure surfaces for the object write
// versus the path registration.
package uploader

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/storage"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/imagex"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

var allowedExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
	".heic": true, ".heif": true, ".pdf": true,
}

// sniffable formats DetectContentType can actually identify; heic/heif
// sniff as application/octet-stream so they pass on extension alone.
var allowedMIMEs = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/webp": true,
	"application/pdf": true, "application/octet-stream": true,
}

// Registry records the resulting object path on the KYC record. Kept
// as an interface so the uploader does not depend on the repository.
type Registry interface {
	RegisterDocument(ctx context.Context, userID string, dt domain.DocType, path string) error
}

type Config struct {
	MaxSizeMB       float64
	MinImageWidth   int
	MinImageHeight  int
	CompressEnabled bool
	CompressMaxDim  int
	CompressQuality int
}

// Result reports where the document landed plus any soft warnings.
type Result struct {
	Path       string   `json:"path"`
	Bucket     string   `json:"bucket"`
	Compressed bool     `json:"compressed"`
	Warnings   []string `json:"warnings,omitempty"`
}

type Uploader struct {
	store    *storage.FallbackStore
	registry Registry
	cfg      Config
	logger   *zap.Logger
}

func New(store *storage.FallbackStore, registry Registry, cfg Config, logger *zap.Logger) *Uploader {
	return &Uploader{store: store, registry: registry, cfg: cfg, logger: logger}
}

// Upload validates, maybe compresses, stores and registers one document.
// Registration failure is surfaced as-is (a repository error), storage
// failure wraps xerrors.ErrStorageWrite; the two are distinguishable.
func (u *Uploader) Upload(ctx context.Context, userID string, dt domain.DocType, filename string, data []byte) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExts[ext] {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrFileTypeNotAllowed, ext)
	}
	if mime := http.DetectContentType(data); !allowedMIMEs[mime] {
		return nil, fmt.Errorf("%w: %s", xerrors.ErrFileTypeNotAllowed, mime)
	}

	maxBytes := int(u.cfg.MaxSizeMB * 1024 * 1024)
	hardCeiling := maxBytes + maxBytes/2 // 1.5x
	if len(data) > hardCeiling {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", xerrors.ErrFileTooLarge, len(data), hardCeiling)
	}

	res := &Result{}

	isImage := ext != ".pdf" && ext != ".heic" && ext != ".heif"
	if isImage {
		img, format, err := imagex.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: unreadable image", xerrors.ErrFileTypeNotAllowed)
		}

		b := img.Bounds()
		if u.lowResolution(b.Dx(), b.Dy()) {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("image resolution %dx%d is close to the minimum; the document may be hard to read", b.Dx(), b.Dy()))
		}

		if len(data) > maxBytes && u.cfg.CompressEnabled {
			compressed, outFormat, err := imagex.Compress(img, format,
				u.cfg.CompressMaxDim, u.cfg.CompressMaxDim, u.cfg.CompressQuality)
			if err != nil {
				u.logger.Warn("compression failed, uploading original",
					zap.String("user_id", userID), zap.Error(err))
			} else {
				data = compressed
				res.Compressed = true
				if outFormat == "jpeg" && ext != ".jpg" && ext != ".jpeg" {
					ext = ".jpg"
				}
			}
		}
	}

	if len(data) >= maxBytes*8/10 && len(data) <= maxBytes {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("file size %.1fMB is close to the %.1fMB limit", float64(len(data))/1024/1024, u.cfg.MaxSizeMB))
	}
	if len(data) > maxBytes && !res.Compressed {
		// Over the soft limit but under the hard ceiling: allowed, warned.
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("file size %.1fMB exceeds the recommended %.1fMB", float64(len(data))/1024/1024, u.cfg.MaxSizeMB))
	}

	key := storage.ObjectKey(userID, dt, ext)
	bucket, err := u.store.Put(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrStorageWrite, err)
	}
	res.Path = key
	res.Bucket = bucket

	if err := u.registry.RegisterDocument(ctx, userID, dt, key); err != nil {
		// The object landed but the record does not point at it; the
		// whole upload counts as failed and the caller retries.
		return nil, fmt.Errorf("register document path: %w", err)
	}

	u.logger.Info("document uploaded",
		zap.String("user_id", userID),
		zap.String("doc_type", string(dt)),
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Bool("compressed", res.Compressed))
	return res, nil
}

// lowResolution flags dimensions in the 80-100% band of the minimum.
// Below 80% would also warn; the upload still proceeds either way
// because review happens server-side.
func (u *Uploader) lowResolution(w, h int) bool {
	if u.cfg.MinImageWidth <= 0 || u.cfg.MinImageHeight <= 0 {
		return false
	}
	return w < u.cfg.MinImageWidth || h < u.cfg.MinImageHeight
}
