package uploader_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/kyc/uploader"
	"github.com/LuisNMHN/NetmarketHN-sub000/internal/storage"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

// memStore is an in-memory ObjectStore with per-bucket failure control.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte // bucket/key
	failing map[string]bool   // bucket -> reject writes
}

func newMemStore() *memStore {
	return &memStore{
		objects: make(map[string][]byte),
		failing: make(map[string]bool),
	}
}

func (s *memStore) Put(_ context.Context, bucket, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[bucket] {
		return fmt.Errorf("bucket %s unavailable", bucket)
	}
	s.objects[bucket+"/"+key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return data, nil
}

type fakeRegistry struct {
	err   error
	paths map[string]string // userID/docType -> path
}

func (r *fakeRegistry) RegisterDocument(_ context.Context, userID string, dt domain.DocType, path string) error {
	if r.err != nil {
		return r.err
	}
	if r.paths == nil {
		r.paths = make(map[string]string)
	}
	r.paths[userID+"/"+string(dt)] = path
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Pseudo-noise keeps PNG from compressing to nothing.
			img.Set(x, y, color.RGBA{uint8(x*7 + y*13), uint8(x * y), uint8(x ^ y), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pdfBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, "%PDF-1.4\n")
	return data
}

func newUploader(store *memStore, reg *fakeRegistry, cfg uploader.Config) *uploader.Uploader {
	fb := storage.NewFallbackStore(store, "docs", []string{"docs-backup"}, zap.NewNop())
	return uploader.New(fb, reg, cfg, zap.NewNop())
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	u := newUploader(newMemStore(), &fakeRegistry{}, uploader.Config{MaxSizeMB: 5})
	ctx := context.Background()

	if _, err := u.Upload(ctx, "u1", domain.DocFront, "doc.txt", []byte("hello")); !errors.Is(err, xerrors.ErrFileTypeNotAllowed) {
		t.Errorf("txt extension = %v, want ErrFileTypeNotAllowed", err)
	}
	// Right extension, wrong content.
	if _, err := u.Upload(ctx, "u1", domain.DocFront, "doc.jpg", []byte("just some plain text content here")); !errors.Is(err, xerrors.ErrFileTypeNotAllowed) {
		t.Errorf("text sniffed as jpg = %v, want ErrFileTypeNotAllowed", err)
	}
}

func TestUploadHardSizeCeiling(t *testing.T) {
	// 0.01MB limit -> 10485 byte soft max, ~15728 byte hard ceiling.
	u := newUploader(newMemStore(), &fakeRegistry{}, uploader.Config{MaxSizeMB: 0.01})

	_, err := u.Upload(context.Background(), "u1", domain.DocAddressProof, "proof.pdf", pdfBytes(20000))
	if !errors.Is(err, xerrors.ErrFileTooLarge) {
		t.Errorf("20000 bytes = %v, want ErrFileTooLarge", err)
	}
}

func TestUploadSoftWarningBand(t *testing.T) {
	u := newUploader(newMemStore(), &fakeRegistry{}, uploader.Config{MaxSizeMB: 0.01})
	ctx := context.Background()

	// 90% of the limit: accepted with a warning.
	res, err := u.Upload(ctx, "u1", domain.DocAddressProof, "proof.pdf", pdfBytes(9400))
	if err != nil {
		t.Fatalf("upload in warning band failed: %v", err)
	}
	if len(res.Warnings) == 0 || !strings.Contains(res.Warnings[0], "close to") {
		t.Errorf("warnings = %v, want near-limit warning", res.Warnings)
	}

	// Well under the band: no warnings.
	res, err = u.Upload(ctx, "u1", domain.DocAddressProof, "proof.pdf", pdfBytes(5000))
	if err != nil {
		t.Fatalf("small upload failed: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
}

func TestUploadDeterministicPathUpsert(t *testing.T) {
	store := newMemStore()
	reg := &fakeRegistry{}
	u := newUploader(store, reg, uploader.Config{MaxSizeMB: 5})
	ctx := context.Background()

	first, err := u.Upload(ctx, "u1", domain.DocSelfie, "IMG_0001.png", pngBytes(t, 40, 40))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := u.Upload(ctx, "u1", domain.DocSelfie, "IMG_9999.png", pngBytes(t, 40, 40))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if first.Path != second.Path {
		t.Errorf("paths differ: %q vs %q; re-upload must replace in place", first.Path, second.Path)
	}
	if got := reg.paths["u1/selfie"]; got != second.Path {
		t.Errorf("registered path = %q, want %q", got, second.Path)
	}
	if !strings.HasPrefix(first.Path, "u1/selfie/") {
		t.Errorf("path = %q, want user/docType prefix", first.Path)
	}
}

func TestUploadLowResolutionWarning(t *testing.T) {
	u := newUploader(newMemStore(), &fakeRegistry{}, uploader.Config{
		MaxSizeMB: 5, MinImageWidth: 600, MinImageHeight: 400,
	})

	res, err := u.Upload(context.Background(), "u1", domain.DocFront, "front.png", pngBytes(t, 50, 50))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "resolution") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want resolution warning", res.Warnings)
	}
}

func TestUploadCompressesOversizeImage(t *testing.T) {
	data := pngBytes(t, 200, 200)
	// Pin the soft limit just under the actual payload so compression
	// kicks in while the hard ceiling stays above it.
	cfg := uploader.Config{
		MaxSizeMB:       float64(len(data)) * 0.8 / 1024 / 1024,
		CompressEnabled: true,
		CompressMaxDim:  64,
		CompressQuality: 75,
	}
	store := newMemStore()
	u := newUploader(store, &fakeRegistry{}, cfg)

	res, err := u.Upload(context.Background(), "u1", domain.DocFront, "front.png", data)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !res.Compressed {
		t.Fatal("oversize image was not compressed")
	}
	stored, err := store.Get(context.Background(), res.Bucket, res.Path)
	if err != nil {
		t.Fatalf("stored object missing: %v", err)
	}
	if len(stored) >= len(data) {
		t.Errorf("stored %d bytes, original %d; compression did not shrink", len(stored), len(data))
	}
}

func TestUploadStorageErrorDistinctFromRegistryError(t *testing.T) {
	ctx := context.Background()

	// Every bucket down: storage failure surface.
	store := newMemStore()
	store.failing["docs"] = true
	store.failing["docs-backup"] = true
	u := newUploader(store, &fakeRegistry{}, uploader.Config{MaxSizeMB: 5})

	_, err := u.Upload(ctx, "u1", domain.DocFront, "front.png", pngBytes(t, 40, 40))
	if !errors.Is(err, xerrors.ErrStorageWrite) {
		t.Errorf("all buckets down = %v, want ErrStorageWrite", err)
	}

	// Storage fine, registry down: a different failure surface.
	regErr := errors.New("db down")
	u = newUploader(newMemStore(), &fakeRegistry{err: regErr}, uploader.Config{MaxSizeMB: 5})

	_, err = u.Upload(ctx, "u1", domain.DocFront, "front.png", pngBytes(t, 40, 40))
	if err == nil || errors.Is(err, xerrors.ErrStorageWrite) {
		t.Errorf("registry failure = %v, must not wrap ErrStorageWrite", err)
	}
	if !errors.Is(err, regErr) {
		t.Errorf("registry failure = %v, want wrapped cause", err)
	}
}

func TestUploadFallsBackToSecondaryBucket(t *testing.T) {
	store := newMemStore()
	store.failing["docs"] = true
	u := newUploader(store, &fakeRegistry{}, uploader.Config{MaxSizeMB: 5})

	res, err := u.Upload(context.Background(), "u1", domain.DocBack, "back.png", pngBytes(t, 40, 40))
	if err != nil {
		t.Fatalf("upload with primary down: %v", err)
	}
	if res.Bucket != "docs-backup" {
		t.Errorf("bucket = %q, want docs-backup", res.Bucket)
	}
}
