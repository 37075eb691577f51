package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

// ObjectStore writes objects into named buckets. Writes are upserts:
// a second Put to the same key overwrites the first.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, data []byte) error
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// fixedNames makes upload paths deterministic per (user, docType):
// re-uploading replaces in place rather than appending.
var fixedNames = map[domain.DocType]string{
	domain.DocFront:        "front",
	domain.DocBack:         "back",
	domain.DocSelfie:       "selfie",
	domain.DocAddressProof: "address",
}

// ObjectKey builds the canonical {userID}/{docType}/{fixedName}{ext} key.
func ObjectKey(userID string, dt domain.DocType, ext string) string {
	name, ok := fixedNames[dt]
	if !ok {
		name = string(dt)
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s/%s/%s%s", userID, dt, name, ext)
}

// DiskStore keeps objects on the local filesystem under root/bucket/key.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (s *DiskStore) Put(_ context.Context, bucket, key string, data []byte) error {
	path := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare upload dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *DiskStore) Get(_ context.Context, bucket, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, bucket, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// FallbackStore tries the primary bucket first and walks the fallback
// list when a bucket rejects the write. A per-bucket circuit breaker
// skips buckets that are failing hard so a dead bucket does not tax
// every upload.
type FallbackStore struct {
	store    ObjectStore
	primary  string
	fallback []string
	logger   *zap.Logger

	// OnFallback fires whenever a write lands on a non-primary bucket.
	OnFallback func()

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewFallbackStore(store ObjectStore, primary string, fallback []string, logger *zap.Logger) *FallbackStore {
	return &FallbackStore{
		store:    store,
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (f *FallbackStore) breaker(bucket string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	cb, ok := f.breakers[bucket]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "bucket:" + bucket,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
		})
		f.breakers[bucket] = cb
	}
	return cb
}

// Put writes the object to the first bucket that accepts it and
// returns that bucket's name. Every bucket failing yields
// xerrors.ErrAllBucketsFailed wrapping the last cause.
func (f *FallbackStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	buckets := append([]string{f.primary}, f.fallback...)

	var lastErr error
	for _, bucket := range buckets {
		_, err := f.breaker(bucket).Execute(func() (interface{}, error) {
			return nil, f.store.Put(ctx, bucket, key, data)
		})
		if err == nil {
			if bucket != f.primary {
				f.logger.Warn("upload landed on fallback bucket",
					zap.String("bucket", bucket), zap.String("key", key))
				if f.OnFallback != nil {
					f.OnFallback()
				}
			}
			return bucket, nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			f.logger.Warn("skipping bucket with open breaker", zap.String("bucket", bucket))
		} else {
			f.logger.Warn("bucket rejected write",
				zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %v", xerrors.ErrAllBucketsFailed, lastErr)
}
