// Package gcs stores upload raw files in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"elncore/internal/blob/core"
)

// Config selects the bucket and optional emulator endpoint.
type Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	EmulatorHost string `yaml:"emulator_host"`
}

// Store implements core.Store on a GCS bucket. Create-only writes use a
// DoesNotExist precondition, so concurrent writers of the same key cannot
// both succeed.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New connects to GCS using application default credentials, or without
// authentication when an emulator host is configured.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs.New: bucket required")
	}
	var opts []option.ClientOption
	if cfg.EmulatorHost != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs.New: create client: %w", err)
	}
	return NewWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *storage.Client, bucket, prefix string) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{client: client, bucket: bucket, prefix: prefix}
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Driver() core.Driver { return core.DriverGCS }

func (s *Store) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + key)
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	obj := s.object(key)
	if !opts.Overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}
	w := obj.NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.Metadata = core.CloneMetadata(opts.Metadata)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return core.Info{}, fmt.Errorf("gcs.Put %s: write: %w", key, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return core.Info{}, fmt.Errorf("gcs.Put %s: %w", key, core.ErrExists)
		}
		return core.Info{}, fmt.Errorf("gcs.Put %s: close: %w", key, err)
	}
	return s.fromAttrs(key, w.Attrs()), nil
}

func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	rd, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return core.Info{}, nil, fmt.Errorf("gcs.Get %s: %w", key, core.ErrNotFound)
		}
		return core.Info{}, nil, fmt.Errorf("gcs.Get %s: %w", key, err)
	}
	info := core.Info{
		Key:          key,
		Size:         rd.Attrs.Size,
		ContentType:  rd.Attrs.ContentType,
		LastModified: rd.Attrs.LastModified,
	}
	return info, rd, nil
}

func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	attrs, err := s.object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return core.Info{}, fmt.Errorf("gcs.Head %s: %w", key, core.ErrNotFound)
		}
		return core.Info{}, fmt.Errorf("gcs.Head %s: %w", key, err)
	}
	return s.fromAttrs(key, attrs), nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := s.object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs.Delete %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix + prefix})
	var infos []core.Info
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gcs.List %s: %w", prefix, err)
		}
		infos = append(infos, s.fromAttrs(strings.TrimPrefix(attrs.Name, s.prefix), attrs))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) PresignURL(_ context.Context, key string, opts core.SignedURLOptions) (string, error) {
	if opts.Method != "" && !strings.EqualFold(opts.Method, "GET") {
		return "", core.ErrUnsupported
	}
	expiry := opts.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	u, err := s.client.Bucket(s.bucket).SignedURL(s.prefix+key, &storage.SignedURLOptions{
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("gcs.PresignURL %s: %w", key, err)
	}
	return u, nil
}

func (s *Store) fromAttrs(key string, attrs *storage.ObjectAttrs) core.Info {
	if attrs == nil {
		return core.Info{Key: key}
	}
	return core.Info{
		Key:          key,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		ETag:         strings.Trim(attrs.Etag, "\""),
		Metadata:     core.CloneMetadata(attrs.Metadata),
		LastModified: attrs.Updated,
	}
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
