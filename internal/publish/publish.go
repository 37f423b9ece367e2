// Package publish uploads the manifest and the resource library to
// S3-compatible object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"gfres/internal/config"
	"gfres/internal/stage"
)

const defaultContentType = "application/octet-stream"

// ObjectStore is the subset of *minio.Client the publisher uses.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Tree is a local directory published under Name.
type Tree struct {
	Name string
	Root string
}

type Result struct {
	Uploaded int
	Errors   []error
}

type Publisher struct {
	client  ObjectStore
	bucket  string
	prefix  string
	logger  *zap.Logger
	workers int
}

func New(client ObjectStore, bucket, prefix string, logger *zap.Logger, workers int) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		logger:  logger,
		workers: stage.Workers(workers),
	}
}

// NewFromConfig connects to the configured endpoint.
func NewFromConfig(cfg config.PublishConfig, logger *zap.Logger, workers int) (*Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	return New(client, cfg.Bucket, cfg.Prefix, logger, workers), nil
}

type upload struct {
	object string
	file   string
}

// Publish uploads the manifest file and every regular file under each tree.
// Bucket errors abort the run; a failed object is reported and skipped.
func (p *Publisher) Publish(ctx context.Context, manifestPath string, trees []Tree) (*Result, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}

	uploads := []upload{{object: ObjectName(p.prefix, filepath.Base(manifestPath)), file: manifestPath}}
	for _, tree := range trees {
		files, err := Collect(tree.Root)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", tree.Root, err)
		}
		for _, rel := range files {
			uploads = append(uploads, upload{
				object: ObjectName(p.prefix, path.Join(tree.Name, rel)),
				file:   filepath.Join(tree.Root, filepath.FromSlash(rel)),
			})
		}
	}

	errs := make([]error, len(uploads))
	wp := pool.New().WithMaxGoroutines(p.workers)
	for idx, u := range uploads {
		idx, u := idx, u
		wp.Go(func() {
			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}
			_, err := p.client.FPutObject(ctx, p.bucket, u.object, u.file, minio.PutObjectOptions{
				ContentType: ContentType(u.file),
			})
			if err != nil {
				errs[idx] = fmt.Errorf("upload %s: %w", u.object, err)
				return
			}
			p.logger.Debug("uploaded object", zap.String("object", u.object))
		})
	}
	wp.Wait()

	result := &Result{}
	for _, err := range errs {
		if err != nil {
			p.logger.Warn("upload failed", zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Uploaded++
	}
	return result, ctx.Err()
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	p.logger.Info("created bucket", zap.String("bucket", p.bucket))
	return nil
}

// ObjectName joins a key prefix and a slash-separated relative path.
func ObjectName(prefix, rel string) string {
	segments := make([]string, 0, 2)
	for _, segment := range []string{prefix, rel} {
		trimmed := strings.Trim(filepath.ToSlash(segment), "/")
		if trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return path.Join(segments...)
}

// Collect lists the regular files under root as slash-separated relative
// paths in lexical order. A missing root yields no files.
func Collect(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

func ContentType(file string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(file))); ct != "" {
		return ct
	}
	return defaultContentType
}
