package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// uploadRoot is the top-level prefix for client uploads. Every tenant owns
// uploadRoot/<tenant>/ and nothing else.
const uploadRoot = "uploads"

type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// wordCountMeta is the user metadata key holding the word count computed at upload.
const wordCountMeta = "Word-Count"

// Store uploads data into the tenant's namespace and returns its reference.
// A non-negative words value is kept as object metadata so later quotes can
// skip extraction.
func (s *MinioService) Store(ctx context.Context, tenant, filename string, data []byte, contentType string, words int) (string, error) {
	if s.config.MaxObjectBytes > 0 && int64(len(data)) > s.config.MaxObjectBytes {
		return "", model.NewValidationError("file", fmt.Sprintf("file exceeds %d bytes", s.config.MaxObjectBytes))
	}
	ref, err := ObjectName(tenant, filename)
	if err != nil {
		return "", err
	}

	opts := minio.PutObjectOptions{ContentType: contentType}
	if words >= 0 {
		opts.UserMetadata = map[string]string{wordCountMeta: strconv.Itoa(words)}
	}
	_, err = s.client.PutObject(ctx, s.bucket, ref, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return "", model.Upstream("upload file", err)
	}

	return ref, nil
}

// WordCount returns the word count recorded at upload, if any.
func (s *MinioService) WordCount(ctx context.Context, ref string) (int, bool, error) {
	info, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return 0, false, fmt.Errorf("object %s: %w", ref, model.ErrNotFound)
		}
		return 0, false, model.Upstream("stat object", err)
	}
	return parseWordCount(info.UserMetadata)
}

func parseWordCount(meta map[string]string) (int, bool, error) {
	for k, v := range meta {
		if !strings.EqualFold(k, wordCountMeta) {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, false, nil
		}
		return n, true, nil
	}
	return 0, false, nil
}

// Fetch downloads the object behind ref, refusing objects above the size limit
func (s *MinioService) Fetch(ctx context.Context, ref string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, model.Upstream("get object", err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("object %s: %w", ref, model.ErrNotFound)
		}
		return nil, model.Upstream("stat object", err)
	}
	if s.config.MaxObjectBytes > 0 && info.Size > s.config.MaxObjectBytes {
		return nil, fmt.Errorf("object %s is %d bytes: %w", ref, info.Size, model.ErrValidation)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, model.Upstream("read object", err)
	}
	return data, nil
}

// PresignedURL generates a time-limited download link for ref
func (s *MinioService) PresignedURL(ctx context.Context, ref string) (string, error) {
	expiry := time.Duration(s.config.ExpireDays) * 24 * time.Hour
	url, err := s.client.PresignedGetObject(ctx, s.bucket, ref, expiry, nil)
	if err != nil {
		return "", model.Upstream("presign file", err)
	}

	return url.String(), nil
}

// Delete removes the object behind ref
func (s *MinioService) Delete(ctx context.Context, ref string) error {
	err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{})
	if err != nil {
		return model.Upstream("delete file", err)
	}

	return nil
}

// UploadPrefix is the namespace a tenant's uploads live under.
func UploadPrefix(tenant string) string {
	return uploadRoot + "/" + tenant + "/"
}

// ObjectName builds a unique reference for filename inside tenant's namespace.
func ObjectName(tenant, filename string) (string, error) {
	if !validSegment(tenant) {
		return "", model.NewValidationError("tenant", "invalid tenant")
	}
	name := sanitizeFilename(filename)
	if name == "" {
		return "", model.NewValidationError("file", "file name is required")
	}
	return UploadPrefix(tenant) + uuid.New().String() + "-" + name, nil
}

// ValidateReference checks that ref lies inside tenant's namespace.
func ValidateReference(tenant, ref string) error {
	if ref == "" {
		return model.NewValidationError("storage_reference", "is required")
	}
	if !validSegment(tenant) {
		return fmt.Errorf("reference %q: %w", ref, model.ErrForbidden)
	}
	if strings.Contains(ref, "..") || strings.Contains(ref, "\\") || path.Clean(ref) != ref {
		return fmt.Errorf("reference %q: %w", ref, model.ErrForbidden)
	}
	prefix := UploadPrefix(tenant)
	if !strings.HasPrefix(ref, prefix) || len(ref) == len(prefix) {
		return fmt.Errorf("reference %q: %w", ref, model.ErrForbidden)
	}
	return nil
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\")
}

// sanitizeFilename keeps the base name and replaces characters that would
// make the reference ambiguous.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	name = strings.ReplaceAll(name, "..", "_")
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
}
