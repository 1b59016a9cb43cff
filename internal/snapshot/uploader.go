// Package snapshot writes offline backups of the local store and, when an
// S3-compatible bucket is configured, copies them off the device.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hyperengineering/frontdesk/internal/config"
)

// ErrNotConfigured is returned when backup storage is not configured.
var ErrNotConfigured = errors.New("backup storage not configured")

const backupContentType = "application/json"

// Uploader copies backup files off the device.
type Uploader interface {
	Upload(ctx context.Context, key string, filePath string) error
	// DownloadURL returns a link to key that works until expiry.
	DownloadURL(ctx context.Context, key string) (url string, expiry time.Time, err error)
}

// LocalOnly keeps backups on the device. DownloadURL fails with
// ErrNotConfigured.
type LocalOnly struct{}

func (LocalOnly) Upload(context.Context, string, string) error { return nil }

func (LocalOnly) DownloadURL(context.Context, string) (string, time.Time, error) {
	return "", time.Time{}, ErrNotConfigured
}

type objectStore interface {
	PutBackup(ctx context.Context, bucket, key, filePath string) error
	Link(ctx context.Context, bucket, key string, ttl time.Duration) (*url.URL, error)
}

type minioObjects struct {
	client *minio.Client
}

func (m minioObjects) PutBackup(ctx context.Context, bucket, key, filePath string) error {
	_, err := m.client.FPutObject(ctx, bucket, key, filePath, minio.PutObjectOptions{
		ContentType: backupContentType,
	})
	return err
}

func (m minioObjects) Link(ctx context.Context, bucket, key string, ttl time.Duration) (*url.URL, error) {
	return m.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
}

// Bucket uploads backups to one S3-compatible bucket and signs download
// links valid for linkTTL.
type Bucket struct {
	objects objectStore
	name    string
	linkTTL time.Duration
}

func (b *Bucket) Upload(ctx context.Context, key string, filePath string) error {
	if err := b.objects.PutBackup(ctx, b.name, key, filePath); err != nil {
		return fmt.Errorf("upload backup %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) DownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	issued := time.Now()
	link, err := b.objects.Link(ctx, b.name, key, b.linkTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download link for %s: %w", key, err)
	}
	return link.String(), issued.Add(b.linkTTL), nil
}

// NewUploader returns LocalOnly when no bucket is configured and a Bucket
// otherwise.
func NewUploader(cfg config.BackupConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return LocalOnly{}, nil
	}

	endpoint, opts := clientOptions(cfg)
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("backup storage client: %w", err)
	}
	return &Bucket{
		objects: minioObjects{client: client},
		name:    cfg.Bucket,
		linkTTL: time.Duration(cfg.URLExpiry),
	}, nil
}

// clientOptions turns the backup config into a minio endpoint and options.
// The endpoint may be written as a URL; its scheme then decides TLS and
// overrides s3_use_ssl. TLS is on unless something turns it off.
func clientOptions(cfg config.BackupConfig) (string, *minio.Options) {
	secure := cfg.UseSSL == nil || *cfg.UseSSL
	endpoint := cfg.Endpoint
	if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint, secure = rest, true
	} else if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint, secure = rest, false
	}
	return strings.TrimSuffix(endpoint, "/"), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	}
}

// objectKey places a device's backups under {device_id}/backups/ so devices
// sharing a bucket never overwrite each other.
func objectKey(deviceID, file string) string {
	return deviceID + "/backups/" + file
}
