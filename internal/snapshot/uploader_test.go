package snapshot

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/hyperengineering/frontdesk/internal/config"
)

func TestLocalOnly(t *testing.T) {
	var u LocalOnly
	if err := u.Upload(context.Background(), "desk/backups/x.json", "/some/path"); err != nil {
		t.Errorf("Upload() error = %v, want nil", err)
	}
	if _, _, err := u.DownloadURL(context.Background(), "desk/backups/x.json"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("DownloadURL() error = %v, want ErrNotConfigured", err)
	}
}

func TestNewUploader_NoBucketStaysLocal(t *testing.T) {
	u, err := NewUploader(config.BackupConfig{Dir: "backups", Endpoint: "minio:9000"})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	if _, ok := u.(LocalOnly); !ok {
		t.Errorf("got %T, want LocalOnly", u)
	}
}

func TestNewUploader_WithBucket(t *testing.T) {
	u, err := NewUploader(config.BackupConfig{
		Bucket:    "gym-backups",
		Endpoint:  "http://localhost:9000",
		Region:    "us-east-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		URLExpiry: config.Duration(15 * time.Minute),
	})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}

	b, ok := u.(*Bucket)
	if !ok {
		t.Fatalf("got %T, want *Bucket", u)
	}
	if b.name != "gym-backups" || b.linkTTL != 15*time.Minute {
		t.Errorf("bucket = %q ttl = %v, want gym-backups 15m", b.name, b.linkTTL)
	}
}

// fakeObjects records what a Bucket sends to storage.
type fakeObjects struct {
	puts     int
	putErr   error
	linkErr  error
	bucket   string
	key      string
	filePath string
	ttl      time.Duration
}

func (f *fakeObjects) PutBackup(ctx context.Context, bucket, key, filePath string) error {
	f.puts++
	f.bucket, f.key, f.filePath = bucket, key, filePath
	return f.putErr
}

func (f *fakeObjects) Link(ctx context.Context, bucket, key string, ttl time.Duration) (*url.URL, error) {
	if f.linkErr != nil {
		return nil, f.linkErr
	}
	f.ttl = ttl
	return url.Parse("https://s3.example.com/" + bucket + "/" + key + "?signed=1")
}

func TestBucket_Upload(t *testing.T) {
	objects := &fakeObjects{}
	b := &Bucket{objects: objects, name: "gym-backups", linkTTL: 15 * time.Minute}

	if err := b.Upload(context.Background(), "desk-1/backups/b.json", "/tmp/b.json"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if objects.bucket != "gym-backups" || objects.key != "desk-1/backups/b.json" || objects.filePath != "/tmp/b.json" {
		t.Errorf("PutBackup(%q, %q, %q)", objects.bucket, objects.key, objects.filePath)
	}

	objects.putErr = errors.New("network timeout")
	if err := b.Upload(context.Background(), "k", "/tmp/b.json"); !errors.Is(err, objects.putErr) {
		t.Errorf("Upload() error = %v, want wrapped network timeout", err)
	}
}

func TestBucket_DownloadURL(t *testing.T) {
	objects := &fakeObjects{}
	b := &Bucket{objects: objects, name: "gym-backups", linkTTL: 15 * time.Minute}

	before := time.Now()
	got, expiry, err := b.DownloadURL(context.Background(), "desk-1/backups/b.json")
	if err != nil {
		t.Fatalf("DownloadURL() error = %v", err)
	}
	if got != "https://s3.example.com/gym-backups/desk-1/backups/b.json?signed=1" {
		t.Errorf("url = %q", got)
	}
	if objects.ttl != 15*time.Minute {
		t.Errorf("link ttl = %v, want 15m", objects.ttl)
	}
	if expiry.Before(before.Add(15*time.Minute)) || expiry.After(time.Now().Add(15*time.Minute)) {
		t.Errorf("expiry = %v, want 15m after signing", expiry)
	}

	objects.linkErr = errors.New("access denied")
	if _, _, err := b.DownloadURL(context.Background(), "k"); !errors.Is(err, objects.linkErr) {
		t.Errorf("DownloadURL() error = %v, want wrapped access denied", err)
	}
}

func TestClientOptions(t *testing.T) {
	off := false
	tests := []struct {
		name       string
		cfg        config.BackupConfig
		wantHost   string
		wantSecure bool
	}{
		{"bare host", config.BackupConfig{Endpoint: "s3.example.com"}, "s3.example.com", true},
		{"bare host with ssl off", config.BackupConfig{Endpoint: "minio:9000", UseSSL: &off}, "minio:9000", false},
		{"https URL", config.BackupConfig{Endpoint: "https://s3.example.com/"}, "s3.example.com", true},
		{"http URL wins over ssl default", config.BackupConfig{Endpoint: "http://minio:9000"}, "minio:9000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Region = "eu-west-1"
			host, opts := clientOptions(tt.cfg)
			if host != tt.wantHost {
				t.Errorf("host = %q, want %q", host, tt.wantHost)
			}
			if opts.Secure != tt.wantSecure {
				t.Errorf("secure = %v, want %v", opts.Secure, tt.wantSecure)
			}
			if opts.Region != "eu-west-1" {
				t.Errorf("region = %q, want eu-west-1", opts.Region)
			}
		})
	}
}

func TestObjectKey_PerDevice(t *testing.T) {
	got := objectKey("desk-1", "frontdesk-backup-2025-03-01.json")
	if got != "desk-1/backups/frontdesk-backup-2025-03-01.json" {
		t.Errorf("objectKey = %q", got)
	}
}
