// Package artifact resolves server jars and deployment archives from local
// paths, http(s) URLs, and s3:// sources into local files.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/jarness/jarness/pkg/config"
)

// Resolver fetches remote artifacts into a local cache directory
type Resolver struct {
	cacheDir   string
	s3Config   config.S3Config
	httpClient *http.Client
}

// NewResolver creates a resolver caching under cacheDir
func NewResolver(cfg config.ArtifactConfig) *Resolver {
	return &Resolver{
		cacheDir: cfg.CacheDir,
		s3Config: cfg.S3,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Resolve returns a local path for the given source. Local paths are returned
// as-is after an existence check; remote sources are downloaded into the
// cache, keyed by source URL, and reused on later calls.
func (r *Resolver) Resolve(ctx context.Context, source string) (string, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return r.fetch(source, func(w io.Writer) error { return r.downloadHTTP(ctx, source, w) })
	case strings.HasPrefix(source, "s3://"):
		return r.fetch(source, func(w io.Writer) error { return r.downloadS3(ctx, source, w) })
	case strings.HasPrefix(source, "file://"):
		source = strings.TrimPrefix(source, "file://")
		fallthrough
	default:
		if _, err := os.Stat(source); err != nil {
			return "", fmt.Errorf("artifact %s is not usable: %w", source, err)
		}
		return source, nil
	}
}

func (r *Resolver) fetch(source string, download func(io.Writer) error) (string, error) {
	target := r.cachePath(source)
	if _, err := os.Stat(target); err == nil {
		slog.Debug("artifact cache hit", "source", source, "path", target)
		return target, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact cache directory: %w", err)
	}

	// Download to a temp file first so a failed transfer never leaves a
	// truncated artifact in the cache.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := download(tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to finish download: %w", err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("failed to move artifact into cache: %w", err)
	}

	slog.Info("fetched artifact", "source", source, "path", target)
	return target, nil
}

func (r *Resolver) downloadHTTP(ctx context.Context, source string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("failed to build artifact request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: status %d", source, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	return nil
}

func (r *Resolver) downloadS3(ctx context.Context, source string, w io.Writer) error {
	u, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("invalid s3 source %s: %w", source, err)
	}
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return fmt.Errorf("invalid s3 source %s: want s3://bucket/key", source)
	}

	awsConfig := &aws.Config{Region: aws.String(r.s3Config.Region)}
	if r.s3Config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			r.s3Config.AccessKey, r.s3Config.SecretKey, "")
	}
	// Custom endpoint for S3-compatible storage (MinIO and friends).
	if r.s3Config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(r.s3Config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}

	out, err := s3.New(sess).GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	return nil
}

func (r *Resolver) cachePath(source string) string {
	sum := sha256.Sum256([]byte(source))
	name := path.Base(source)
	return filepath.Join(r.cacheDir, hex.EncodeToString(sum[:8])+"-"+name)
}
