// blobstore.go is the optional S3-backed tier for large artifact
// content: writes at or above a size threshold go through to an
// S3-compatible bucket instead of staying in process memory.
package artifact

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BlobConfig configures the S3-compatible endpoint backing the blob
// tier. Endpoint is optional; when set it targets an S3-compatible
// provider (MinIO, Hetzner, etc.) instead of AWS.
type BlobConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKey       string
	SecretKey       string
	Threshold       int // bytes; content at or above this size writes through to S3
	MaxConcurrency  int // defaults to 16 if <= 0
}

// BlobReference replaces Artifact.Content for a write-through entry:
// the content itself lives in S3, not in the in-memory cache.
type BlobReference struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Bytes  int    `json:"bytes"`
}

// BlobTier wraps a Cache with a size-threshold write-through to S3
// for large artifact content.
type BlobTier struct {
	cache      *Cache
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	threshold  int
	sem        chan struct{}
}

// NewBlobTier builds the S3 client/uploader/downloader and returns a
// BlobTier delegating small artifacts to cache directly.
func NewBlobTier(ctx context.Context, cache *Cache, cfg BlobConfig) (*BlobTier, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 16
	}

	return &BlobTier{
		cache:      cache,
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     cfg.Bucket,
		threshold:  cfg.Threshold,
		sem:        make(chan struct{}, maxConcurrency),
	}, nil
}

func blobKey(url, kind string) string {
	return url + "/" + kind
}

// Set writes content through to S3 when its size is at or above the
// configured threshold, otherwise delegates to the in-memory Cache
// unchanged. The concurrency of in-flight S3 uploads is bounded by
// the semaphore.
func (b *BlobTier) Set(ctx context.Context, url, kind string, content any, metadata map[string]any) (*Artifact, error) {
	payload, size, ok := sizeOf(content)
	if !ok || size < b.threshold {
		return b.cache.Set(url, kind, content, metadata), nil
	}

	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-b.sem }()

	key := blobKey(url, kind)
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading artifact %s/%s: %w", url, kind, err)
	}

	ref := BlobReference{Bucket: b.bucket, Key: key, Bytes: size}
	return b.cache.Set(url, kind, ref, metadata), nil
}

// Get returns the artifact at (url, kind); if it is a write-through
// reference, its content is downloaded from S3 and materialized back
// into the returned Artifact's Content field.
func (b *BlobTier) Get(ctx context.Context, url, kind string) (*Artifact, error) {
	a := b.cache.Get(url, kind)
	if a == nil {
		return nil, nil
	}
	ref, ok := a.Content.(BlobReference)
	if !ok {
		return a, nil
	}

	buf := manager.NewWriteAtBuffer([]byte{})
	if _, err := b.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	}); err != nil {
		return nil, fmt.Errorf("downloading artifact %s/%s: %w", url, kind, err)
	}

	materialized := *a
	materialized.Content = string(buf.Bytes())
	return &materialized, nil
}

// sizeOf returns a byte payload and its length for content that can
// be written through to S3. Only string content is eligible; other
// kinds (embeddings, structured metadata) always stay in-memory.
func sizeOf(content any) ([]byte, int, bool) {
	s, ok := content.(string)
	if !ok {
		return nil, 0, false
	}
	return []byte(s), len(s), true
}
