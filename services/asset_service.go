package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/kurin/blazer/b2"
)

// AssetHost stores file bytes and hands back a durable download URL.
// Progress, when requested, is reported as a 0–100 percentage.
type AssetHost interface {
	Upload(ctx context.Context, objectName string, r io.Reader, size int64, onProgress func(pct float64)) (string, error)
}

// AssetService is the Backblaze B2 asset host.
type AssetService struct {
	client      *b2.Client
	bucketName  string
	bucket      *b2.Bucket
	urlDuration time.Duration
}

func NewAssetService(keyID, applicationKey, bucketName string) (*AssetService, error) {
	ctx := context.Background()

	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create B2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", bucketName, err)
	}

	return &AssetService{
		client:      client,
		bucketName:  bucketName,
		bucket:      bucket,
		urlDuration: 24 * time.Hour,
	}, nil
}

// Upload streams r to B2 and returns a signed download URL. The SHA1 of the
// content is computed on the way through for integrity logging.
func (s *AssetService) Upload(ctx context.Context, objectName string, r io.Reader, size int64, onProgress func(float64)) (string, error) {
	obj := s.bucket.Object(objectName)
	writer := obj.NewWriter(ctx)

	hasher := sha1.New()
	dst := io.MultiWriter(writer, hasher)

	src := r
	if onProgress != nil && size > 0 {
		src = &progressReader{r: r, total: size, onProgress: onProgress}
	}

	if _, err := io.Copy(dst, src); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload %s to B2: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close B2 writer for %s: %w", objectName, err)
	}

	log.Printf("[AssetService] uploaded %s (sha1 %s)", objectName, hex.EncodeToString(hasher.Sum(nil)))

	url, err := s.DownloadURL(ctx, objectName)
	if err != nil {
		return "", err
	}
	return url, nil
}

// DownloadURL generates a signed download URL for private buckets.
func (s *AssetService) DownloadURL(ctx context.Context, objectName string) (string, error) {
	obj := s.bucket.Object(objectName)
	url, err := obj.AuthURL(ctx, s.urlDuration, "GET")
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL for %s: %w", objectName, err)
	}
	return url.String(), nil
}

// Delete removes an object from the bucket.
func (s *AssetService) Delete(ctx context.Context, objectName string) error {
	if err := s.bucket.Object(objectName).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s from B2: %w", objectName, err)
	}
	return nil
}

// progressReader reports fractional progress as bytes flow through it.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress func(float64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		pct := float64(p.read) / float64(p.total) * 100
		if pct > 100 {
			pct = 100
		}
		p.onProgress(pct)
	}
	return n, err
}
