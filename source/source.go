// Package source opens and decodes waypoint inputs: local files, stdin, and S3 objects,
// each optionally gzipped, holding either a JSON array of waypoints or GeoJSON point features.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/dustin/go-humanize"
	"github.com/rotblauer/tripd/catz"
	"github.com/rotblauer/tripd/params"
	"github.com/rotblauer/tripd/stream"
	"github.com/rotblauer/tripd/types/waypoint"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Stdin is the name that reads waypoints from standard input.
const Stdin = "-"

const s3Scheme = "s3://"

// ErrUnsupportedFormat is returned for input that is neither a JSON array
// of waypoints nor GeoJSON.
var ErrUnsupportedFormat = errors.New("unsupported waypoint format")

// Open returns a reader of the named input, decompressed if it is gzipped.
// The name is a file path, Stdin, or an s3://bucket/key URI.
func Open(ctx context.Context, config *params.SourceConfig, name string) (io.ReadCloser, error) {
	if config == nil {
		config = params.DefaultSourceConfig
	}
	var rc io.ReadCloser
	switch {
	case name == Stdin:
		rc = io.NopCloser(os.Stdin)
	case strings.HasPrefix(name, s3Scheme):
		bucket, key, err := ParseS3URI(name)
		if err != nil {
			return nil, err
		}
		rc, err = openS3(ctx, config.S3Region, bucket, key)
		if err != nil {
			return nil, err
		}
	default:
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		rc = f
	}
	return catz.MaybeGZReader(rc)
}

// Read opens, decodes, and optionally dedupes the named input.
func Read(ctx context.Context, config *params.SourceConfig, name string) ([]waypoint.Waypoint, error) {
	if config == nil {
		config = params.DefaultSourceConfig
	}
	rc, err := Open(ctx, config, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	points, err := ReadFrom(ctx, config, rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return points, nil
}

// ReadFrom decodes all of r, then dedupes the waypoints if configured.
func ReadFrom(ctx context.Context, config *params.SourceConfig, r io.Reader) ([]waypoint.Waypoint, error) {
	if config == nil {
		config = params.DefaultSourceConfig
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	points, err := Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	if !config.Dedupe {
		return points, nil
	}
	deduped := stream.Collect(ctx,
		stream.Filter(ctx, waypoint.NewDedupeLRUFunc(config.DedupeCacheSize),
			stream.Slice(ctx, points)))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n := len(points) - len(deduped); n > 0 {
		slog.Info("Dropped duplicate waypoints", "n", humanize.Comma(int64(n)))
	}
	return deduped, nil
}

// ParseS3URI splits s3://bucket/key into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs a bucket and key: %q", uri)
	}
	return bucket, key, nil
}

// openS3 downloads the object into memory.
// The AWS library uses environment variables to configure its credentials.
func openS3(ctx context.Context, region, bucket, key string) (io.ReadCloser, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	downloader := s3manager.NewDownloader(sess)

	slog.Info("Downloading waypoints from S3...", "bucket", bucket, "key", key)
	buf := aws.NewWriteAtBuffer([]byte{})
	n, err := downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download S3 object s3://%s/%s: %w", bucket, key, err)
	}
	slog.Info("Downloaded waypoints from S3", "bucket", bucket, "key", key, "size", humanize.Bytes(uint64(n)))
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}
