package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config mirrors the teacher's S3Config (AMD-AGI-Primus-SaFE Lens
// skills-repository pkg/storage/s3_storage.go), trimmed to what an
// object-storage backend needs (no presigned URLs — falconeri never
// serves objects directly to a browser).
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// S3Backend implements Backend against S3 or an S3-compatible endpoint.
type S3Backend struct {
	client *s3.Client
}

// NewS3Backend builds an S3Backend, grounded on the teacher's
// NewS3Storage constructor (static-credentials provider + optional
// endpoint override for MinIO-style deployments).
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &S3Backend{client: client}, nil
}

type s3Loc struct {
	bucket string
	key    string
}

func parseS3URI(uri string) (s3Loc, error) {
	rest := strings.TrimPrefix(uri, "s3://")
	if rest == uri {
		return s3Loc{}, fmt.Errorf("not an s3:// uri: %s", uri)
	}
	parts := strings.SplitN(rest, "/", 2)
	loc := s3Loc{bucket: parts[0]}
	if len(parts) == 2 {
		loc.key = parts[1]
	}
	return loc, nil
}

// List enumerates the top-level entries under uri using a "/" delimiter
// so nested prefixes collapse into single pseudo-directory entries, per
// spec §4.A's non-recursive contract.
func (b *S3Backend) List(ctx context.Context, uri string) ([]string, error) {
	loc, err := parseS3URI(uri)
	if err != nil {
		return nil, err
	}
	prefix := loc.key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	var out []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    &loc.bucket,
		Prefix:    &prefix,
		Delimiter: strPtr("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, fmt.Sprintf("s3://%s/%s", loc.bucket, *cp.Prefix))
		}
		for _, obj := range page.Contents {
			if *obj.Key == prefix {
				continue
			}
			out = append(out, fmt.Sprintf("s3://%s/%s", loc.bucket, *obj.Key))
		}
	}
	if len(out) == 0 && loc.key != "" {
		// uri pointed at a single object; confirm it exists and return it as-is.
		_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &loc.bucket, Key: &loc.key})
		if err != nil {
			return nil, err
		}
		return []string{uri}, nil
	}
	return out, nil
}

// SyncDown mirrors all objects under uri's prefix to localPath.
func (b *S3Backend) SyncDown(ctx context.Context, uri, localPath string) error {
	loc, err := parseS3URI(uri)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(loc.key, "/") && loc.key != "" {
		// Could be a single object; try that first.
		if ok, derr := b.downloadObject(ctx, loc.bucket, loc.key, localPath); ok {
			return derr
		}
	}
	prefix := loc.key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: &loc.bucket,
		Prefix: &prefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(*obj.Key, prefix)
			if rel == "" {
				continue
			}
			dst := filepath.Join(localPath, rel)
			if _, err := b.downloadObject(ctx, loc.bucket, *obj.Key, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *S3Backend) downloadObject(ctx context.Context, bucket, key, dst string) (bool, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &key})
	if err != nil {
		return false, err
	}
	defer out.Body.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return true, err
	}
	f, err := os.Create(dst)
	if err != nil {
		return true, err
	}
	defer f.Close()
	_, err = io.Copy(f, out.Body)
	return true, err
}

// SyncUp mirrors every file under localPath to uri's prefix.
func (b *S3Backend) SyncUp(ctx context.Context, localPath, uri string) error {
	loc, err := parseS3URI(uri)
	if err != nil {
		return err
	}
	prefix := loc.key
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return filepath.Walk(localPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return err
		}
		key := prefix + filepath.ToSlash(rel)
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &loc.bucket,
			Key:    &key,
			Body:   f,
		})
		return err
	})
}

func strPtr(s string) *string { return &s }
