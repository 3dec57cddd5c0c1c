package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSBackend implements Backend against Google Cloud Storage. Its shape
// mirrors S3Backend deliberately: both are thin wrappers over an SDK
// client behind the same List/SyncDown/SyncUp contract, so the Planner
// and worker never branch on backend type.
type GCSBackend struct {
	client *storage.Client
}

// NewGCSBackend builds a GCSBackend using application-default credentials
// (a mounted service-account key or Workload Identity), matching how a
// worker pod receives its gs:// credential secret per spec §4.A.
func NewGCSBackend(ctx context.Context) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSBackend{client: client}, nil
}

type gcsLoc struct {
	bucket string
	object string
}

func parseGCSURI(uri string) (gcsLoc, error) {
	rest := strings.TrimPrefix(uri, "gs://")
	if rest == uri {
		return gcsLoc{}, fmt.Errorf("not a gs:// uri: %s", uri)
	}
	parts := strings.SplitN(rest, "/", 2)
	loc := gcsLoc{bucket: parts[0]}
	if len(parts) == 2 {
		loc.object = parts[1]
	}
	return loc, nil
}

// List enumerates the top-level entries under uri using "/" as the
// delimiter, so nested prefixes collapse to a single pseudo-directory
// entry per spec §4.A.
func (b *GCSBackend) List(ctx context.Context, uri string) ([]string, error) {
	loc, err := parseGCSURI(uri)
	if err != nil {
		return nil, err
	}
	prefix := loc.object
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	it := b.client.Bucket(loc.bucket).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})
	var out []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if attrs.Prefix != "" {
			out = append(out, fmt.Sprintf("gs://%s/%s", loc.bucket, attrs.Prefix))
			continue
		}
		if attrs.Name == prefix {
			continue
		}
		out = append(out, fmt.Sprintf("gs://%s/%s", loc.bucket, attrs.Name))
	}
	if len(out) == 0 && loc.object != "" {
		if _, err := b.client.Bucket(loc.bucket).Object(loc.object).Attrs(ctx); err != nil {
			return nil, err
		}
		return []string{uri}, nil
	}
	return out, nil
}

// SyncDown mirrors all objects under uri's prefix to localPath.
func (b *GCSBackend) SyncDown(ctx context.Context, uri, localPath string) error {
	loc, err := parseGCSURI(uri)
	if err != nil {
		return err
	}
	prefix := loc.object
	it := b.client.Bucket(loc.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	found := false
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		found = true
		rel := strings.TrimPrefix(attrs.Name, prefix)
		rel = strings.TrimPrefix(rel, "/")
		var dst string
		if rel == "" {
			dst = localPath
		} else {
			dst = filepath.Join(localPath, rel)
		}
		if err := b.downloadObject(ctx, loc.bucket, attrs.Name, dst); err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("no objects found under %s", uri)
	}
	return nil
}

func (b *GCSBackend) downloadObject(ctx context.Context, bucket, object, dst string) error {
	r, err := b.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// SyncUp mirrors every file under localPath to uri's prefix.
func (b *GCSBackend) SyncUp(ctx context.Context, localPath, uri string) error {
	loc, err := parseGCSURI(uri)
	if err != nil {
		return err
	}
	prefix := loc.object
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
		object := prefix + filepath.ToSlash(rel)
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w := b.client.Bucket(loc.bucket).Object(object).NewWriter(ctx)
		if _, err := io.Copy(w, f); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
}
