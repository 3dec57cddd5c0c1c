package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	entries []string
	listErr error
}

func (s *stubBackend) List(ctx context.Context, uri string) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.entries, nil
}

func (s *stubBackend) SyncDown(ctx context.Context, uri, localPath string) error { return nil }
func (s *stubBackend) SyncUp(ctx context.Context, localPath, uri string) error   { return nil }

func TestSchemeLowercases(t *testing.T) {
	scheme, err := Scheme("GS://bucket/path")
	require.NoError(t, err)
	assert.Equal(t, "gs", scheme)
}

func TestSchemeRejectsMissingSeparator(t *testing.T) {
	_, err := Scheme("not-a-uri")
	assert.Error(t, err)
}

func TestFactoryForUnknownSchemeErrors(t *testing.T) {
	f := NewFactory(map[string]Backend{"gs": &stubBackend{}})
	_, err := f.For("s3://bucket/x")
	assert.Error(t, err)
}

func TestFactoryListDedupesAndWrapsErrors(t *testing.T) {
	f := NewFactory(map[string]Backend{
		"gs": &stubBackend{entries: []string{"a", "b", "a"}},
	})
	entries, err := f.List(context.Background(), "gs://bucket/x")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, entries)
}

func TestFactoryListWrapsBackendError(t *testing.T) {
	f := NewFactory(map[string]Backend{
		"gs": &stubBackend{listErr: errors.New("boom")},
	})
	_, err := f.List(context.Background(), "gs://bucket/x")
	require.Error(t, err)
	var storageErr *StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "gs://bucket/x", storageErr.URI)
}

func TestSecretDescriptorIsMountOrEnv(t *testing.T) {
	mount := SecretDescriptor{Name: "creds", MountPath: "/var/secrets/creds"}
	assert.True(t, mount.IsMount())
	assert.False(t, mount.IsEnv())

	env := SecretDescriptor{Name: "creds", EnvVar: "TOKEN"}
	assert.True(t, env.IsEnv())
	assert.False(t, env.IsMount())
}
