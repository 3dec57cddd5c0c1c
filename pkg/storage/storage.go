// Package storage implements the Storage Adapter of spec §4.A: a
// capability interface with backend selection by URI scheme, modeled on
// the teacher's S3Storage (AMD-AGI-Primus-SaFE Lens skills-repository
// pkg/storage/s3_storage.go) generalized to a scheme-resolved registry
// per the Design Note "avoid a registry singleton by passing the
// resolver explicitly."
package storage

import (
	"context"
	"fmt"
	"strings"
)

// StorageError wraps a backend failure (auth, transport) per spec §4.A.
type StorageError struct {
	URI string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error for %s: %v", e.URI, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Backend is the capability interface every object-storage scheme
// implements. Backends return List results as the provider reports them,
// without deduplicating; Factory.List removes duplicates.
type Backend interface {
	// List non-recursively enumerates the top-level entries at uri. If
	// uri points at an object rather than a prefix, returns []string{uri}.
	List(ctx context.Context, uri string) ([]string, error)
	// SyncDown recursively mirrors a source prefix or file to a local
	// directory or file, creating parent directories as needed. Never
	// deletes extra local files.
	SyncDown(ctx context.Context, uri, localPath string) error
	// SyncUp recursively mirrors a local directory to a destination
	// prefix. Never deletes remote files.
	SyncUp(ctx context.Context, localPath, uri string) error
}

// Factory resolves a Backend for a URI scheme. Callers pass a Factory
// explicitly (e.g. into the Planner) rather than reaching for a package
// -level singleton, per the Design Note on avoiding registry singletons.
type Factory struct {
	backends map[string]Backend
}

// NewFactory builds a Factory from scheme->Backend bindings.
func NewFactory(backends map[string]Backend) *Factory {
	return &Factory{backends: backends}
}

// Scheme returns the lowercase scheme of a URI, e.g. "gs" for "gs://bucket/x".
func Scheme(uri string) (string, error) {
	idx := strings.Index(uri, "://")
	if idx < 0 {
		return "", fmt.Errorf("uri %q has no scheme", uri)
	}
	return strings.ToLower(uri[:idx]), nil
}

// For returns the Backend registered for uri's scheme.
func (f *Factory) For(uri string) (Backend, error) {
	scheme, err := Scheme(uri)
	if err != nil {
		return nil, err
	}
	b, ok := f.backends[scheme]
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for scheme %q", scheme)
	}
	return b, nil
}

// List delegates to the backend resolved for uri's scheme.
func (f *Factory) List(ctx context.Context, uri string) ([]string, error) {
	b, err := f.For(uri)
	if err != nil {
		return nil, err
	}
	entries, err := b.List(ctx, uri)
	if err != nil {
		return nil, &StorageError{URI: uri, Err: err}
	}
	return dedupe(entries), nil
}

// SyncDown delegates to the backend resolved for uri's scheme.
func (f *Factory) SyncDown(ctx context.Context, uri, localPath string) error {
	b, err := f.For(uri)
	if err != nil {
		return err
	}
	if err := b.SyncDown(ctx, uri, localPath); err != nil {
		return &StorageError{URI: uri, Err: err}
	}
	return nil
}

// SyncUp delegates to the backend resolved for uri's scheme.
func (f *Factory) SyncUp(ctx context.Context, localPath, uri string) error {
	b, err := f.For(uri)
	if err != nil {
		return err
	}
	if err := b.SyncUp(ctx, localPath, uri); err != nil {
		return &StorageError{URI: uri, Err: err}
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SecretDescriptor describes how a storage credential reaches a worker
// pod: either mounted as a file, or exposed as an environment variable
// sourced from a Kubernetes Secret key (spec §4.A).
type SecretDescriptor struct {
	Name      string `json:"name"`
	MountPath string `json:"mount_path,omitempty"`
	Key       string `json:"key,omitempty"`
	EnvVar    string `json:"env_var,omitempty"`
}

func (s SecretDescriptor) IsMount() bool { return s.MountPath != "" }
func (s SecretDescriptor) IsEnv() bool   { return s.EnvVar != "" }
