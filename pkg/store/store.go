package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates nothing is stored for a Ref.
	ErrNotFound = errors.New("store: config not found")
	// ErrETagMismatch indicates the stored blob changed since it was loaded.
	ErrETagMismatch = errors.New("store: etag mismatch")
)

// Ref identifies one stored configuration. Instance distinguishes multiple
// copies of the same configuration, e.g. one per tenant.
type Ref struct {
	Name     string
	Instance string
}

// Identifier returns the storage key: "name/instance", or "name" when
// Instance is empty.
func (r Ref) Identifier() (string, error) {
	name := strings.TrimSpace(r.Name)
	instance := strings.TrimSpace(r.Instance)
	if name == "" {
		return "", fmt.Errorf("store: config name is required")
	}
	if strings.Contains(name, "/") {
		return "", fmt.Errorf("store: config name %q must not contain '/'", name)
	}
	if instance == "" {
		return name, nil
	}
	return name + "/" + instance, nil
}

// Meta is storage-owned metadata used for auditing and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one serialized blob per Ref.
//
// Save receives the Meta returned by the preceding Load (zero for a new
// record) and must reject the write with ErrETagMismatch when meta.ETag does
// not match the stored ETag. It returns the Meta of the new record.
type Store interface {
	Load(ctx context.Context, ref Ref) (raw string, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, raw string, meta Meta) (Meta, error)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
