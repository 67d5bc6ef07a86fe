package domain

import "context"

// RegistryPort persists and resolves model versions per tenant
type RegistryPort interface {
	// Save writes a new immutable version and repoints the tenant's
	// latest marker to it. VersionID, SavedAt and the artifact paths
	// are filled in on the supplied Meta
	Save(ctx context.Context, art *Artifact) error

	// Load returns the tenant's latest artifact for kind.
	// ok is false when no usable version exists
	Load(ctx context.Context, tenantID int64, kind Kind) (art *Artifact, ok bool, err error)

	// Exists reports whether a latest version is present
	Exists(ctx context.Context, tenantID int64, kind Kind) bool

	// ListVersions returns all persisted versions, newest first
	ListVersions(ctx context.Context, tenantID int64, kind Kind) ([]Meta, error)
}
