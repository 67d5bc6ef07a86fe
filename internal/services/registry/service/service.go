// Package service implements the filesystem model registry. Versions are
// immutable file triples (model, encoders, metadata); a per-tenant latest
// marker is swapped in with an atomic rename so readers never observe a
// half-written version
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	perr "defectwatch/internal/platform/errors"
	"defectwatch/internal/platform/logger"
	dom "defectwatch/internal/services/registry/domain"
)

const tsLayout = "20060102_150405"

// Config for the registry service
type Config struct {
	// Dir is the root directory for persisted artifacts
	Dir string
}

// Service implements domain.RegistryPort on the local filesystem
type Service struct {
	cfg Config
	log *logger.Logger
	now func() time.Time
}

// New constructs the registry, creating the artifact directory if needed
func New(cfg Config) (*Service, error) {
	if cfg.Dir == "" {
		return nil, perr.InvalidArgf("registry directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeIO, "create registry directory")
	}
	return &Service{cfg: cfg, log: logger.Named("registry"), now: time.Now}, nil
}

func (s *Service) latestMetaPath(tenantID int64, kind dom.Kind) string {
	return filepath.Join(s.cfg.Dir, fmt.Sprintf("%s_tenant%d_latest.meta.json", kind, tenantID))
}

// Save implements domain.RegistryPort
func (s *Service) Save(_ context.Context, art *Artifact) error {
	return s.save(art)
}

// Artifact aliases the domain type for call-site brevity
type Artifact = dom.Artifact

func (s *Service) save(art *Artifact) error {
	meta := art.Meta
	if meta == nil {
		return perr.InvalidArgf("artifact metadata is required")
	}
	if len(art.Model) == 0 {
		return perr.InvalidArgf("artifact model blob is empty")
	}

	meta.VersionID = uuid.NewString()
	meta.SavedAt = s.now().UTC().Format(tsLayout)

	base := fmt.Sprintf("%s_tenant%d_%s_%s", meta.Kind, meta.TenantID, meta.SavedAt, meta.VersionID[:8])
	meta.ModelPath = filepath.Join(s.cfg.Dir, base+".model.gob")
	meta.EncodersPath = filepath.Join(s.cfg.Dir, base+".encoders.gob")
	metaPath := filepath.Join(s.cfg.Dir, base+".meta.json")

	if err := writeAtomic(meta.ModelPath, art.Model); err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "write model artifact")
	}
	if err := writeAtomic(meta.EncodersPath, art.Encoders); err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "write encoders artifact")
	}

	blob, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "marshal model metadata")
	}
	if err := writeAtomic(metaPath, blob); err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "write model metadata")
	}

	// the latest marker moves last so a crash leaves the previous
	// version fully resolvable
	if err := writeAtomic(s.latestMetaPath(meta.TenantID, meta.Kind), blob); err != nil {
		return perr.Wrap(err, perr.ErrorCodeIO, "update latest marker")
	}

	s.log.Info().
		Int64("tenant_id", meta.TenantID).
		Str("kind", string(meta.Kind)).
		Str("version_id", meta.VersionID).
		Str("model_path", meta.ModelPath).
		Msg("model version saved")
	return nil
}

// Load implements domain.RegistryPort. A missing or unreadable version is
// reported as absent, never as an error; corruption is logged
func (s *Service) Load(_ context.Context, tenantID int64, kind dom.Kind) (*Artifact, bool, error) {
	blob, err := os.ReadFile(s.latestMetaPath(tenantID, kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, perr.Wrap(err, perr.ErrorCodeIO, "read latest marker")
	}

	var meta dom.Meta
	if err := json.Unmarshal(blob, &meta); err != nil {
		s.log.Warn().Err(err).Int64("tenant_id", tenantID).Str("kind", string(kind)).
			Msg("latest metadata corrupt, treating as no model")
		return nil, false, nil
	}

	model, err := os.ReadFile(meta.ModelPath)
	if err != nil {
		s.log.Warn().Err(err).Int64("tenant_id", tenantID).Str("version_id", meta.VersionID).
			Msg("model blob unreadable, treating as no model")
		return nil, false, nil
	}
	encoders, err := os.ReadFile(meta.EncodersPath)
	if err != nil {
		s.log.Warn().Err(err).Int64("tenant_id", tenantID).Str("version_id", meta.VersionID).
			Msg("encoders blob unreadable, treating as no model")
		return nil, false, nil
	}
	return &Artifact{Model: model, Encoders: encoders, Meta: &meta}, true, nil
}

// Exists implements domain.RegistryPort
func (s *Service) Exists(_ context.Context, tenantID int64, kind dom.Kind) bool {
	_, err := os.Stat(s.latestMetaPath(tenantID, kind))
	return err == nil
}

// ListVersions implements domain.RegistryPort
func (s *Service) ListVersions(_ context.Context, tenantID int64, kind dom.Kind) ([]dom.Meta, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeIO, "list registry directory")
	}

	prefix := fmt.Sprintf("%s_tenant%d_", kind, tenantID)
	latest := filepath.Base(s.latestMetaPath(tenantID, kind))

	var out []dom.Meta
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == latest ||
			!strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".meta.json") {
			continue
		}
		blob, err := os.ReadFile(filepath.Join(s.cfg.Dir, name))
		if err != nil {
			continue
		}
		var meta dom.Meta
		if err := json.Unmarshal(blob, &meta); err != nil {
			s.log.Warn().Str("file", name).Msg("skipping unreadable version metadata")
			continue
		}
		out = append(out, meta)
	}

	// SavedAt is a sortable timestamp; newest first
	sort.Slice(out, func(i, j int) bool {
		if out[i].SavedAt != out[j].SavedAt {
			return out[i].SavedAt > out[j].SavedAt
		}
		return out[i].VersionID > out[j].VersionID
	})
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
