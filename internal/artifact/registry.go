package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/cropyield-backend/internal/data/repos"
	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/ml"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

const (
	maxVersionAttempts = 5
	maxSwapAttempts    = 5
)

// Loaded pairs an activated snapshot row with its decoded artifact.
type Loaded struct {
	Snapshot *types.ModelSnapshot
	Artifact *Artifact
}

// Registry publishes versioned artifacts and serves the active one. The active
// pointer lives in the database so every process agrees on it; the decoded
// artifact is cached per process and reloaded when the pointer moves.
type Registry struct {
	key   string
	repo  repos.ModelSnapshotRepo
	store *Store
	log   *logger.Logger

	cached atomic.Pointer[Loaded]
}

func NewRegistry(key string, repo repos.ModelSnapshotRepo, store *Store, baseLog *logger.Logger) *Registry {
	if key == "" {
		key = "crop_yield"
	}
	return &Registry{
		key:   key,
		repo:  repo,
		store: store,
		log:   baseLog.With("component", "ModelRegistry", "model_key", key),
	}
}

func (r *Registry) Key() string   { return r.key }
func (r *Registry) Dir() string   { return r.store.Dir }
func (r *Registry) Store() *Store { return r.store }

type schema struct {
	Features       []ml.FeatureSpec `json:"features"`
	EncodedColumns []string         `json:"encoded_columns"`
}

// Publish persists a trained pipeline under the next version and activates it
// unless a newer version became active first.
func (r *Registry) Publish(ctx context.Context, res *ml.Result) (*types.ModelSnapshot, error) {
	if res == nil || res.Model == nil {
		return nil, fmt.Errorf("publish: empty training result")
	}
	dbc := dbctx.Context{Ctx: ctx}
	art := FromResult(r.key, res)

	schemaJSON, err := json.Marshal(schema{Features: res.Features, EncodedColumns: res.Encoder.ColumnNames()})
	if err != nil {
		return nil, err
	}
	paramsJSON, err := json.Marshal(res.Config)
	if err != nil {
		return nil, err
	}
	metricsJSON, err := json.Marshal(res.Metrics)
	if err != nil {
		return nil, err
	}

	var snap *types.ModelSnapshot
	for attempt := 1; ; attempt++ {
		version, err := r.repo.NextVersion(dbc, r.key)
		if err != nil {
			return nil, fmt.Errorf("next version: %w", err)
		}
		art.Version = version
		id := uuid.New()
		path, checksum, err := r.store.Write(art, id)
		if err != nil {
			return nil, err
		}
		snap = &types.ModelSnapshot{
			ID:           id,
			ModelKey:     r.key,
			Version:      version,
			ModelType:    string(res.ModelType),
			Target:       res.Target,
			ArtifactPath: path,
			Checksum:     checksum,
			SchemaJSON:   datatypes.JSON(schemaJSON),
			ParamsJSON:   datatypes.JSON(paramsJSON),
			MetricsJSON:  datatypes.JSON(metricsJSON),
		}
		err = r.repo.Create(dbc, snap)
		if err == nil {
			break
		}
		r.store.Remove(path)
		if !errors.Is(err, gorm.ErrDuplicatedKey) || attempt >= maxVersionAttempts {
			return nil, fmt.Errorf("create snapshot: %w", err)
		}
		r.log.Warn("model version taken, retrying", "version", version, "attempt", attempt)
	}

	if err := r.activateIfNewer(dbc, snap); err != nil {
		return nil, err
	}
	if snap.Active {
		r.cached.Store(&Loaded{Snapshot: snap, Artifact: art})
	}
	r.log.Info("model published", "version", snap.Version, "active", snap.Active, "path", snap.ArtifactPath)
	return snap, nil
}

// activateIfNewer moves the active pointer to snap when the current active
// version is lower. Concurrent publishers converge on the highest version.
func (r *Registry) activateIfNewer(dbc dbctx.Context, snap *types.ModelSnapshot) error {
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		cur, err := r.repo.GetActive(dbc, r.key)
		if err != nil {
			return fmt.Errorf("read active model: %w", err)
		}
		expected := 0
		if cur != nil {
			expected = cur.Version
		}
		if expected >= snap.Version {
			return nil
		}
		err = r.repo.SwapActive(dbc, r.key, expected, snap)
		if err == nil {
			snap.Active = true
			return nil
		}
		if !errors.Is(err, domainerrors.ErrConflict) {
			return fmt.Errorf("activate version %d: %w", snap.Version, err)
		}
	}
	return fmt.Errorf("activate version %d: %w", snap.Version, domainerrors.ErrConflict)
}

// Active returns the currently active pipeline, loading it from disk when the
// pointer moved since the last call.
func (r *Registry) Active(ctx context.Context) (*Loaded, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ptr, err := r.repo.GetActive(dbc, r.key)
	if err != nil {
		return nil, fmt.Errorf("read active model: %w", err)
	}
	if ptr == nil {
		return nil, &domainerrors.NoModelError{}
	}
	if c := r.cached.Load(); c != nil && c.Snapshot.ID == ptr.SnapshotID {
		return c, nil
	}
	snap, err := r.repo.GetByVersion(dbc, r.key, ptr.Version)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, &domainerrors.NoModelError{}
	}
	art, err := r.store.Read(snap.ArtifactPath, snap.Checksum)
	if err != nil {
		return nil, err
	}
	snap.Active = true
	loaded := &Loaded{Snapshot: snap, Artifact: art}
	r.cached.Store(loaded)
	r.log.Debug("active model loaded", "version", snap.Version)
	return loaded, nil
}

// Activate points the registry at an existing version, newer or older than
// the current one.
func (r *Registry) Activate(ctx context.Context, version int) (*types.ModelSnapshot, error) {
	dbc := dbctx.Context{Ctx: ctx}
	snap, err := r.repo.GetByVersion(dbc, r.key, version)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("model version %d: %w", version, domainerrors.ErrNotFound)
	}
	art, err := r.store.Read(snap.ArtifactPath, snap.Checksum)
	if err != nil {
		return nil, err
	}
	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		cur, err := r.repo.GetActive(dbc, r.key)
		if err != nil {
			return nil, err
		}
		expected := 0
		if cur != nil {
			expected = cur.Version
		}
		if expected == version {
			break
		}
		err = r.repo.SwapActive(dbc, r.key, expected, snap)
		if err == nil {
			break
		}
		if !errors.Is(err, domainerrors.ErrConflict) {
			return nil, err
		}
		if attempt == maxSwapAttempts-1 {
			return nil, fmt.Errorf("activate version %d: %w", version, err)
		}
	}
	snap.Active = true
	r.cached.Store(&Loaded{Snapshot: snap, Artifact: art})
	r.log.Info("model activated", "version", version)
	return snap, nil
}

func (r *Registry) List(ctx context.Context, limit int) ([]*types.ModelSnapshot, error) {
	return r.repo.ListByKey(dbctx.Context{Ctx: ctx}, r.key, limit)
}
