package services

import (
	"context"
	"sync"

	"github.com/yungbote/cropyield-backend/internal/analytics"
	"github.com/yungbote/cropyield-backend/internal/artifact"
	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/ml"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

type fakeRecordRepo struct {
	mu     sync.Mutex
	rows   []*types.CropRecord
	nextID uint
	fetch  int
}

func (f *fakeRecordRepo) InsertMany(_ dbctx.Context, rows []*types.CropRecord) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.nextID++
		r.ID = f.nextID
		f.rows = append(f.rows, r)
	}
	return len(rows), nil
}

func (f *fakeRecordRepo) FetchAll(_ dbctx.Context) ([]*types.CropRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetch++
	return append([]*types.CropRecord(nil), f.rows...), nil
}

func (f *fakeRecordRepo) Count(_ dbctx.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.rows)), nil
}

func (f *fakeRecordRepo) Clear(_ dbctx.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.rows)
	f.rows = nil
	return int64(n), nil
}

type fakeUploadRepo struct {
	rows []*types.UploadBatch
}

func (f *fakeUploadRepo) Create(_ dbctx.Context, row *types.UploadBatch) error {
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeUploadRepo) List(_ dbctx.Context, limit int) ([]*types.UploadBatch, error) {
	return f.rows, nil
}

// fakeRegistry keeps published artifacts in memory.
type fakeRegistry struct {
	mu     sync.Mutex
	snaps  []*types.ModelSnapshot
	arts   map[int]*artifact.Artifact
	active int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{arts: map[int]*artifact.Artifact{}}
}

func (f *fakeRegistry) Key() string { return "crop_yield" }
func (f *fakeRegistry) Dir() string { return "models" }

func (f *fakeRegistry) Publish(_ context.Context, res *ml.Result) (*types.ModelSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := len(f.snaps) + 1
	art := artifact.FromResult(f.Key(), res)
	art.Version = v
	for _, s := range f.snaps {
		s.Active = false
	}
	snap := &types.ModelSnapshot{ModelKey: f.Key(), Version: v, Active: true, ModelType: string(res.ModelType), Target: res.Target}
	f.snaps = append(f.snaps, snap)
	f.arts[v] = art
	f.active = v
	return snap, nil
}

func (f *fakeRegistry) Active(_ context.Context) (*artifact.Loaded, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == 0 {
		return nil, &domainerrors.NoModelError{}
	}
	return &artifact.Loaded{Snapshot: f.snaps[f.active-1], Artifact: f.arts[f.active]}, nil
}

func (f *fakeRegistry) Activate(_ context.Context, version int) (*types.ModelSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if version < 1 || version > len(f.snaps) {
		return nil, domainerrors.ErrNotFound
	}
	for _, s := range f.snaps {
		s.Active = s.Version == version
	}
	f.active = version
	return f.snaps[version-1], nil
}

func (f *fakeRegistry) List(_ context.Context, _ int) ([]*types.ModelSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.ModelSnapshot, 0, len(f.snaps))
	for i := len(f.snaps) - 1; i >= 0; i-- {
		out = append(out, f.snaps[i])
	}
	return out, nil
}

type countingCache struct {
	analytics.Cache
	hits int
}

func (c *countingCache) Get(ctx context.Context, key string) (*analytics.Result, bool) {
	res, ok := c.Cache.Get(ctx, key)
	if ok {
		c.hits++
	}
	return res, ok
}
