package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/cropyield-backend/internal/data/repos/testutil"
	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

func snapshot(key string, version int) *types.ModelSnapshot {
	return &types.ModelSnapshot{
		ID:           uuid.New(),
		ModelKey:     key,
		Version:      version,
		ModelType:    "linear",
		Target:       "yield",
		ArtifactPath: "x.gob",
		Checksum:     "abc",
	}
}

func TestModelSnapshotRepoVersions(t *testing.T) {
	db := testutil.DB(t)
	repo := NewModelSnapshotRepo(db, testutil.Logger(t))
	dbc := dbctx.New(context.Background())

	v, err := repo.NextVersion(dbc, "crop_yield")
	if err != nil || v != 1 {
		t.Fatalf("NextVersion empty: err=%v want=1 got=%d", err, v)
	}
	if err := repo.Create(dbc, snapshot("crop_yield", 1)); err != nil {
		t.Fatalf("Create v1: %v", err)
	}
	if err := repo.Create(dbc, snapshot("crop_yield", 2)); err != nil {
		t.Fatalf("Create v2: %v", err)
	}
	if err := repo.Create(dbc, snapshot("other", 7)); err != nil {
		t.Fatalf("Create other: %v", err)
	}
	if v, _ := repo.NextVersion(dbc, "crop_yield"); v != 3 {
		t.Fatalf("NextVersion: want=3 got=%d", v)
	}

	err = repo.Create(dbc, snapshot("crop_yield", 2))
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("Create duplicate: want ErrDuplicatedKey got=%v", err)
	}

	rows, err := repo.ListByKey(dbc, "crop_yield", 0)
	if err != nil || len(rows) != 2 || rows[0].Version != 2 {
		t.Fatalf("ListByKey: err=%v rows=%d", err, len(rows))
	}
	got, err := repo.GetByVersion(dbc, "crop_yield", 9)
	if err != nil || got != nil {
		t.Fatalf("GetByVersion missing: err=%v got=%v", err, got)
	}
}

func TestModelSnapshotRepoSwapActive(t *testing.T) {
	db := testutil.DB(t)
	repo := NewModelSnapshotRepo(db, testutil.Logger(t))
	dbc := dbctx.New(context.Background())

	v1, v2 := snapshot("crop_yield", 1), snapshot("crop_yield", 2)
	for _, s := range []*types.ModelSnapshot{v1, v2} {
		if err := repo.Create(dbc, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	if active, err := repo.GetActive(dbc, "crop_yield"); err != nil || active != nil {
		t.Fatalf("GetActive before swap: err=%v active=%v", err, active)
	}
	if err := repo.SwapActive(dbc, "crop_yield", 0, v1); err != nil {
		t.Fatalf("SwapActive 0->1: %v", err)
	}
	// a second writer that still believes nothing is active loses
	if err := repo.SwapActive(dbc, "crop_yield", 0, v2); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("SwapActive stale: want ErrConflict got=%v", err)
	}
	if err := repo.SwapActive(dbc, "crop_yield", 1, v2); err != nil {
		t.Fatalf("SwapActive 1->2: %v", err)
	}

	active, err := repo.GetActive(dbc, "crop_yield")
	if err != nil || active == nil || active.Version != 2 || active.SnapshotID != v2.ID {
		t.Fatalf("GetActive: err=%v active=%+v", err, active)
	}
	rows, _ := repo.ListByKey(dbc, "crop_yield", 10)
	for _, r := range rows {
		if r.Active != (r.Version == 2) {
			t.Fatalf("active flag for v%d: got=%v", r.Version, r.Active)
		}
	}
}
