package artifact

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yungbote/cropyield-backend/internal/data/repos"
	"github.com/yungbote/cropyield-backend/internal/data/repos/testutil"
	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/ml"
	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func trainedResult(t *testing.T, mt ml.ModelType) *ml.Result {
	t.Helper()
	crops := []string{"soybean", "corn"}
	records := make([]*dataset.CropRecord, 24)
	for i := range records {
		rain := 900 + float64(i*17%300)
		records[i] = &dataset.CropRecord{
			Crop:   crops[i%2],
			Year:   iptr(2000 + i),
			RainMM: fptr(rain),
			Yield:  fptr(float64(2+i%2*3) + rain/1000),
		}
	}
	cfg := ml.DefaultConfig()
	cfg.ModelType = mt
	cfg.Forest.NEstimators = 10
	res, err := ml.Train(context.Background(), records, cfg, nil)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	return res
}

func newRegistry(t *testing.T) (*Registry, func() *Registry) {
	t.Helper()
	db := testutil.DB(t)
	dir := t.TempDir()
	log := testutil.Logger(t)
	mk := func() *Registry {
		return NewRegistry("crop_yield", repos.NewModelSnapshotRepo(db, log), NewStore(dir), log)
	}
	return mk(), mk
}

var probe = &dataset.CropRecord{Crop: "soybean", Year: iptr(2030), RainMM: fptr(1000)}

func TestRegistryNoModel(t *testing.T) {
	reg, _ := newRegistry(t)
	_, err := reg.Active(context.Background())
	if !domainerrors.IsNoModel(err) {
		t.Fatalf("Active: want NoModelError got=%v", err)
	}
}

func TestRegistryPublishAndReloadAfterRestart(t *testing.T) {
	ctx := context.Background()
	reg, reopen := newRegistry(t)

	snap, err := reg.Publish(ctx, trainedResult(t, ml.ModelRandomForest))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if snap.Version != 1 || !snap.Active {
		t.Fatalf("Publish: want v1 active got v%d active=%v", snap.Version, snap.Active)
	}
	before, err := reg.Active(ctx)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	want, err := ml.Score(before.Artifact.Features, before.Artifact.Encoder, before.Artifact.Model, probe)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	restarted := reopen()
	after, err := restarted.Active(ctx)
	if err != nil {
		t.Fatalf("Active after restart: %v", err)
	}
	if after.Snapshot.Version != 1 {
		t.Fatalf("version after restart: want=1 got=%d", after.Snapshot.Version)
	}
	got, err := ml.Score(after.Artifact.Features, after.Artifact.Encoder, after.Artifact.Model, probe)
	if err != nil {
		t.Fatalf("Score after restart: %v", err)
	}
	if got != want {
		t.Fatalf("prediction after restart: want=%v got=%v", want, got)
	}
	if diff := cmp.Diff(before.Artifact.Metrics, after.Artifact.Metrics); diff != "" {
		t.Fatalf("metrics after restart (-want +got):\n%s", diff)
	}
}

func TestRegistryVersionsAndActivate(t *testing.T) {
	ctx := context.Background()
	reg, reopen := newRegistry(t)

	if _, err := reg.Publish(ctx, trainedResult(t, ml.ModelLinear)); err != nil {
		t.Fatalf("Publish 1: %v", err)
	}
	v2, err := reg.Publish(ctx, trainedResult(t, ml.ModelRandomForest))
	if err != nil {
		t.Fatalf("Publish 2: %v", err)
	}
	if v2.Version != 2 || !v2.Active {
		t.Fatalf("Publish 2: want v2 active got v%d active=%v", v2.Version, v2.Active)
	}

	list, err := reg.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Version != 2 || !list[0].Active || list[1].Active {
		t.Fatalf("List: unexpected %+v", list)
	}

	if _, err := reg.Activate(ctx, 1); err != nil {
		t.Fatalf("Activate 1: %v", err)
	}
	cur, err := reopen().Active(ctx)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if cur.Snapshot.Version != 1 || cur.Artifact.ModelType != ml.ModelLinear {
		t.Fatalf("Active after rollback: v%d %s", cur.Snapshot.Version, cur.Artifact.ModelType)
	}

	if _, err := reg.Activate(ctx, 42); !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("Activate missing: want ErrNotFound got=%v", err)
	}
}

func TestRegistryRejectsTamperedArtifact(t *testing.T) {
	ctx := context.Background()
	reg, reopen := newRegistry(t)
	snap, err := reg.Publish(ctx, trainedResult(t, ml.ModelLinear))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := os.WriteFile(snap.ArtifactPath, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if _, err := reopen().Active(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Active: want ErrChecksumMismatch got=%v", err)
	}
}

func TestRegistryConcurrentPublishConverges(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	res := trainedResult(t, ml.ModelLinear)

	const n = 3
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = reg.Publish(ctx, res)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	list, err := reg.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var versions []int
	active := 0
	for _, s := range list {
		versions = append(versions, s.Version)
		if s.Active {
			active++
		}
	}
	if diff := cmp.Diff([]int{3, 2, 1}, versions); diff != "" {
		t.Fatalf("versions (-want +got):\n%s", diff)
	}
	if active != 1 {
		t.Fatalf("active rows: want=1 got=%d", active)
	}
	cur, err := reg.Active(ctx)
	if err != nil || cur.Snapshot.Version != 3 {
		t.Fatalf("Active: err=%v", err)
	}
}
