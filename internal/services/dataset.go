package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/cropyield-backend/internal/data/repos"
	types "github.com/yungbote/cropyield-backend/internal/domain"
	"github.com/yungbote/cropyield-backend/internal/normalize"
	"github.com/yungbote/cropyield-backend/internal/observability"
	"github.com/yungbote/cropyield-backend/internal/pkg/dbctx"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

type UploadInput struct {
	Filename string
	Body     io.Reader
	// Replace clears the stored dataset before inserting the upload.
	Replace bool
}

type UploadResult struct {
	Batch         *types.UploadBatch
	RowsSaved     int
	RowsRejected  int
	InvalidValues map[string]int
	Columns       map[string]string
}

type DatasetService interface {
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
	Records(ctx context.Context) ([]*types.CropRecord, error)
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) (int64, error)
	Export(ctx context.Context, format string, w io.Writer) (*ExportInfo, error)
	ListUploads(ctx context.Context, limit int) ([]*types.UploadBatch, error)
}

type datasetService struct {
	db         *gorm.DB
	log        *logger.Logger
	normalizer *normalize.Normalizer
	records    repos.CropRecordRepo
	uploads    repos.UploadBatchRepo
}

// NewDatasetService wires the upload pipeline. db may be nil, in which case
// writes run without an enclosing transaction.
func NewDatasetService(db *gorm.DB, log *logger.Logger, normalizer *normalize.Normalizer, records repos.CropRecordRepo, uploads repos.UploadBatchRepo) DatasetService {
	return &datasetService{
		db:         db,
		log:        log.With("service", "DatasetService"),
		normalizer: normalizer,
		records:    records,
		uploads:    uploads,
	}
}

func (s *datasetService) withTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if s.db == nil {
		return fn(dbctx.Context{Ctx: ctx})
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

func (s *datasetService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	table, err := normalize.Read(in.Body, in.Filename)
	if err != nil {
		return nil, err
	}
	res, err := s.normalizer.Normalize(table)
	if err != nil {
		return nil, err
	}

	batch := &types.UploadBatch{
		ID:           uuid.New(),
		Filename:     in.Filename,
		Delimiter:    res.Delimiter,
		Encoding:     res.Encoding,
		RowsRead:     res.RowsRead,
		RowsRejected: res.RowsRejected,
	}
	if raw, err := json.Marshal(res.InvalidValues); err == nil {
		batch.InvalidValues = datatypes.JSON(raw)
	}
	if raw, err := json.Marshal(res.Columns); err == nil {
		batch.Columns = datatypes.JSON(raw)
	}
	for _, r := range res.Records {
		r.BatchID = batch.ID
	}

	var saved int
	err = s.withTx(ctx, func(dbc dbctx.Context) error {
		if in.Replace {
			n, err := s.records.Clear(dbc)
			if err != nil {
				return fmt.Errorf("clear dataset: %w", err)
			}
			s.log.Info("dataset replaced", "rows_deleted", n)
		}
		n, err := s.records.InsertMany(dbc, res.Records)
		if err != nil {
			return fmt.Errorf("insert records: %w", err)
		}
		saved = n
		batch.RowsSaved = n
		return s.uploads.Create(dbc, batch)
	})
	if err != nil {
		return nil, err
	}

	observability.Current().ObserveUpload(saved, res.RowsRejected, res.InvalidValues)
	s.log.Info("upload stored",
		"batch_id", batch.ID,
		"filename", in.Filename,
		"rows_saved", saved,
		"rows_rejected", res.RowsRejected,
		"delimiter", res.Delimiter,
		"encoding", res.Encoding,
	)
	return &UploadResult{
		Batch:         batch,
		RowsSaved:     saved,
		RowsRejected:  res.RowsRejected,
		InvalidValues: res.InvalidValues,
		Columns:       res.Columns,
	}, nil
}

func (s *datasetService) Records(ctx context.Context) ([]*types.CropRecord, error) {
	return s.records.FetchAll(dbctx.Context{Ctx: ctx})
}

func (s *datasetService) Count(ctx context.Context) (int64, error) {
	return s.records.Count(dbctx.Context{Ctx: ctx})
}

func (s *datasetService) Clear(ctx context.Context) (int64, error) {
	n, err := s.records.Clear(dbctx.Context{Ctx: ctx})
	if err != nil {
		return 0, err
	}
	s.log.Info("dataset cleared", "rows_deleted", n)
	return n, nil
}

func (s *datasetService) ListUploads(ctx context.Context, limit int) ([]*types.UploadBatch, error) {
	return s.uploads.List(dbctx.Context{Ctx: ctx}, limit)
}
