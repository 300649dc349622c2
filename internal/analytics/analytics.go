// Package analytics describes a dataset: summary statistics plus a fixed set
// of PNG charts.
package analytics

import (
	"context"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
)

// Analyze summarizes records and renders every chart.
func Analyze(ctx context.Context, records []*dataset.CropRecord, opts Options) (*Result, error) {
	images, err := Render(ctx, records, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Summary: Summarize(records), Images: images}, nil
}
