package dataset

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UploadBatch records what a single upload contributed to the dataset.
type UploadBatch struct {
	ID uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`

	Filename  string `gorm:"column:filename" json:"filename"`
	Delimiter string `gorm:"column:delimiter" json:"delimiter"`
	Encoding  string `gorm:"column:encoding" json:"encoding"`

	RowsRead     int `gorm:"column:rows_read;not null;default:0" json:"rows_read"`
	RowsSaved    int `gorm:"column:rows_saved;not null;default:0" json:"rows_saved"`
	RowsRejected int `gorm:"column:rows_rejected;not null;default:0" json:"rows_rejected"`

	// per-column count of cells that failed numeric coercion
	InvalidValues datatypes.JSON `gorm:"column:invalid_values" json:"invalid_values,omitempty"`
	// source header -> canonical or passthrough name
	Columns datatypes.JSON `gorm:"column:columns" json:"columns,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (UploadBatch) TableName() string { return "upload_batch" }
