package registry

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ModelSnapshot is one published, immutable model version.
type ModelSnapshot struct {
	ID uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`

	ModelKey string `gorm:"column:model_key;not null;index:idx_model_snapshot,unique,priority:1" json:"model_key"`
	Version  int    `gorm:"column:version;not null;index:idx_model_snapshot,unique,priority:2" json:"version"`
	Active   bool   `gorm:"column:active;not null;default:false;index" json:"active"`

	ModelType    string `gorm:"column:model_type;not null" json:"model_type"`
	Target       string `gorm:"column:target;not null" json:"target"`
	ArtifactPath string `gorm:"column:artifact_path;not null" json:"artifact_path"`
	Checksum     string `gorm:"column:checksum;not null" json:"checksum"`

	SchemaJSON  datatypes.JSON `gorm:"column:schema_json" json:"schema_json"`
	ParamsJSON  datatypes.JSON `gorm:"column:params_json" json:"params_json"`
	MetricsJSON datatypes.JSON `gorm:"column:metrics_json" json:"metrics_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ModelSnapshot) TableName() string { return "model_snapshot" }

// ActiveModel is the single active-version pointer per model key. It only
// moves through compare-and-swap on Version.
type ActiveModel struct {
	ModelKey   string    `gorm:"column:model_key;primaryKey" json:"model_key"`
	SnapshotID uuid.UUID `gorm:"column:snapshot_id;type:varchar(36);not null" json:"snapshot_id"`
	Version    int       `gorm:"column:version;not null" json:"version"`
	UpdatedAt  time.Time `gorm:"not null" json:"updated_at"`
}

func (ActiveModel) TableName() string { return "active_model" }
