package dataset

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CropRecord is one normalized row of an uploaded agricultural table.
// Canonical columns missing from the source are nil; unknown source columns
// are kept verbatim in Extra.
type CropRecord struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchID uuid.UUID `gorm:"column:batch_id;type:varchar(36);index" json:"batch_id"`

	Crop        string  `gorm:"column:crop;not null;index" json:"crop"`
	Year        *int    `gorm:"column:year;index" json:"year,omitempty"`
	Season      *string `gorm:"column:season;index" json:"season,omitempty"`
	SeasonMacro *string `gorm:"column:season_macro;index" json:"season_macro,omitempty"`
	State       *string `gorm:"column:state;index" json:"state,omitempty"`

	Area       *float64 `gorm:"column:area" json:"area,omitempty"`
	Production *float64 `gorm:"column:production" json:"production,omitempty"`
	RainMM     *float64 `gorm:"column:rain_mm" json:"rain_mm,omitempty"`
	Fertilizer *float64 `gorm:"column:fertilizer" json:"fertilizer,omitempty"`
	Pesticide  *float64 `gorm:"column:pesticide" json:"pesticide,omitempty"`
	Yield      *float64 `gorm:"column:yield" json:"yield,omitempty"`

	Extra datatypes.JSON `gorm:"column:extra" json:"extra,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (CropRecord) TableName() string { return "crop_record" }

// Numeric returns the value of a numeric canonical column.
func (r *CropRecord) Numeric(col string) (float64, bool) {
	if col == ColYear {
		if r.Year == nil {
			return 0, false
		}
		return float64(*r.Year), true
	}
	p := r.numericField(col)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

func (r *CropRecord) SetNumeric(col string, v float64) {
	if col == ColYear {
		y := int(v)
		r.Year = &y
		return
	}
	if p := r.numericField(col); p != nil {
		val := v
		*p = &val
	}
}

func (r *CropRecord) numericField(col string) **float64 {
	switch col {
	case ColArea:
		return &r.Area
	case ColProduction:
		return &r.Production
	case ColRainMM:
		return &r.RainMM
	case ColFertilizer:
		return &r.Fertilizer
	case ColPesticide:
		return &r.Pesticide
	case ColYield:
		return &r.Yield
	}
	return nil
}

// Category returns the value of a categorical canonical column; empty values count as missing.
func (r *CropRecord) Category(col string) (string, bool) {
	var p *string
	switch col {
	case ColCrop:
		if r.Crop == "" {
			return "", false
		}
		return r.Crop, true
	case ColSeason:
		p = r.Season
	case ColSeasonMacro:
		p = r.SeasonMacro
	case ColState:
		p = r.State
	}
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

func (r *CropRecord) SetCategory(col, v string) {
	val := v
	switch col {
	case ColCrop:
		r.Crop = v
	case ColSeason:
		r.Season = &val
	case ColSeasonMacro:
		r.SeasonMacro = &val
	case ColState:
		r.State = &val
	}
}

// Extras decodes the passthrough columns. A payload that is not a JSON object
// of strings is reported rather than read as empty.
func (r *CropRecord) Extras() (map[string]string, error) {
	out := map[string]string{}
	if len(r.Extra) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Extra, &out); err != nil {
		return nil, fmt.Errorf("record %d: decode extra columns: %w", r.ID, err)
	}
	return out, nil
}

func (r *CropRecord) SetExtras(m map[string]string) {
	if len(m) == 0 {
		r.Extra = nil
		return
	}
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	r.Extra = datatypes.JSON(b)
}
