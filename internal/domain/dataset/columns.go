package dataset

// Canonical column names. Every uploaded table is mapped onto these.
const (
	ColCrop        = "crop"
	ColYear        = "year"
	ColSeason      = "season"
	ColSeasonMacro = "season_macro"
	ColState       = "state"
	ColArea        = "area"
	ColProduction  = "production"
	ColRainMM      = "rain_mm"
	ColFertilizer  = "fertilizer"
	ColPesticide   = "pesticide"
	ColYield       = "yield"
)

// CanonicalColumns is the canonical schema in its stable order.
var CanonicalColumns = []string{
	ColCrop,
	ColYear,
	ColSeason,
	ColSeasonMacro,
	ColState,
	ColArea,
	ColProduction,
	ColRainMM,
	ColFertilizer,
	ColPesticide,
	ColYield,
}

// IdentifierColumns never take part in training.
var IdentifierColumns = []string{"id", "batch_id"}

func IsCategorical(col string) bool {
	switch col {
	case ColCrop, ColSeason, ColSeasonMacro, ColState:
		return true
	}
	return false
}

func IsNumeric(col string) bool {
	switch col {
	case ColYear, ColArea, ColProduction, ColRainMM, ColFertilizer, ColPesticide, ColYield:
		return true
	}
	return false
}

func IsCanonical(col string) bool {
	return IsCategorical(col) || IsNumeric(col)
}

func IsIdentifier(col string) bool {
	for _, c := range IdentifierColumns {
		if c == col {
			return true
		}
	}
	return false
}
