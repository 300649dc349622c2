package normalize

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
)

var builtinAliases = map[string][]string{
	dataset.ColCrop: {
		"crop", "crops", "crop_type", "crop_name", "cultura", "culturas", "cultivo", "cultivar", "produto", "commodity",
	},
	dataset.ColYear: {
		"year", "crop_year", "ano", "ano_safra", "safra", "harvest_year", "ano_colheita",
	},
	dataset.ColSeason: {
		"season", "estacao", "temporada", "epoca", "epoca_plantio",
	},
	dataset.ColSeasonMacro: {
		"season_macro", "macro_season", "estacao_macro",
	},
	dataset.ColState: {
		"state", "estado", "uf", "region", "regiao", "province", "provincia",
	},
	dataset.ColArea: {
		"area", "area_ha", "planted_area", "area_plantada", "area_colhida", "harvested_area", "hectares",
	},
	dataset.ColProduction: {
		"production", "producao", "producao_total", "total_production", "prod",
	},
	dataset.ColRainMM: {
		"rain_mm", "rain", "rainfall", "annual_rainfall", "rainfall_mm", "chuva", "chuva_mm", "precipitacao",
		"precipitacao_mm", "precipitation", "precipitation_mm", "pluviosidade",
	},
	dataset.ColFertilizer: {
		"fertilizer", "fertilizer_kg_ha", "fertilizers", "fertilizante", "fertilizantes", "adubo", "adubacao",
	},
	dataset.ColPesticide: {
		"pesticide", "pesticide_kg_ha", "pesticides", "pesticida", "pesticidas", "defensivo", "defensivos", "agrotoxico",
	},
	dataset.ColYield: {
		"yield", "yield_kg_ha", "yield_t_ha", "produtividade", "produtividade_kg_ha", "rendimento", "rendimento_medio",
	},
}

// Aliases resolves source column names onto canonical columns.
type Aliases struct {
	index map[string]string
}

func DefaultAliases() *Aliases {
	a := &Aliases{index: map[string]string{}}
	for canon, names := range builtinAliases {
		a.Add(canon, names...)
	}
	return a
}

// LoadAliases extends the built-in table with a YAML file of the form
// `canonical: [alias, ...]`. An empty path yields the defaults.
func LoadAliases(path string) (*Aliases, error) {
	a := DefaultAliases()
	if path == "" {
		return a, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases file: %w", err)
	}
	extra := map[string][]string{}
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return nil, fmt.Errorf("parse aliases file: %w", err)
	}
	for canon, names := range extra {
		c := SanitizeName(canon)
		if !dataset.IsCanonical(c) {
			return nil, fmt.Errorf("aliases file: %q is not a canonical column", canon)
		}
		a.Add(c, names...)
	}
	return a, nil
}

func (a *Aliases) Add(canon string, names ...string) {
	a.index[canon] = canon
	for _, n := range names {
		if s := SanitizeName(n); s != "" {
			a.index[s] = canon
		}
	}
}

// Resolve maps a raw header onto its canonical column. The second result is
// the sanitized name, which unknown columns keep as their passthrough key.
func (a *Aliases) Resolve(header string) (canon, sanitized string, ok bool) {
	sanitized = SanitizeName(header)
	canon, ok = a.index[sanitized]
	return canon, sanitized, ok
}

// Known lists every accepted name per canonical column, sorted.
func (a *Aliases) Known() map[string][]string {
	out := map[string][]string{}
	for alias, canon := range a.index {
		out[canon] = append(out[canon], alias)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}
