package normalize

import "strings"

// Season macro groups.
const (
	MacroRainy        = "rainy"
	MacroDry          = "dry"
	MacroIntermediate = "intermediate"
	MacroAnnual       = "annual"
	MacroUnknown      = "unknown"
)

// SeasonMacros lists the macro seasons in display order.
var SeasonMacros = []string{MacroRainy, MacroDry, MacroIntermediate, MacroAnnual, MacroUnknown}

var seasonMacro = map[string]string{
	"kharif":     MacroRainy,
	"autumn":     MacroRainy,
	"chuvosa":    MacroRainy,
	"outono":     MacroRainy,
	"rainy":      MacroRainy,
	"rabi":       MacroDry,
	"winter":     MacroDry,
	"inverno":    MacroDry,
	"seca":       MacroDry,
	"dry":        MacroDry,
	"summer":     MacroIntermediate,
	"verao":      MacroIntermediate,
	"whole year": MacroAnnual,
	"ano todo":   MacroAnnual,
	"anual":      MacroAnnual,
	"annual":     MacroAnnual,
}

// CanonSeason tidies a season label and derives its macro group.
func CanonSeason(raw string) (season, macro string) {
	season = strings.Join(strings.Fields(raw), " ")
	if season == "" {
		return "", ""
	}
	season = titleCase(season)
	if m, ok := seasonMacro[Fold(season)]; ok {
		return season, m
	}
	return season, MacroUnknown
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
