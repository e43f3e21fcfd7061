package nrl

import (
	"strings"
	"unicode"
)

// canonicalTeams maps lowercased team name variations from the feeds to the
// single stored name, which is the NRL.com nickname. Bookmaker feeds tend to
// use full club names; the draw feed uses nicknames.
var canonicalTeams = map[string]string{
	"sharks":     "Sharks",
	"eels":       "Eels",
	"roosters":   "Roosters",
	"dolphins":   "Dolphins",
	"rabbitohs":  "Rabbitohs",
	"knights":    "Knights",
	"warriors":   "Warriors",
	"cowboys":    "Cowboys",
	"dragons":    "Dragons",
	"titans":     "Titans",
	"bulldogs":   "Bulldogs",
	"panthers":   "Panthers",
	"broncos":    "Broncos",
	"storm":      "Storm",
	"raiders":    "Raiders",
	"sea eagles": "Sea Eagles",

	"wests tigers": "Wests Tigers",
	"tigers":       "Wests Tigers",

	"cronulla sharks":               "Sharks",
	"parramatta eels":               "Eels",
	"sydney roosters":               "Roosters",
	"redcliffe dolphins":            "Dolphins",
	"the dolphins":                  "Dolphins",
	"south sydney rabbitohs":        "Rabbitohs",
	"newcastle knights":             "Knights",
	"new zealand warriors":          "Warriors",
	"north queensland cowboys":      "Cowboys",
	"st george illawarra dragons":   "Dragons",
	"gold coast titans":             "Titans",
	"canterbury bulldogs":           "Bulldogs",
	"canterbury-bankstown bulldogs": "Bulldogs",
	"penrith panthers":              "Panthers",
	"brisbane broncos":              "Broncos",
	"melbourne storm":               "Storm",
	"canberra raiders":              "Raiders",
	"manly warringah sea eagles":    "Sea Eagles",
	"manly-warringah sea eagles":    "Sea Eagles",
	"manly sea eagles":              "Sea Eagles",
}

// NormalizeTeamName reduces any feed's spelling of a club to the stored
// canonical name. Unrecognised names pass through title-cased so a new club
// or competition still round-trips consistently; empty input stays empty.
func NormalizeTeamName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := canonicalTeams[strings.ToLower(trimmed)]; ok {
		return canonical
	}

	words := strings.Fields(strings.ToLower(trimmed))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
