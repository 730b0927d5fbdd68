package domain

import (
	"regexp"
	"strings"
)

var (
	// stationIDRe matches the USAF-WBAN identifier that names every file
	// in a yearly archive, e.g. "725300-94846".
	stationIDRe = regexp.MustCompile(`^\d{6}-\d{5}$`)

	// stateFromNameRe recovers a US state abbreviation from a station
	// display name, e.g. "PORTAGE GLACIER VISITOR CENTER, AK US" -> "AK".
	stateFromNameRe = regexp.MustCompile(`\b([A-Z]{2})\s*,?\s*US\b`)
)

// StationRecord is one row of the station history file. Read-only after
// load; the classifier looks records up and never mutates them.
type StationRecord struct {
	ID          string // "USAF-WBAN"
	Name        string
	CountryCode string // FIPS country code, e.g. "US"
	Subdivision string // two-letter state for US stations, may be empty
}

// State returns the station's subdivision, falling back to the ", XX US"
// suffix of the display name when the history row left the column blank.
func (r StationRecord) State() string {
	if r.Subdivision != "" {
		return r.Subdivision
	}
	return StateFromName(r.Name)
}

// ParseStationID extracts the station identifier from an extracted file
// name. Returns "" when the name does not follow the USAF-WBAN convention.
func ParseStationID(filename string) string {
	base := filename
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	id := strings.TrimSuffix(base, ".csv")
	if id == base || !stationIDRe.MatchString(id) {
		return ""
	}
	return id
}

// StateFromName extracts a US state abbreviation from a station display
// name, or "" when none is present.
func StateFromName(name string) string {
	m := stateFromNameRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}
