// Package domain models NOAA Integrated Surface Database (ISD) yearly
// archives and the station metadata used to sort them.
//
// # Data Source
//
// Yearly archives live under the NCEI global-hourly archive endpoint
// (https://www.ncei.noaa.gov/data/global-hourly/archive/csv/), one
// <year>.tar.gz per year. Each archive is a flat tar of per-station CSV
// files. The meteorological record format inside those files is never
// interpreted here; files are routed, not parsed.
//
// # Station File Naming
//
// Every entry in an archive is named after its station:
//
//	<USAF>-<WBAN>.csv  →  e.g. 725300-94846.csv
//	USAF: 6-digit Air Force catalog number.
//	WBAN: 5-digit Weather Bureau Army Navy number.
//	The combined "USAF-WBAN" string is the stable station identifier and
//	the key into the station history file. Parsed by [ParseStationID].
//
// # Station History
//
// The ISD station history file (isd-history.csv) maps each station to a
// country code (FIPS, e.g. "US") and, for US stations, a two-letter state
// abbreviation. Some US rows leave the state column blank but carry it in
// the display name ("PORTAGE GLACIER VISITOR CENTER, AK US"); the trailing
// ", XX US" form is recovered by [StateFromName].
//
// # Transfer State
//
// A fresh download is staged at "<archive>.part" and renamed into place
// only once complete; a partial file already sitting at the final path is
// resumed there in place, so the final path may briefly hold a growing
// file. Either way the bytes on disk are the only persisted resume state,
// and [TransferState] can always be rebuilt from a stat of the two paths.
package domain
