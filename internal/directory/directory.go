// Package directory loads the ISD station history file into an immutable
// in-memory lookup from station identifier to country and state.
package directory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/isd-archive-fetch/internal/domain"
)

// Directory maps "USAF-WBAN" station identifiers to their records.
// Loaded once at process start and read-only afterwards, so it is safe to
// share across years without locking.
type Directory struct {
	stations map[string]domain.StationRecord
}

// Lookup returns the record for a station identifier.
func (d *Directory) Lookup(id string) (domain.StationRecord, bool) {
	rec, ok := d.stations[id]
	return rec, ok
}

// Len returns the number of stations loaded.
func (d *Directory) Len() int {
	return len(d.stations)
}

// Load reads the station history from a local path or an http(s) URL.
func Load(ctx context.Context, source string, logger *slog.Logger) (*Directory, error) {
	var r io.ReadCloser
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("station history request: %w", err)
		}
		client := &http.Client{Timeout: 2 * time.Minute}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch station history: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("fetch station history: status %s", resp.Status)
		}
		r = resp.Body
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open station history: %w", err)
		}
		r = f
	}
	defer r.Close()

	d, err := Parse(r)
	if err != nil {
		return nil, err
	}
	logger.Info("station history loaded", "source", source, "stations", d.Len())
	return d, nil
}

// Parse reads isd-history.csv content. The header row names the columns;
// USAF, WBAN, "STATION NAME", CTRY, and ST are the ones used here.
func Parse(r io.Reader) (*Directory, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // history file rows vary in trailing columns

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read station history header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"USAF", "WBAN", "CTRY"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("station history missing %s column", required)
		}
	}

	stations := make(map[string]domain.StationRecord)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read station history: %w", err)
		}

		usaf := field(row, cols, "USAF")
		wban := field(row, cols, "WBAN")
		if usaf == "" || wban == "" {
			continue
		}
		id := usaf + "-" + wban
		stations[id] = domain.StationRecord{
			ID:          id,
			Name:        field(row, cols, "STATION NAME"),
			CountryCode: field(row, cols, "CTRY"),
			Subdivision: field(row, cols, "ST"),
		}
	}

	return &Directory{stations: stations}, nil
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
