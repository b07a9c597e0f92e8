// Package dataset reads daily PM10 extracts into readings.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"pm10cast/internal/forecast"
	"pm10cast/internal/log"
	"pm10cast/internal/models"
)

// Column headers of the yearly air-quality extracts
const (
	ColumnDate          = "Date"
	ColumnConcentration = "Daily Mean PM10 Concentration"
	ColumnSite          = "Site Name"
	ColumnLatitude      = "SITE_LATITUDE"
	ColumnLongitude     = "SITE_LONGITUDE"
)

var dateLayouts = []string{"01/02/2006", "2006-01-02", "1/2/2006"}

// CSVSource merges a list of CSV files or http(s) URLs in order.
// Overlapping dates are kept as-is.
type CSVSource struct {
	Paths  []string
	Client *Client
}

// NewCSVSource creates a source over the given paths
func NewCSVSource(paths []string) *CSVSource {
	return &CSVSource{Paths: paths, Client: NewClient()}
}

// Readings loads every path and concatenates the rows
func (s *CSVSource) Readings(ctx context.Context) ([]models.Reading, error) {
	if len(s.Paths) == 0 {
		return nil, &forecast.DataLoadError{Source: "csv", Err: errors.New("no sources configured")}
	}

	var all []models.Reading
	for _, path := range s.Paths {
		readings, err := s.load(ctx, path)
		if err != nil {
			return nil, err
		}
		log.Debugw("loaded csv source", "source", path, "rows", len(readings))
		all = append(all, readings...)
	}
	return all, nil
}

func (s *CSVSource) load(ctx context.Context, path string) ([]models.Reading, error) {
	var r io.ReadCloser
	if isURL(path) {
		client := s.Client
		if client == nil {
			client = NewClient()
		}
		body, err := client.Fetch(ctx, path)
		if err != nil {
			return nil, &forecast.DataLoadError{Source: path, Err: err}
		}
		r = body
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, &forecast.DataLoadError{Source: path, Err: err}
		}
		r = f
	}
	defer r.Close()

	return Parse(path, r)
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Parse reads one extract. name is only used in errors.
func Parse(name string, r io.Reader) ([]models.Reading, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			err = errors.New("empty file")
		}
		return nil, &forecast.DataLoadError{Source: name, Err: fmt.Errorf("failed to read header: %w", err)}
	}

	cols, err := locateColumns(header)
	if err != nil {
		return nil, &forecast.DataLoadError{Source: name, Err: err}
	}

	var readings []models.Reading
	// Row numbers are 1-based and count the header.
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &forecast.DataLoadError{Source: name, Row: row, Err: err}
		}

		reading, err := cols.parse(record)
		if err != nil {
			return nil, &forecast.DataLoadError{Source: name, Row: row, Err: err}
		}
		readings = append(readings, reading)
	}

	return readings, nil
}

type columns struct {
	date, concentration, site, latitude, longitude int
}

func locateColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		// Excel exports prefix the first header with a BOM.
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := index[h]; !seen {
			index[h] = i
		}
	}

	lookup := func(name string) (int, error) {
		i, ok := index[name]
		if !ok {
			return 0, fmt.Errorf("missing column %q", name)
		}
		return i, nil
	}

	var c columns
	var err error
	if c.date, err = lookup(ColumnDate); err != nil {
		return c, err
	}
	if c.concentration, err = lookup(ColumnConcentration); err != nil {
		return c, err
	}
	if c.site, err = lookup(ColumnSite); err != nil {
		return c, err
	}
	if c.latitude, err = lookup(ColumnLatitude); err != nil {
		return c, err
	}
	if c.longitude, err = lookup(ColumnLongitude); err != nil {
		return c, err
	}
	return c, nil
}

func (c columns) parse(record []string) (models.Reading, error) {
	field := func(i int, name string) (string, error) {
		if i >= len(record) {
			return "", fmt.Errorf("record has %d fields, no %q", len(record), name)
		}
		return strings.TrimSpace(record[i]), nil
	}
	number := func(i int, name string) (float64, error) {
		raw, err := field(i, name)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, raw)
		}
		return v, nil
	}

	var r models.Reading
	rawDate, err := field(c.date, ColumnDate)
	if err != nil {
		return r, err
	}
	if r.Date, err = ParseDate(rawDate); err != nil {
		return r, err
	}
	if r.Site, err = field(c.site, ColumnSite); err != nil {
		return r, err
	}
	if r.Concentration, err = number(c.concentration, ColumnConcentration); err != nil {
		return r, err
	}
	if r.Latitude, err = number(c.latitude, ColumnLatitude); err != nil {
		return r, err
	}
	if r.Longitude, err = number(c.longitude, ColumnLongitude); err != nil {
		return r, err
	}
	return r, nil
}

// ParseDate accepts the date formats found in the extracts
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}
