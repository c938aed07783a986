package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/gocarina/gocsv"
)

const routesFile = "routes.txt"

var errNoRoutesFile = errors.New("routes.txt not found in archive")

// ParseRoutes opens a GTFS zip archive and decodes its routes.txt.
func ParseRoutes(zipPath string) ([]Route, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		// Some publishers nest the feed one directory deep.
		if path.Base(f.Name) != routesFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		defer rc.Close()

		routes, err := DecodeRoutes(rc)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", f.Name, err)
		}
		return routes, nil
	}
	return nil, errNoRoutesFile
}

// DecodeRoutes decodes a routes.txt table. The header selects columns by
// name; without one, the first, third and fourth columns are taken as id,
// short name and long name. Rows missing an id or short name are dropped.
func DecodeRoutes(r io.Reader) ([]Route, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	header, err := newCSVReader(data).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var routes []Route
	if hasHeader(header) {
		if err := gocsv.UnmarshalCSV(newCSVReader(data), &routes); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
	} else {
		routes, err = decodePositional(newCSVReader(data))
		if err != nil {
			return nil, err
		}
	}

	return slices.DeleteFunc(routes, func(rt Route) bool {
		return rt.RouteID == "" || rt.RouteShortName == ""
	}), nil
}

func newCSVReader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	// Tolerate rows with missing trailing columns.
	r.FieldsPerRecord = -1
	return r
}

func hasHeader(header []string) bool {
	var id, short bool
	for _, h := range header {
		switch strings.TrimSpace(h) {
		case "route_id":
			id = true
		case "route_short_name":
			short = true
		}
	}
	return id && short
}

func decodePositional(r *csv.Reader) ([]Route, error) {
	var routes []Route
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if len(record) <= colRouteLongName {
			continue
		}
		routes = append(routes, Route{
			RouteID:        record[colRouteID],
			RouteShortName: record[colRouteShortName],
			RouteLongName:  record[colRouteLongName],
		})
	}
	return routes, nil
}
