package tracker

import "strconv"

// RouteInfo describes one route from the route directory.
// RouteID is the join key against feed entities; ShortName is the directory key.
type RouteInfo struct {
	RouteID   string `json:"route_id"`
	ShortName string `json:"route_short_name"`
	LongName  string `json:"route_long_name"`
}

// VehiclePosition is one monitored vehicle as seen in a single poll.
type VehiclePosition struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp string    `json:"ts"`
	VehicleID string    `json:"vehicle_id"`
	Route     RouteInfo `json:"route"`
}

// MapLink returns a Google Maps URL pointing at the vehicle.
func (v VehiclePosition) MapLink() string {
	return "https://www.google.com/maps?q=" +
		strconv.FormatFloat(v.Lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(v.Lon, 'f', -1, 64)
}

// HistoryRecord is the result of one successful poll.
type HistoryRecord struct {
	Timestamp string            `json:"ts"` // Unix seconds
	Locations []VehiclePosition `json:"locations"`
}

// Feed is a decoded vehicle feed, independent of the wire format it came in.
type Feed struct {
	Entities []Entity
}

// Entity is one vehicle's reported state within a single feed fetch.
type Entity struct {
	ID        string
	RouteID   string
	VehicleID string
	Timestamp string
	Lat       float64
	Lon       float64
}
