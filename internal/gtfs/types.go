package gtfs

// Route is one row of routes.txt. Only the columns the directory uses are
// decoded; the rest of the table is ignored.
type Route struct {
	RouteID        string `csv:"route_id"`
	AgencyID       string `csv:"agency_id"`
	RouteShortName string `csv:"route_short_name"`
	RouteLongName  string `csv:"route_long_name"`
	RouteType      string `csv:"route_type"`
}

// Positional column indexes used when routes.txt has no recognizable header.
const (
	colRouteID        = 0
	colRouteShortName = 2
	colRouteLongName  = 3
)
