package realtime

// vehicleFeed is the JSON shape of the vehicle positions endpoint. When the
// gateway rejects a request it answers with statusCode and message instead.
type vehicleFeed struct {
	StatusCode *int     `json:"statusCode"`
	Message    string   `json:"message"`
	Entity     []entity `json:"entity" validate:"required,dive"`
}

type entity struct {
	ID      string   `json:"id"`
	Vehicle *vehicle `json:"vehicle" validate:"required"`
}

type vehicle struct {
	Trip      *trip              `json:"trip" validate:"required"`
	Timestamp *string            `json:"timestamp" validate:"required"`
	Position  *position          `json:"position" validate:"required"`
	Vehicle   *vehicleDescriptor `json:"vehicle" validate:"required"`
}

type trip struct {
	RouteID *string `json:"route_id" validate:"required"`
}

type position struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

type vehicleDescriptor struct {
	ID *string `json:"id" validate:"required"`
}
