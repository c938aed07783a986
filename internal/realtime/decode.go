package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/go-playground/validator/v10"
	"google.golang.org/protobuf/proto"

	"bustrack/internal/tracker"
)

const (
	feedSource              = "vehicle feed"
	defaultRateLimitMessage = "Rate limit exceeded"
)

var validate = validator.New()

// DecodeJSON decodes a JSON vehicle feed. A statusCode of 429 in the payload
// is reported as *tracker.RateLimitedError; anything that does not match the
// expected shape is a *tracker.ParseError.
func DecodeJSON(body []byte) (*tracker.Feed, error) {
	var raw vehicleFeed
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &tracker.ParseError{Source: feedSource, Err: err}
	}

	if raw.StatusCode != nil {
		if *raw.StatusCode == http.StatusTooManyRequests {
			msg := raw.Message
			if msg == "" {
				msg = defaultRateLimitMessage
			}
			return nil, &tracker.RateLimitedError{Message: msg}
		}
		if raw.Entity == nil {
			return nil, &tracker.ParseError{
				Source: feedSource,
				Err:    fmt.Errorf("upstream status %d: %s", *raw.StatusCode, raw.Message),
			}
		}
	}

	if err := validate.Struct(raw); err != nil {
		return nil, &tracker.ParseError{Source: feedSource, Err: describeValidation(err)}
	}

	feed := &tracker.Feed{Entities: make([]tracker.Entity, 0, len(raw.Entity))}
	for _, e := range raw.Entity {
		v := e.Vehicle
		feed.Entities = append(feed.Entities, tracker.Entity{
			ID:        e.ID,
			RouteID:   *v.Trip.RouteID,
			VehicleID: *v.Vehicle.ID,
			Timestamp: *v.Timestamp,
			Lat:       *v.Position.Latitude,
			Lon:       *v.Position.Longitude,
		})
	}
	return feed, nil
}

// DecodeProtobuf decodes a GTFS-Realtime FeedMessage. Entities without a
// vehicle position (trip updates, alerts) are skipped.
func DecodeProtobuf(body []byte) (*tracker.Feed, error) {
	msg := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, msg); err != nil {
		return nil, &tracker.ParseError{Source: feedSource, Err: err}
	}

	feed := &tracker.Feed{Entities: make([]tracker.Entity, 0, len(msg.GetEntity()))}
	for _, e := range msg.GetEntity() {
		v := e.GetVehicle()
		if v == nil || v.GetPosition() == nil {
			continue
		}
		feed.Entities = append(feed.Entities, tracker.Entity{
			ID:        e.GetId(),
			RouteID:   v.GetTrip().GetRouteId(),
			VehicleID: v.GetVehicle().GetId(),
			Timestamp: strconv.FormatUint(v.GetTimestamp(), 10),
			Lat:       float64(v.GetPosition().GetLatitude()),
			Lon:       float64(v.GetPosition().GetLongitude()),
		})
	}
	return feed, nil
}

// rateLimitMessage extracts the gateway's message from a throttled response body.
func rateLimitMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return defaultRateLimitMessage
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	first := verrs[0]
	return fmt.Errorf("missing %s (%d invalid fields)", first.Namespace(), len(verrs))
}
