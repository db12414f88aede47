package pings

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/pingbot/internal/domain/ping"
)

// pingsField is the root field of the ListPings response.
const pingsField = "pings"

// Record is the wire shape of one ping.
type Record struct {
	UID    string
	Title  string
	City   string
	Lat    string
	Lon    string
	Expiry int64
}

// errMalformedRecords is returned when a ListPings response cannot be read.
var errMalformedRecords = errors.New("malformed pings response")

// ToRecords converts stored events to their wire shape.
func ToRecords(events []ping.Event) []Record {
	records := make([]Record, 0, len(events))

	for _, e := range events {
		lat, lon := e.LatLon()

		records = append(records, Record{
			UID:    e.CorrelationID,
			Title:  e.Title,
			City:   e.City,
			Lat:    lat,
			Lon:    lon,
			Expiry: e.ExpiryMillis(),
		})
	}

	return records
}

// EncodeRecords renders records as {"pings": [...]}.
func EncodeRecords(records []Record) (*structpb.Struct, error) {
	list := make([]any, 0, len(records))

	for _, r := range records {
		list = append(list, map[string]any{
			"uid":    r.UID,
			"title":  r.Title,
			"city":   r.City,
			"lat":    r.Lat,
			"lon":    r.Lon,
			"expiry": float64(r.Expiry),
		})
	}

	result, err := structpb.NewStruct(map[string]any{pingsField: list})
	if err != nil {
		return nil, fmt.Errorf("encode pings: %w", err)
	}

	return result, nil
}

// DecodeRecords reads a ListPings response. A missing pings field is empty.
func DecodeRecords(s *structpb.Struct) ([]Record, error) {
	value, ok := s.GetFields()[pingsField]
	if !ok {
		return nil, nil
	}

	list := value.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: %q is not a list", errMalformedRecords, pingsField)
	}

	records := make([]Record, 0, len(list.GetValues()))

	for i, v := range list.GetValues() {
		item := v.GetStructValue()
		if item == nil {
			return nil, fmt.Errorf("%w: entry %d is not an object", errMalformedRecords, i)
		}

		fields := item.GetFields()

		records = append(records, Record{
			UID:    fields["uid"].GetStringValue(),
			Title:  fields["title"].GetStringValue(),
			City:   fields["city"].GetStringValue(),
			Lat:    fields["lat"].GetStringValue(),
			Lon:    fields["lon"].GetStringValue(),
			Expiry: int64(fields["expiry"].GetNumberValue()),
		})
	}

	return records, nil
}
