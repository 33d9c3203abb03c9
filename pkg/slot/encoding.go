package slot

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MarshalBSONValue writes the slot back in the form it was read.
func (s Slot) MarshalBSONValue() (bsontype.Type, []byte, error) {
	switch {
	case s.kind == Timestamp:
		return bson.MarshalValue(primitive.NewDateTimeFromTime(s.at))
	case s.rawType != 0:
		return s.rawType, s.rawData, nil
	default:
		return bson.MarshalValue(s.raw)
	}
}

func (s *Slot) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}

	switch t {
	case bsontype.String:
		str, ok := rv.StringValueOK()
		if !ok {
			return fmt.Errorf("failed to decode slot string")
		}
		*s = Parse(str)
	case bsontype.DateTime:
		dt, ok := rv.DateTimeOK()
		if !ok {
			return fmt.Errorf("failed to decode slot datetime")
		}
		*s = FromTime(time.UnixMilli(dt))
	default:
		kept := make([]byte, len(data))
		copy(kept, data)
		*s = Slot{kind: Malformed, raw: rv.String(), rawType: t, rawData: kept}
	}
	return nil
}

func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts any stored string form; RFC 3339 values decode as
// native timestamps.
func (s *Slot) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("slot must be a string: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, str); err == nil {
		*s = FromTime(t)
		return nil
	}
	*s = Parse(str)
	return nil
}
