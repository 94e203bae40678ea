package service

import (
	"encoding/json"
	"time"
)

// OptionalTime distinguishes an absent JSON field from an explicit null:
// absent leaves the stored value unchanged, null clears it.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptionalTime) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	return json.Unmarshal(b, &o.Value)
}

func (o OptionalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value)
}
