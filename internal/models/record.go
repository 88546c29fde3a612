package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Record is the plain nested form of a model, as served to API consumers and
// stored in the content cache.
type Record map[string]any

// RecordConvertible is the explicit serialization capability every cacheable
// model implements. The caching layer calls it directly instead of probing for
// a method at runtime.
type RecordConvertible interface {
	ToRecord() Record
}

// Clone copies the record one level deep. Serving code attaches fields to
// records after reading them; cached records are cloned on the way out so
// those writes never touch a map another request may be reading.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CloneRecords clones every record in a slice.
func CloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}

// decodeJSONColumn turns a raw JSON column into its nested value. Columns that
// hold malformed payloads fall back to the raw string, matching how legacy
// rows are served.
func decodeJSONColumn(raw datatypes.JSON) any {
	if len(raw) == 0 {
		return nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}
	return value
}
