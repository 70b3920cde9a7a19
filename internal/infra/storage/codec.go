package storage

import (
	"bytes"
	"encoding/json"
)

// Decode unmarshals a checkpoint record. Numbers inside free-form maps such
// as job options come back as json.Number, so integers keep their value
// and text instead of turning into float64.
func Decode(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
