package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSON decodes a single JSON value from r into v.
func DecodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return eris.Wrap(err, "json: decode")
	}
	return nil
}

// DecodeJSONArray decodes a JSON array of T. An empty body is an empty page.
func DecodeJSONArray[T any](r io.Reader) ([]T, error) {
	var out []T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, eris.Wrap(err, "json: decode array")
	}
	return out, nil
}
