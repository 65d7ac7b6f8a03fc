package domain

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidCursor = errors.New("invalid list cursor")

// EncodeCursor returns the opaque token that resumes a listing after rec.
// Identity values are kept as a JSON array so no separator can collide with them.
func EncodeCursor(rec Record) string {
	identity := SchemaFor(rec.Kind).Identity
	values := make([]string, 0, len(identity))
	for _, name := range identity {
		values = append(values, rec.Fields[name])
	}
	raw, _ := json.Marshal(values)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor turns a token from EncodeCursor back into identity values of kind.
// An empty token decodes to nil.
func DecodeCursor(kind Kind, token string) ([]string, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if want := len(SchemaFor(kind).Identity); len(values) != want {
		return nil, fmt.Errorf("%w: %s cursor has %d parts, want %d", ErrInvalidCursor, kind, len(values), want)
	}
	return values, nil
}
