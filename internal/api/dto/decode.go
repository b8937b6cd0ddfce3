package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "github.com/spec-kit/staff-service/pkg/util"
)

const dateOnly = "2006-01-02"

// Date accepts either an RFC3339 timestamp or a bare YYYY-MM-DD date.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler. null leaves the zero value.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("date must be a string")
	}
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		d.Time = t.UTC()
		return nil
	}
	t, err := time.Parse(dateOnly, raw)
	if err != nil {
		return fmt.Errorf("invalid date %q", raw)
	}
	d.Time = t
	return nil
}

// OptionalDate tells an absent date field apart from an explicit null.
type OptionalDate struct {
	Set bool
	Date
}

// UnmarshalJSON implements json.Unmarshaler. It only runs when the key is present,
// null included.
func (o *OptionalDate) UnmarshalJSON(b []byte) error {
	o.Set = true
	return o.Date.UnmarshalJSON(b)
}

// Ptr returns the date as a time pointer, nil when unset.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// Value returns the date or the zero time when unset.
func (d *Date) Value() time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}

// Decode reads a single JSON object from body into dst, rejecting fields dst does
// not declare and any trailing data.
func Decode(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return apperrors.NewValidationError("request body is required", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperrors.NewValidationError("request body must contain a single JSON object", nil)
	}
	return nil
}

func decodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return apperrors.NewValidationError(
			fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset), nil)
	case errors.Is(err, io.ErrUnexpectedEOF):
		return apperrors.NewValidationError("malformed JSON", nil)
	case errors.As(err, &typeErr):
		return apperrors.NewValidationError(
			fmt.Sprintf("field %s must be %s", typeErr.Field, typeErr.Type), map[string]any{typeErr.Field: "type"})
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return apperrors.NewValidationError(
			fmt.Sprintf("unknown field %s", field), map[string]any{field: "unknown"})
	default:
		return apperrors.NewValidationError(err.Error(), nil)
	}
}
