// Package validation decodes and validates conversion requests.
package validation

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/mdconvert/errors"
)

// ModeFormat is the mode value that turns on list auto-numbering.
const ModeFormat = "format"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("textmax", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return TextLength(fl.Field().String()) <= limit
	})
	return v
}

// TextLength counts s in UTF-16 code units, the unit browsers use for
// string length. Characters outside the Basic Multilingual Plane count twice.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		n++
		if r > 0xFFFF {
			n++
		}
	}
	return n
}

// ConvertRequest is the JSON body accepted by the conversion endpoint.
type ConvertRequest struct {
	Text         string `json:"text"`
	Mode         string `json:"mode,omitempty"`
	RemoveSource bool   `json:"removeSource,omitempty"`
}

// AutoNumber reports whether the request asks for list numbering.
func (r ConvertRequest) AutoNumber() bool {
	return r.Mode == ModeFormat
}

// DecodeRequest parses a request body. Field names match exactly and unknown
// fields are ignored. A literal null, an empty body, a non-object value,
// fields of the wrong type and trailing data are all reported as errors.
func DecodeRequest(body io.Reader) (ConvertRequest, error) {
	dec := json.NewDecoder(body)

	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return ConvertRequest{}, fmt.Errorf("decode request body: %w", err)
	}
	if fields == nil {
		return ConvertRequest{}, fmt.Errorf("decode request body: body is null")
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return ConvertRequest{}, fmt.Errorf("decode request body: unexpected data after JSON value")
	}

	var req ConvertRequest
	targets := []struct {
		name string
		dst  any
	}{
		{"text", &req.Text},
		{"mode", &req.Mode},
		{"removeSource", &req.RemoveSource},
	}
	for _, target := range targets {
		raw, ok := fields[target.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, target.dst); err != nil {
			return ConvertRequest{}, fmt.Errorf("decode field %q: %w", target.name, err)
		}
	}

	return req, nil
}

// ValidateRequest checks that the text is present and at most maxLength
// UTF-16 code units long. The returned error is ready to be written to the
// client.
func ValidateRequest(requestID string, req ConvertRequest, maxLength int) *errors.ConvertError {
	err := validate.Var(req.Text, fmt.Sprintf("required,textmax=%d", maxLength))
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return errors.NewInternalError(requestID, err, false)
	}

	switch verrs[0].Tag() {
	case "required":
		return errors.NewValidationError(requestID, errors.MsgTextRequired)
	case "textmax":
		return errors.NewValidationError(requestID, errors.MsgTextTooLong)
	default:
		return errors.NewValidationError(requestID, verrs[0].Error())
	}
}
