// Package rpc builds and unwraps the {method, params} / {result} envelopes
// spoken by the account service.
//
// Decoding is lenient about absence only: a missing or null result yields an
// empty Result, while a body that is not a JSON object is reported as an
// error. No error field is defined or inspected at this layer.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Request is the outbound envelope.
type Request struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// Encode produces the request body for method with the ordered params.
func Encode(method string, params ...any) ([]byte, error) {
	if method == "" {
		return nil, errors.New("rpc encode: method is required")
	}
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(Request{Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("rpc encode %s: %w", method, err)
	}
	return body, nil
}

// Result is the raw result field of a response.
type Result struct {
	Raw     json.RawMessage
	Present bool
}

// Decode extracts the top-level result field from body.
func Decode(body []byte) (Result, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Result{}, errors.New("rpc decode: empty response body")
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return Result{}, fmt.Errorf("rpc decode: %w", err)
	}
	raw := bytes.TrimSpace(envelope.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Result{}, nil
	}
	return Result{Raw: raw, Present: true}, nil
}

// Into decodes the result into v. It reports false without error when the
// result was absent.
func (r Result) Into(v any) (bool, error) {
	if !r.Present {
		return false, nil
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return true, fmt.Errorf("rpc decode result: %w", err)
	}
	return true, nil
}
