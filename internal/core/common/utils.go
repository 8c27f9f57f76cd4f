package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks an LLM answer that could not be parsed or failed
// validation.
var ErrMalformed = errors.New("malformed llm response")

// ParseJSON cleans and unmarshals a JSON string into a type T.
// It handles common LLM quirks like surrounding markdown or extra text.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return zero, fmt.Errorf("%w: no JSON object found in response (missing '{')", ErrMalformed)
	}
	end := strings.LastIndexByte(response, '}')
	if end < start {
		return zero, fmt.Errorf("%w: unterminated JSON object in response", ErrMalformed)
	}
	jsonStr := response[start : end+1]

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("%w: failed to unmarshal JSON: %w\nData: %s", ErrMalformed, err, jsonStr)
	}

	return result, nil
}

// Validator is implemented by collaborator answers that check themselves.
type Validator interface {
	Validate() error
}

// ParseValid parses like ParseJSON and then validates the result.
func ParseValid[T Validator](response string) (T, error) {
	result, err := ParseJSON[T](response)
	if err != nil {
		return result, err
	}
	if err := result.Validate(); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return result, nil
}

// ToJSON renders v for inclusion in a prompt.
func ToJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
