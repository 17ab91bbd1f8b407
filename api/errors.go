package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Error is a non-2xx response from the platform API.
type Error struct {
	Status int
	// Key is the platform's machine-readable error key, e.g. "taskNotFound".
	Key    string
	Msg    string
	Values map[string]any
}

func (e *Error) Error() string {
	switch {
	case e.Key != "" && e.Msg != "":
		return fmt.Sprintf("api: %d %s: %s", e.Status, e.Key, e.Msg)
	case e.Key != "":
		return fmt.Sprintf("api: %d %s", e.Status, e.Key)
	case e.Msg != "":
		return fmt.Sprintf("api: %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
}

func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

// parseError builds an *Error from a response body shaped either
// {"detail": {"key", "msg", "values"}} or {"detail": "text"}.
func parseError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return apiErr
	}

	var detail struct {
		Key    string         `json:"key"`
		Msg    string         `json:"msg"`
		Values map[string]any `json:"values"`
	}
	if err := json.Unmarshal(envelope.Detail, &detail); err == nil {
		apiErr.Key = detail.Key
		apiErr.Msg = detail.Msg
		apiErr.Values = detail.Values
		return apiErr
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		apiErr.Msg = text
	}
	return apiErr
}
