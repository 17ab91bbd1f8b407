// Package search turns search requests into shareable links and back, and
// keeps the state of a search session: settings, the current request, its
// results and the position while browsing through hits.
package search

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"tekst-client/i18n"
	"tekst-client/model"
	"tekst-client/notify"
)

// QueryParam is the results page query parameter holding the encoded request.
const QueryParam = "q"

const (
	DefaultPage     = 1
	DefaultPageSize = 10
)

var (
	ErrNilRequest = errors.New("search: nil request")
	ErrNoQuery    = errors.New("search: no encoded request")
)

func DefaultGeneralSettings() model.GeneralSearchSettings {
	sort := model.SortRelevance
	return model.GeneralSearchSettings{
		Pagination: model.Pagination{Page: DefaultPage, PageSize: DefaultPageSize},
		Sort:       &sort,
		Strict:     false,
	}
}

func DefaultQuickSettings() model.QuickSearchSettings {
	return model.QuickSearchSettings{Op: "OR", Regex: false}
}

// DefaultRequest is the empty quick search used whenever a link cannot be
// decoded.
func DefaultRequest() *model.QuickSearchRequest {
	return &model.QuickSearchRequest{
		Query:    "",
		Settings: DefaultGeneralSettings(),
		Quick:    DefaultQuickSettings(),
	}
}

// Encode serializes req to JSON and then to unpadded URL-safe Base64.
func Encode(req model.SearchRequest) (string, error) {
	if isNil(req) {
		return "", ErrNilRequest
	}
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode search request: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode reverses Encode. It also accepts the standard alphabet and padded
// input. Settings blocks missing from the payload are filled with defaults.
func Decode(s string) (model.SearchRequest, error) {
	if s == "" {
		return nil, ErrNoQuery
	}
	norm := strings.TrimRight(s, "=")
	norm = strings.NewReplacer("+", "-", "/", "_").Replace(norm)
	data, err := base64.RawURLEncoding.DecodeString(norm)
	if err != nil {
		return nil, fmt.Errorf("decode search request: %w", err)
	}

	req, err := model.UnmarshalSearchRequest(data)
	if err != nil {
		return nil, fmt.Errorf("decode search request: %w", err)
	}

	var present struct {
		Gen json.RawMessage `json:"gen"`
		Qck json.RawMessage `json:"qck"`
	}
	_ = json.Unmarshal(data, &present)
	if isAbsent(present.Gen) {
		*req.General() = DefaultGeneralSettings()
	}
	if q, ok := req.(*model.QuickSearchRequest); ok && isAbsent(present.Qck) {
		q.Quick = DefaultQuickSettings()
	}
	return req, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func isNil(req model.SearchRequest) bool {
	switch r := req.(type) {
	case nil:
		return true
	case *model.QuickSearchRequest:
		return r == nil
	case *model.AdvancedSearchRequest:
		return r == nil
	}
	return false
}

// Codec connects Encode and Decode to result page URLs and reports encoding
// failures to the user.
type Codec struct {
	Notifier notify.Notifier
	Catalog  *i18n.Catalog
}

// EncodeParam encodes req for use as the q parameter. On failure it emits a
// generic error notification and returns ok == false; the caller must then
// leave the parameter out.
func (c Codec) EncodeParam(req model.SearchRequest) (string, bool) {
	s, err := Encode(req)
	if err != nil {
		if c.Notifier != nil {
			catalog := c.Catalog
			if catalog == nil {
				catalog = i18n.New()
			}
			c.Notifier.Notify(notify.Notification{
				Level:   notify.Error,
				Message: catalog.T("errors.unexpected", nil),
			})
		}
		return "", false
	}
	return s, true
}

// URLFor returns a copy of base whose q parameter carries req. The
// parameter is removed when req cannot be encoded.
func (c Codec) URLFor(base *url.URL, req model.SearchRequest) *url.URL {
	u := &url.URL{}
	if base != nil {
		*u = *base
	}
	query := u.Query()
	if s, ok := c.EncodeParam(req); ok {
		query.Set(QueryParam, s)
	} else {
		query.Del(QueryParam)
	}
	u.RawQuery = query.Encode()
	return u
}

// FromURL reads the request from u's q parameter.
func (c Codec) FromURL(u *url.URL) model.SearchRequest {
	if u == nil {
		return DefaultRequest()
	}
	return c.FromQuery(u.Query())
}

// FromQuery decodes the q parameter. Anything undecodable yields
// DefaultRequest. Pagination is never taken from a link: a decoded request
// always starts on page 1 with the default page size.
func (c Codec) FromQuery(v url.Values) model.SearchRequest {
	req, err := Decode(v.Get(QueryParam))
	if err != nil {
		return DefaultRequest()
	}
	req.General().Pagination = model.Pagination{Page: DefaultPage, PageSize: DefaultPageSize}
	return req
}
