package search

import (
	"context"
	"errors"
	"net/url"

	"tekst-client/model"
)

// Searcher is the part of the API client a session needs.
type Searcher interface {
	Search(ctx context.Context, req model.SearchRequest) (*model.SearchResults, error)
	ExportSearch(ctx context.Context, req model.SearchRequest) (*model.Task, error)
}

// TextResolver maps a text id to the slug used in browse locations.
type TextResolver func(textID string) string

type Direction int

const (
	Previous Direction = iota
	Next
)

// BrowseLocation is where browsing a hit leads: a position in a text.
type BrowseLocation struct {
	TextSlug string
	Level    int
	Position int
	Hit      model.SearchHit
}

var ErrNoResults = errors.New("search: no current results")

// Session holds the state of one user's searching. It is not safe for
// concurrent use.
type Session struct {
	client  Searcher
	codec   Codec
	resolve TextResolver
	base    *url.URL

	general  model.GeneralSearchSettings
	quick    model.QuickSearchSettings
	advanced model.AdvancedSearchSettings

	current    model.SearchRequest
	results    *model.SearchResults
	loading    bool
	failed     bool
	resultsURL *url.URL

	browsing bool
	hitIndex int
	hit      *model.SearchHit
}

type SessionOption func(*Session)

func WithCodec(c Codec) SessionOption { return func(s *Session) { s.codec = c } }

func WithTextResolver(r TextResolver) SessionOption { return func(s *Session) { s.resolve = r } }

// WithResultsURL sets the results page URL that shareable links are built on.
func WithResultsURL(u *url.URL) SessionOption { return func(s *Session) { s.base = u } }

func NewSession(client Searcher, opts ...SessionOption) *Session {
	s := &Session{
		client:  client,
		general: DefaultGeneralSettings(),
		quick:   DefaultQuickSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// General returns the general settings used for the next search. Changes
// through the pointer take effect immediately.
func (s *Session) General() *model.GeneralSearchSettings   { return &s.general }
func (s *Session) Quick() *model.QuickSearchSettings       { return &s.quick }
func (s *Session) Advanced() *model.AdvancedSearchSettings { return &s.advanced }

func (s *Session) Current() model.SearchRequest  { return s.current }
func (s *Session) Results() *model.SearchResults { return s.results }
func (s *Session) Loading() bool                 { return s.loading }
func (s *Session) Failed() bool                  { return s.failed }
func (s *Session) Browsing() bool                { return s.browsing }
func (s *Session) CurrentHit() *model.SearchHit  { return s.hit }
func (s *Session) HitIndex() int                 { return s.hitIndex }

// ResultsURL is the shareable link of the last search started from settings.
func (s *Session) ResultsURL() string {
	if s.resultsURL == nil {
		return ""
	}
	return s.resultsURL.String()
}

func (s *Session) SearchQuick(ctx context.Context, q string) error {
	s.resetBrowse()
	quick := s.quick
	quick.Texts = append([]string(nil), s.quick.Texts...)
	req := model.CloneSearchRequest(&model.QuickSearchRequest{
		Query:    q,
		Settings: s.general,
		Quick:    quick,
	})
	s.navigate(req)
	return s.search(ctx, req)
}

func (s *Session) SearchAdvanced(ctx context.Context, queries []model.ResourceSearchQuery) error {
	s.resetBrowse()
	req := model.CloneSearchRequest(&model.AdvancedSearchRequest{
		Queries:  queries,
		Settings: s.general,
		Advanced: s.advanced,
	})
	s.navigate(req)
	return s.search(ctx, req)
}

// SearchFromURL runs the search encoded in a results link and adopts its
// settings. It does nothing when the session already has a current request.
func (s *Session) SearchFromURL(ctx context.Context, u *url.URL) error {
	s.resetBrowse()
	if s.current != nil {
		return nil
	}
	req := s.codec.FromURL(u)
	s.general = *req.General()
	switch r := req.(type) {
	case *model.QuickSearchRequest:
		s.quick = r.Quick
	case *model.AdvancedSearchRequest:
		s.advanced = r.Advanced
	}
	return s.search(ctx, req)
}

// SearchSecondary repeats the current request with the current general
// settings, e.g. after a page or sort change.
func (s *Session) SearchSecondary(ctx context.Context) error {
	var base model.SearchRequest = DefaultRequest()
	if s.current != nil {
		base = s.current
	}
	req := model.CloneSearchRequest(base)
	*req.General() = s.general
	return s.search(ctx, model.CloneSearchRequest(req))
}

// TurnPage moves one page back or forward within the available results and
// reports whether the page changed.
func (s *Session) TurnPage(ctx context.Context, dir Direction) (bool, error) {
	if s.results == nil {
		return false, nil
	}
	pgn := &s.general.Pagination
	current := pgn.Page
	next := current
	switch dir {
	case Previous:
		next = max(1, current-1)
	case Next:
		next = min(current+1, lastPage(s.results.TotalHits, pgn.PageSize))
	}
	if next == current {
		return false, nil
	}
	pgn.Page = next
	if err := s.SearchSecondary(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func lastPage(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	return max(1, (total+size-1)/size)
}

// Browse starts walking through the hits of the current page.
func (s *Session) Browse() (*BrowseLocation, error) {
	if s.results == nil || s.current == nil {
		return nil, ErrNoResults
	}
	s.browsing = true
	s.hitIndex = 0
	s.hit = nil
	if len(s.results.Hits) == 0 {
		return nil, nil
	}
	return s.selectHit(0), nil
}

// BrowseSkip moves to the previous or next hit, turning pages at the edges.
// It returns nil when there is no hit in that direction.
func (s *Session) BrowseSkip(ctx context.Context, dir Direction) (*BrowseLocation, error) {
	if s.results == nil || s.current == nil {
		return nil, ErrNoResults
	}
	target := s.hitIndex + 1
	if dir == Previous {
		target = s.hitIndex - 1
	}

	switch {
	case target < 0:
		turned, err := s.TurnPage(ctx, Previous)
		if err != nil || !turned {
			return nil, err
		}
		target = s.general.Pagination.PageSize - 1
	case target >= len(s.results.Hits):
		turned, err := s.TurnPage(ctx, Next)
		if err != nil || !turned {
			return nil, err
		}
		target = 0
	}

	if s.results == nil || target < 0 || target >= len(s.results.Hits) {
		return nil, nil
	}
	return s.selectHit(target), nil
}

// ExportResults starts an export of every hit of the current request.
func (s *Session) ExportResults(ctx context.Context) (*model.Task, error) {
	var req model.SearchRequest = DefaultRequest()
	if s.current != nil {
		req = s.current
	}
	return s.client.ExportSearch(ctx, req)
}

func (s *Session) selectHit(i int) *BrowseLocation {
	s.hitIndex = i
	hit := s.results.Hits[i]
	s.hit = &hit
	loc := &BrowseLocation{Level: hit.Level, Position: hit.Position, Hit: hit}
	if s.resolve != nil {
		loc.TextSlug = s.resolve(hit.TextID)
	}
	return loc
}

func (s *Session) resetBrowse() {
	s.browsing = false
	s.hitIndex = 0
}

func (s *Session) navigate(req model.SearchRequest) {
	s.resultsURL = s.codec.URLFor(s.base, req)
}

func (s *Session) search(ctx context.Context, req model.SearchRequest) error {
	s.loading = true
	s.failed = false
	s.results = nil
	s.current = req

	results, err := s.client.Search(ctx, req)
	s.loading = false
	if err != nil {
		s.failed = true
		return err
	}
	s.results = results
	return nil
}
