package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

type SearchType string

const (
	SearchQuick    SearchType = "quick"
	SearchAdvanced SearchType = "advanced"
)

type SortingPreset string

const (
	SortRelevance          SortingPreset = "relevance"
	SortTextLevelPosition  SortingPreset = "text_level_position"
	SortTextLevelRelevance SortingPreset = "text_level_relevance"
)

type Pagination struct {
	Page     int `json:"pg"`
	PageSize int `json:"pgs"`
}

type GeneralSearchSettings struct {
	Pagination Pagination     `json:"pgn"`
	Sort       *SortingPreset `json:"sort,omitempty"`
	Strict     bool           `json:"strict"`
}

type QuickSearchSettings struct {
	Op    string   `json:"op"`
	Regex bool     `json:"re"`
	Texts []string `json:"txt,omitempty"`
}

type AdvancedSearchSettings struct{}

type Occurrence string

const (
	OccurShould Occurrence = "should"
	OccurMust   Occurrence = "must"
	OccurNot    Occurrence = "not"
)

type CommonResourceQuery struct {
	Occurrence Occurrence `json:"occ,omitempty"`
	ResourceID string     `json:"res"`
	Comment    string     `json:"cmt,omitempty"`
}

// ResourceSearchQuery is one per-resource clause of an advanced search. The
// resource type specific part is kept as raw JSON since its shape depends on
// the resource type named in its own "type" field.
type ResourceSearchQuery struct {
	Common       CommonResourceQuery `json:"cmn"`
	TypeSpecific json.RawMessage     `json:"rts"`
}

// SearchRequest is either a *QuickSearchRequest or an *AdvancedSearchRequest.
type SearchRequest interface {
	SearchType() SearchType
	General() *GeneralSearchSettings
	sealed()
}

type QuickSearchRequest struct {
	Query    string                `json:"q"`
	Settings GeneralSearchSettings `json:"gen"`
	Quick    QuickSearchSettings   `json:"qck"`
}

func (*QuickSearchRequest) SearchType() SearchType            { return SearchQuick }
func (r *QuickSearchRequest) General() *GeneralSearchSettings { return &r.Settings }
func (*QuickSearchRequest) sealed()                           {}

func (r *QuickSearchRequest) MarshalJSON() ([]byte, error) {
	type plain QuickSearchRequest
	return json.Marshal(struct {
		Type SearchType `json:"type"`
		*plain
	}{SearchQuick, (*plain)(r)})
}

type AdvancedSearchRequest struct {
	Queries  []ResourceSearchQuery  `json:"q"`
	Settings GeneralSearchSettings  `json:"gen"`
	Advanced AdvancedSearchSettings `json:"adv"`
}

func (*AdvancedSearchRequest) SearchType() SearchType            { return SearchAdvanced }
func (r *AdvancedSearchRequest) General() *GeneralSearchSettings { return &r.Settings }
func (*AdvancedSearchRequest) sealed()                           {}

func (r *AdvancedSearchRequest) MarshalJSON() ([]byte, error) {
	type plain AdvancedSearchRequest
	return json.Marshal(struct {
		Type SearchType `json:"type"`
		*plain
	}{SearchAdvanced, (*plain)(r)})
}

var ErrUnknownSearchType = errors.New("unknown search type")

// UnmarshalSearchRequest decodes a request, choosing the variant by its
// "type" discriminator.
func UnmarshalSearchRequest(data []byte) (SearchRequest, error) {
	var head struct {
		Type SearchType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case SearchQuick:
		req := &QuickSearchRequest{}
		if err := json.Unmarshal(data, req); err != nil {
			return nil, err
		}
		return req, nil
	case SearchAdvanced:
		req := &AdvancedSearchRequest{}
		if err := json.Unmarshal(data, req); err != nil {
			return nil, err
		}
		return req, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSearchType, head.Type)
	}
}

// CloneSearchRequest returns a deep copy so callers can change settings
// without touching req.
func CloneSearchRequest(req SearchRequest) SearchRequest {
	switch r := req.(type) {
	case *QuickSearchRequest:
		c := *r
		c.Settings = r.Settings.clone()
		c.Quick.Texts = append([]string(nil), r.Quick.Texts...)
		return &c
	case *AdvancedSearchRequest:
		c := *r
		c.Settings = r.Settings.clone()
		c.Queries = make([]ResourceSearchQuery, len(r.Queries))
		for i, q := range r.Queries {
			c.Queries[i] = ResourceSearchQuery{
				Common:       q.Common,
				TypeSpecific: append(json.RawMessage(nil), q.TypeSpecific...),
			}
		}
		return &c
	}
	return nil
}

func (g GeneralSearchSettings) clone() GeneralSearchSettings {
	if g.Sort != nil {
		s := *g.Sort
		g.Sort = &s
	}
	return g
}

type SearchHit struct {
	ID        string              `json:"id"`
	Label     string              `json:"label"`
	FullLabel string              `json:"fullLabel"`
	TextID    string              `json:"textId"`
	Level     int                 `json:"level"`
	Position  int                 `json:"position"`
	Score     *float64            `json:"score"`
	Highlight map[string][]string `json:"highlight"`
}

type SearchResults struct {
	Hits              []SearchHit `json:"hits"`
	Took              int         `json:"took"`
	TotalHits         int         `json:"totalHits"`
	TotalHitsRelation string      `json:"totalHitsRelation"`
	MaxScore          *float64    `json:"maxScore"`
}
