package search

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"testing"

	"tekst-client/i18n"
	"tekst-client/model"
	"tekst-client/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortPtr(s model.SortingPreset) *model.SortingPreset { return &s }

func quickRequest() *model.QuickSearchRequest {
	return &model.QuickSearchRequest{
		Query: "foo",
		Settings: model.GeneralSearchSettings{
			Pagination: model.Pagination{Page: 3, PageSize: 20},
			Sort:       sortPtr(model.SortTextLevelPosition),
			Strict:     true,
		},
		Quick: model.QuickSearchSettings{Op: "AND", Regex: true, Texts: []string{"t1", "t2"}},
	}
}

func advancedRequest() *model.AdvancedSearchRequest {
	return &model.AdvancedSearchRequest{
		Queries: []model.ResourceSearchQuery{{
			Common:       model.CommonResourceQuery{Occurrence: model.OccurMust, ResourceID: "res1"},
			TypeSpecific: json.RawMessage(`{"type":"plainText","text":"bar"}`),
		}},
		Settings: DefaultGeneralSettings(),
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Run("quick round trip", func(t *testing.T) {
		req := quickRequest()
		s, err := Encode(req)
		require.NoError(t, err)
		assert.NotContains(t, s, "=")
		assert.NotContains(t, s, "+")
		assert.NotContains(t, s, "/")

		got, err := Decode(s)
		require.NoError(t, err)
		assert.Equal(t, req, got)
	})

	t.Run("advanced round trip", func(t *testing.T) {
		req := advancedRequest()
		s, err := Encode(req)
		require.NoError(t, err)

		got, err := Decode(s)
		require.NoError(t, err)
		adv, ok := got.(*model.AdvancedSearchRequest)
		require.True(t, ok)
		assert.Equal(t, req.Settings, adv.Settings)
		require.Len(t, adv.Queries, 1)
		assert.Equal(t, req.Queries[0].Common, adv.Queries[0].Common)
		assert.JSONEq(t, string(req.Queries[0].TypeSpecific), string(adv.Queries[0].TypeSpecific))
	})

	t.Run("encoding carries the type discriminator", func(t *testing.T) {
		s, err := Encode(quickRequest())
		require.NoError(t, err)
		data, err := base64.RawURLEncoding.DecodeString(s)
		require.NoError(t, err)
		var head map[string]any
		require.NoError(t, json.Unmarshal(data, &head))
		assert.Equal(t, "quick", head["type"])
		assert.Equal(t, "foo", head["q"])
	})

	t.Run("nil request", func(t *testing.T) {
		_, err := Encode(nil)
		assert.ErrorIs(t, err, ErrNilRequest)
		var typed *model.QuickSearchRequest
		_, err = Encode(typed)
		assert.ErrorIs(t, err, ErrNilRequest)
	})

	t.Run("padded and standard alphabet input", func(t *testing.T) {
		data, err := json.Marshal(quickRequest())
		require.NoError(t, err)
		for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding} {
			got, err := Decode(enc.EncodeToString(data))
			require.NoError(t, err)
			assert.Equal(t, "foo", got.(*model.QuickSearchRequest).Query)
		}
	})

	t.Run("missing settings blocks get defaults", func(t *testing.T) {
		s := base64.RawURLEncoding.EncodeToString([]byte(`{"type":"quick","q":"x"}`))
		got, err := Decode(s)
		require.NoError(t, err)
		q := got.(*model.QuickSearchRequest)
		assert.Equal(t, DefaultGeneralSettings(), q.Settings)
		assert.Equal(t, DefaultQuickSettings(), q.Quick)
	})

	t.Run("failures", func(t *testing.T) {
		_, err := Decode("")
		assert.ErrorIs(t, err, ErrNoQuery)

		_, err = Decode("!!not base64!!")
		assert.Error(t, err)

		_, err = Decode(base64.RawURLEncoding.EncodeToString([]byte("not json")))
		assert.Error(t, err)

		_, err = Decode(base64.RawURLEncoding.EncodeToString([]byte(`{"type":"fuzzy","q":"x"}`)))
		assert.ErrorIs(t, err, model.ErrUnknownSearchType)
	})
}

func TestCodecURL(t *testing.T) {
	base, err := url.Parse("https://tekst.example.org/search/results?lang=de")
	require.NoError(t, err)

	t.Run("link round trip resets pagination", func(t *testing.T) {
		rec := &notify.Recorder{}
		c := Codec{Notifier: rec}
		req := quickRequest()

		u := c.URLFor(base, req)
		assert.Equal(t, "de", u.Query().Get("lang"))
		assert.NotEmpty(t, u.Query().Get(QueryParam))
		assert.Empty(t, rec.All())

		got := c.FromURL(u).(*model.QuickSearchRequest)
		assert.Equal(t, model.Pagination{Page: 1, PageSize: 10}, got.Settings.Pagination)
		assert.Equal(t, "foo", got.Query)
		assert.True(t, got.Settings.Strict)
		assert.Equal(t, "AND", got.Quick.Op)

		want := quickRequest()
		want.Settings.Pagination = got.Settings.Pagination
		assert.Equal(t, want, got)

		// base is not modified
		assert.Equal(t, "lang=de", base.RawQuery)
	})

	t.Run("missing or broken q yields the default request", func(t *testing.T) {
		c := Codec{}
		assert.Equal(t, DefaultRequest(), c.FromURL(base))
		assert.Equal(t, DefaultRequest(), c.FromURL(nil))
		assert.Equal(t, DefaultRequest(), c.FromQuery(url.Values{QueryParam: {"%%%"}}))

		unknown := base64.RawURLEncoding.EncodeToString([]byte(`{"type":"fuzzy"}`))
		assert.Equal(t, DefaultRequest(), c.FromQuery(url.Values{QueryParam: {unknown}}))
	})

	t.Run("unencodable request notifies and omits q", func(t *testing.T) {
		rec := &notify.Recorder{}
		c := Codec{Notifier: rec}
		bad := advancedRequest()
		bad.Queries[0].TypeSpecific = json.RawMessage(`{broken`)

		withQ := *base
		withQ.RawQuery = "lang=de&q=stale"
		u := c.URLFor(&withQ, bad)
		assert.False(t, u.Query().Has(QueryParam))
		assert.Equal(t, "de", u.Query().Get("lang"))

		got := rec.All()
		require.Len(t, got, 1)
		assert.Equal(t, notify.Error, got[0].Level)
		assert.Equal(t, i18n.New().T("errors.unexpected", nil), got[0].Message)
	})
}
