package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStatusOrder(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		forward  bool
	}{
		{StatusWaiting, StatusRunning, true},
		{StatusWaiting, StatusDone, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusWaiting, false},
		{StatusDone, StatusRunning, false},
		{StatusDone, StatusFailed, false},
		{StatusFailed, StatusDone, false},
		{StatusWaiting, StatusWaiting, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.forward, tt.from.Precedes(tt.to), "%s -> %s", tt.from, tt.to)
	}

	assert.True(t, StatusWaiting.Active())
	assert.True(t, StatusRunning.Active())
	assert.False(t, StatusDone.Active())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusRunning.Terminal())
}

func TestTaskTypeIsExport(t *testing.T) {
	assert.True(t, TaskResourceExport.IsExport())
	assert.True(t, TaskSearchExport.IsExport())
	assert.False(t, TaskResourceImport.IsExport())
	assert.False(t, TaskIndexCreateUpdate.IsExport())
}

func TestTaskJSON(t *testing.T) {
	raw := `{
		"id": "t1",
		"type": "resource_export",
		"targetId": "res1",
		"userId": "u1",
		"pickupKey": "pk1",
		"status": "done",
		"startTime": "2024-05-01T10:00:00.123456",
		"endTime": "2024-05-01T10:00:05Z",
		"durationSeconds": 5.2,
		"result": {"filename": "export.json"},
		"error": null
	}`
	var task Task
	require.NoError(t, json.Unmarshal([]byte(raw), &task))
	require.NoError(t, task.Validate())

	assert.Equal(t, "res1", *task.TargetID)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC), task.Started())
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC), task.EndTime.Time)
	assert.Equal(t, "export.json", task.ResultString("filename"))
	assert.Empty(t, task.ResultString("missing"))
	assert.Nil(t, task.Error)

	out, err := json.Marshal(task)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"startTime":"2024-05-01T10:00:00.123456Z"`)
}

func TestTaskValidate(t *testing.T) {
	valid := Task{ID: "t1", Type: TaskSearchExport, PickupKey: "pk", Status: StatusWaiting}
	require.NoError(t, valid.Validate())

	for name, mutate := range map[string]func(*Task){
		"no id":          func(t *Task) { t.ID = "" },
		"no pickup key":  func(t *Task) { t.PickupKey = "" },
		"unknown type":   func(t *Task) { t.Type = "reindex" },
		"unknown status": func(t *Task) { t.Status = "paused" },
	} {
		t.Run(name, func(t *testing.T) {
			task := valid
			mutate(&task)
			assert.Error(t, task.Validate())
		})
	}

	var zero Task
	assert.True(t, zero.Started().IsZero())
}

func TestTimestampInvalid(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`42`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
}

func TestSearchRequestJSON(t *testing.T) {
	sort := SortRelevance
	quick := &QuickSearchRequest{
		Query:    "foo",
		Settings: GeneralSearchSettings{Pagination: Pagination{Page: 1, PageSize: 10}, Sort: &sort},
		Quick:    QuickSearchSettings{Op: "OR"},
	}
	data, err := json.Marshal(quick)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"quick","q":"foo","gen":{"pgn":{"pg":1,"pgs":10},"sort":"relevance","strict":false},"qck":{"op":"OR","re":false}}`,
		string(data))

	got, err := UnmarshalSearchRequest(data)
	require.NoError(t, err)
	assert.Equal(t, SearchQuick, got.SearchType())
	assert.Equal(t, quick, got)

	adv := &AdvancedSearchRequest{
		Queries: []ResourceSearchQuery{{
			Common:       CommonResourceQuery{ResourceID: "r1", Occurrence: OccurNot},
			TypeSpecific: json.RawMessage(`{"type":"plainText"}`),
		}},
	}
	data, err = json.Marshal(adv)
	require.NoError(t, err)
	got, err = UnmarshalSearchRequest(data)
	require.NoError(t, err)
	assert.Equal(t, SearchAdvanced, got.SearchType())

	_, err = UnmarshalSearchRequest([]byte(`{"type":"other"}`))
	assert.ErrorIs(t, err, ErrUnknownSearchType)
	_, err = UnmarshalSearchRequest([]byte(`[]`))
	assert.Error(t, err)
}

func TestCloneSearchRequest(t *testing.T) {
	sort := SortTextLevelPosition
	orig := &QuickSearchRequest{
		Query:    "foo",
		Settings: GeneralSearchSettings{Sort: &sort},
		Quick:    QuickSearchSettings{Texts: []string{"a"}},
	}
	c := CloneSearchRequest(orig).(*QuickSearchRequest)
	assert.Equal(t, orig, c)

	*c.Settings.Sort = SortRelevance
	c.Quick.Texts[0] = "b"
	c.General().Pagination.Page = 7
	assert.Equal(t, SortTextLevelPosition, *orig.Settings.Sort)
	assert.Equal(t, "a", orig.Quick.Texts[0])
	assert.Zero(t, orig.Settings.Pagination.Page)

	adv := &AdvancedSearchRequest{Queries: []ResourceSearchQuery{{TypeSpecific: json.RawMessage(`{}`)}}}
	ac := CloneSearchRequest(adv).(*AdvancedSearchRequest)
	ac.Queries[0].TypeSpecific[0] = '['
	assert.Equal(t, `{}`, string(adv.Queries[0].TypeSpecific))
}
