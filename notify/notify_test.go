package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecorderDrain(t *testing.T) {
	var r Recorder
	r.Notify(Notification{Level: Success, Message: "a"})
	r.Notify(Notification{Level: Error, Message: "b", Detail: "why"})

	assert.Len(t, r.All(), 2)
	got := r.Drain()
	assert.Equal(t, "b", got[1].Message)
	assert.Empty(t, r.All())
}

func TestMultiAndLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	var r Recorder

	Multi{&r, LogNotifier{Logger: logger}}.Notify(Notification{Level: Error, Message: "export failed", Detail: "disk full"})

	assert.Len(t, r.All(), 1)
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "export failed")
	assert.Contains(t, buf.String(), "detail=\"disk full\"")
}
