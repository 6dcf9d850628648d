package notifications

import (
	"bytes"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/stretchr/testify/assert"

	"github.com/dnguyen/buswatch/internal/model"
)

func sampleNotification(read bool) model.Notification {
	n := model.Notification{
		ID:        "n1",
		Recipient: "u1",
		Type:      model.NotificationDelay,
		Title:     "Route 42 running late",
		Message:   "Expect a 10 minute delay",
		Priority:  model.PriorityHigh,
		Read:      read,
		CreatedAt: time.Now().Add(-5 * time.Minute),
	}
	if read {
		at := time.Now()
		n.ReadAt = &at
	}
	return n
}

func renderItem(t *testing.T, n model.Notification) string {
	t.Helper()
	d := ItemDelegate{}
	lm := list.New([]list.Item{NotificationItem{Notification: n}}, d, 80, 10)
	var buf bytes.Buffer
	d.Render(&buf, lm, 0, NotificationItem{Notification: n})
	return buf.String()
}

func TestRenderMarksUnreadWithDot(t *testing.T) {
	out := renderItem(t, sampleNotification(false))
	assert.Contains(t, out, "●")
	assert.Contains(t, out, "Route 42 running late")
}

func TestRenderOmitsDotWhenRead(t *testing.T) {
	out := renderItem(t, sampleNotification(true))
	assert.NotContains(t, out, "●")
	assert.Contains(t, out, "Route 42 running late")
}

func TestDescriptionJoinsTypePriorityAndAge(t *testing.T) {
	item := NotificationItem{Notification: sampleNotification(false)}
	assert.Equal(t, "delay | high | 5m ago", item.Description())
}
