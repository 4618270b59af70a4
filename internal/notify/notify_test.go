package notify

import (
	"errors"
	"strings"
	"testing"

	slackapi "github.com/slack-go/slack"

	"github.com/quantaleap/meshbench/internal/config"
)

type mockSlackClient struct {
	posted  []string
	postErr error
}

func (m *mockSlackClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.posted = append(m.posted, channelID)
	return channelID, "ts", m.postErr
}

func TestNewDisabledWithoutToken(t *testing.T) {
	if n := New(config.SlackConfig{Channel: "#runs"}); n != nil {
		t.Error("notifier must be nil without a token")
	}
	if n := New(config.SlackConfig{Token: "xoxb-x"}); n != nil {
		t.Error("notifier must be nil without a channel")
	}
}

func TestNilNotifierIgnoresSends(t *testing.T) {
	var n *Notifier
	// Must not panic.
	n.BatchCreated("r1", 1, 2, nil)
	n.ConsolidateDone("r1", nil, 0, 0)
}

func TestBatchCreatedPosts(t *testing.T) {
	mock := &mockSlackClient{}
	n := &Notifier{client: mock, channel: "#runs"}

	n.BatchCreated("r1", 3, 5, map[string]int{"already_completed": 2})
	if len(mock.posted) != 1 || mock.posted[0] != "#runs" {
		t.Fatalf("posted = %v, want one message to #runs", mock.posted)
	}
}

func TestPostErrorIsSwallowed(t *testing.T) {
	mock := &mockSlackClient{postErr: errors.New("rate limited")}
	n := &Notifier{client: mock, channel: "#runs"}

	// Must not panic or propagate.
	n.ConsolidateDone("r1", map[string]int{"completed": 4}, 1, 0)
	if len(mock.posted) != 1 {
		t.Fatalf("posted = %d, want the attempt recorded", len(mock.posted))
	}
}

func TestFormatCountsStableOrder(t *testing.T) {
	got := formatCounts(map[string]int{"failed": 1, "completed": 4, "enqueued": 2})
	want := "completed=4 enqueued=2 failed=1"
	if got != want {
		t.Errorf("formatCounts = %q, want %q", got, want)
	}
	if strings.Contains(got, ",") {
		t.Errorf("formatCounts = %q, want space-separated", got)
	}
}
