// Package notify posts run summaries to Slack. Delivery is best-effort:
// a missing token disables the notifier and API failures are logged,
// never propagated, so notification problems cannot fail a batch or a
// consolidation.
package notify

import (
	"fmt"
	"log"
	"sort"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/quantaleap/meshbench/internal/config"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier delivers formatted messages to one Slack channel.
type Notifier struct {
	client  slackClient
	channel string
}

// New builds a Notifier from config. Returns nil when Slack is not
// configured; a nil Notifier ignores all sends.
func New(cfg config.SlackConfig) *Notifier {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Notifier{
		client:  slackapi.New(cfg.Token),
		channel: cfg.Channel,
	}
}

// BatchCreated announces a finished batch build.
func (n *Notifier) BatchCreated(runID string, enqueued, considered int, skipped map[string]int) {
	if n == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, ":package: run `%s`: enqueued %d of %d items", runID, enqueued, considered)
	if len(skipped) > 0 {
		b.WriteString(" (skipped ")
		b.WriteString(formatCounts(skipped))
		b.WriteString(")")
	}
	n.post(b.String())
}

// SessionDone announces a finished worker session.
func (n *Notifier) SessionDone(runID, workerID string, processed, completed, failed int) {
	if n == nil {
		return
	}
	n.post(fmt.Sprintf(":hammer: run `%s` worker %s: %d processed, %d completed, %d failed",
		runID, workerID, processed, completed, failed))
}

// ConsolidateDone announces a consolidation pass and its repairs.
func (n *Notifier) ConsolidateDone(runID string, after map[string]int, conflicts, downgraded int) {
	if n == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, ":broom: run `%s` consolidated: %s", runID, formatCounts(after))
	if conflicts > 0 {
		fmt.Fprintf(&b, ", %d duplicate(s) merged", conflicts)
	}
	if downgraded > 0 {
		fmt.Fprintf(&b, ", %d downgraded", downgraded)
	}
	n.post(b.String())
}

func (n *Notifier) post(text string) {
	_, _, err := n.client.PostMessage(n.channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		log.Printf("notify: slack post failed: %v", err)
	}
}

// formatCounts renders a status histogram in stable key order.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}
