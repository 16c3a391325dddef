// Package notify renders study-session status messages as Slack Block Kit
// payloads and sends them to the configured Slack channel.
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// TimeLayout is the display format used for session start times.
const TimeLayout = "2006/01/02 15:04:05"

// Fallback texts shown in notifications and clients without block support.
const (
	StartedText  = "Started learning 🎉"
	UpdatedText  = "Updated learning 👥"
	FinishedText = "Finished learning ✨"
)

// Payload is a renderable Slack message.
type Payload struct {
	Text   string
	Blocks []slack.Block
}

// Started renders the first message of a session.
func Started(at time.Time, member string) Payload {
	return Payload{
		Text: StartedText,
		Blocks: []slack.Block{
			header(StartedText),
			field("Started at", at.Format(TimeLayout)),
			field("Members", member),
		},
	}
}

// Updated renders the running state of a session.
func Updated(startedAt time.Time, members []string) Payload {
	return Payload{
		Text: UpdatedText,
		Blocks: []slack.Block{
			header(UpdatedText),
			field("Started at", startedAt.Format(TimeLayout)),
			field(fmt.Sprintf("Members (%d)", len(members)), memberList(members)),
		},
	}
}

// Finished renders the closing message of a session.
func Finished(startedAt time.Time, members []string, elapsed time.Duration) Payload {
	return Payload{
		Text: FinishedText,
		Blocks: []slack.Block{
			header(FinishedText),
			field("Started at", startedAt.Format(TimeLayout)),
			field("Members", memberList(members)),
			field("Duration", FormatElapsed(elapsed)),
		},
	}
}

// FormatElapsed renders d as "1h02m03s", or "2m03s" under an hour. Negative
// durations are clamped to zero.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func header(text string) slack.Block {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, text, true, false))
}

func field(label, value string) slack.Block {
	return slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*%s*\n%s", label, value), false, false),
		nil, nil,
	)
}

func memberList(members []string) string {
	if len(members) == 0 {
		return "-"
	}
	return strings.Join(members, ", ")
}
