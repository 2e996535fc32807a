package notify

import (
	"fmt"
	"strings"

	"github.com/gregdel/pushover"
	"github.com/sirupsen/logrus"

	"github.com/danpilch/idfmpal/internal/transit"
)

const (
	PriorityNormal = 0
	PriorityHigh   = 1
)

// Effects that warrant a high priority notification.
var severeEffects = map[string]bool{
	"NO_SERVICE":         true,
	"REDUCED_SERVICE":    true,
	"SIGNIFICANT_DELAYS": true,
}

const (
	periodLayout = "02/01 15:04"
	clockLayout  = "15:04"
)

type Notifier struct {
	app       *pushover.Pushover
	recipient *pushover.Recipient
	logger    *logrus.Logger
}

func NewNotifier(token, userKey string, logger *logrus.Logger) *Notifier {
	return &Notifier{
		app:       pushover.New(token),
		recipient: pushover.NewRecipient(userKey),
		logger:    logger,
	}
}

func (n *Notifier) Send(title, message string) error {
	return n.SendWithPriority(title, message, PriorityNormal)
}

func (n *Notifier) SendWithPriority(title, message string, priority int) error {
	msg := pushover.NewMessageWithTitle(message, title)
	msg.Priority = priority

	resp, err := n.app.SendMessage(msg, n.recipient)
	if err != nil {
		return fmt.Errorf("sending pushover notification: %w", err)
	}

	n.logger.WithFields(logrus.Fields{
		"title":      title,
		"status":     resp.Status,
		"request_id": resp.ID,
	}).Debug("notification sent")

	return nil
}

// SendDisruption notifies a line disruption.
func (n *Notifier) SendDisruption(line string, r transit.DisruptionReport) error {
	title, body, priority := FormatDisruption(line, r)
	return n.SendWithPriority(title, body, priority)
}

// SendInfo notifies a general message.
func (n *Notifier) SendInfo(line string, m transit.InfoMessage) error {
	title, body := FormatInfo(line, m)
	return n.Send(title, body)
}

// FormatDisruption renders a disruption as a notification title, body and priority.
func FormatDisruption(line string, r transit.DisruptionReport) (string, string, int) {
	title := fmt.Sprintf("%s: %s", line, r.Title)
	if r.Title == "" {
		title = fmt.Sprintf("%s: %s", line, r.Cause)
	}

	var b strings.Builder
	b.WriteString(r.Message)
	for _, p := range r.Periods {
		b.WriteString("\n")
		if p.End.IsZero() {
			fmt.Fprintf(&b, "From %s", p.Start.Format(periodLayout))
		} else {
			fmt.Fprintf(&b, "%s - %s", p.Start.Format(periodLayout), p.End.Format(periodLayout))
		}
	}

	priority := PriorityNormal
	if severeEffects[r.Effect] {
		priority = PriorityHigh
	}
	return title, b.String(), priority
}

// FormatInfo renders a general message as a notification title and body.
func FormatInfo(line string, m transit.InfoMessage) (string, string) {
	title := fmt.Sprintf("%s: %s", line, m.Title)
	body := m.Message
	if !m.End.IsZero() {
		body = fmt.Sprintf("%s\nUntil %s", body, m.End.Local().Format(periodLayout))
	}
	return title, body
}

// SendCancellation notifies a cancelled passage at a watched stop.
func (n *Notifier) SendCancellation(stop string, e transit.TrafficEvent) error {
	title, body := FormatPassage(stop, e)
	return n.SendWithPriority(title, body, PriorityHigh)
}

// SendDelay notifies a delayed passage at a watched stop.
func (n *Notifier) SendDelay(stop string, e transit.TrafficEvent) error {
	title, body := FormatPassage(stop, e)
	return n.Send(title, body)
}

// FormatPassage renders a passage at stop as a notification title and body.
func FormatPassage(stop string, e transit.TrafficEvent) (string, string) {
	title := fmt.Sprintf("%s %s: %s", e.LineID, e.Status, e.DestinationName)

	expected := "unknown"
	if !e.Scheduled.IsZero() {
		expected = e.Scheduled.Local().Format(clockLayout)
	}
	platform := e.Platform
	if platform == "" {
		platform = "TBC"
	}

	body := fmt.Sprintf("At %s\nExpected: %s\nPlatform: %s", stop, expected, platform)
	if e.Note != "" {
		body += "\nMission: " + e.Note
	}
	return title, body
}
