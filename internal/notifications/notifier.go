package notifications

import (
	"fmt"
	"strings"

	"github.com/containrrr/shoutrrr/pkg/router"
	"github.com/containrrr/shoutrrr/pkg/types"
	"github.com/sirupsen/logrus"

	"github.com/y0ug/hashscan/internal/models"
)

// maxListedFiles caps how many filenames one alert message spells out.
const maxListedFiles = 10

// Notifier handles sending notifications via Shoutrrr.
type Notifier struct {
	sr *router.ServiceRouter
}

// NewNotifier initializes a new Notifier with the provided Shoutrrr URLs.
func NewNotifier(urls []string) (*Notifier, error) {
	sr, err := router.New(nil, urls...)
	if err != nil {
		return nil, err
	}
	return &Notifier{sr: sr}, nil
}

// Send sends a notification message to all configured services.
func (n *Notifier) Send(title, message string) {
	params := types.Params{
		"title": title,
	}
	failed := 0
	for _, err := range n.sr.Send(message, &params) {
		if err != nil {
			failed++
			logrus.WithError(err).Error("Failed to send notification")
		}
	}
	if failed == 0 {
		logrus.Info("Notification sent successfully")
	}
}

// NotifyMismatches sends an integrity alert naming the records whose
// verification produced at least one mismatched digest. Does nothing
// when every record passed.
func (n *Notifier) NotifyMismatches(records []models.MatchedRecord) {
	message, ok := mismatchMessage(records)
	if !ok {
		return
	}
	n.Send("Integrity verification failed", message)
}

// mismatchMessage builds the alert body listing mismatched filenames,
// capped at maxListedFiles. Reports false when no record mismatched.
func mismatchMessage(records []models.MatchedRecord) (string, bool) {
	var names []string
	for _, record := range records {
		for _, state := range record.Matches {
			if state == models.MatchMismatched {
				names = append(names, record.Signature.Filename)
				break
			}
		}
	}
	if len(names) == 0 {
		return "", false
	}

	listed := names
	if len(listed) > maxListedFiles {
		listed = listed[:maxListedFiles]
	}
	message := fmt.Sprintf("%d file(s) failed digest verification: %s",
		len(names), strings.Join(listed, ", "))
	if len(names) > maxListedFiles {
		message += fmt.Sprintf(" (+%d more)", len(names)-maxListedFiles)
	}
	return message, true
}
