// Package alert notifies operators about payment events that need a human,
// such as a checkout result whose signature does not match its order.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/traderfolio/api/background"
	"github.com/sirupsen/logrus"
)

type Message struct {
	Subject string         `json:"subject"`
	Fields  map[string]any `json:"fields"`
	At      time.Time      `json:"at"`
}

// Notifier logs every alert and, when a webhook is configured, posts it there
// from a background task.
type Notifier struct {
	url    string
	client *http.Client
	bg     *background.Background
	log    logrus.FieldLogger
}

func New(url string, timeout time.Duration, bg *background.Background, log logrus.FieldLogger) *Notifier {
	return &Notifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		bg:     bg,
		log:    log,
	}
}

func (n *Notifier) Alert(ctx context.Context, subject string, fields map[string]any) {
	msg := Message{Subject: subject, Fields: fields, At: time.Now().UTC()}

	n.log.WithFields(logrus.Fields(fields)).WithField("alert", true).Error(subject)

	if n.url == "" || n.bg == nil {
		return
	}

	err := n.bg.Add(func() error {
		return n.post(context.Background(), msg)
	})
	if err != nil {
		n.log.WithField("message", err).Warn("alert not delivered")
	}
}

func (n *Notifier) post(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding alert: %w", err)
	}

	r, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("building alert request: %w", err)
	}
	r.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(r)
	if err != nil {
		return fmt.Errorf("posting alert %q: %w", msg.Subject, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("posting alert %q: webhook returned %s", msg.Subject, resp.Status)
	}
	return nil
}
