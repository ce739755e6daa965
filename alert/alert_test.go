package alert_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/irsalhamdi/traderfolio/alert"
	"github.com/irsalhamdi/traderfolio/api/background"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestAlertPostsToWebhook(t *testing.T) {
	got := make(chan alert.Message, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg alert.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decoding alert: %v", err)
		}
		got <- msg
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	log, hook := test.NewNullLogger()
	bg := background.New(log)
	n := alert.New(srv.URL, time.Second, bg, log)

	n.Alert(context.Background(), "payment signature mismatch", map[string]any{"order_id": "ord_1"})

	select {
	case msg := <-got:
		if msg.Subject != "payment signature mismatch" || msg.Fields["order_id"] != "ord_1" {
			t.Fatalf("unexpected alert %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert never reached the webhook")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := bg.Shutdown(ctx); err != nil {
		t.Fatalf("draining background tasks: %v", err)
	}

	entry := hook.Entries[0]
	if entry.Level != logrus.ErrorLevel || entry.Data["alert"] != true {
		t.Fatalf("expected an error log flagged as alert, got %v %v", entry.Level, entry.Data)
	}
}

func TestAlertWithoutWebhook(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := alert.New("", time.Second, nil, log)

	n.Alert(context.Background(), "payment signature mismatch", map[string]any{"order_id": "ord_1"})

	if len(hook.Entries) != 1 {
		t.Fatalf("expected the alert to be logged once, got %d entries", len(hook.Entries))
	}
	if hook.LastEntry().Data["order_id"] != "ord_1" {
		t.Fatalf("expected alert fields in the log, got %v", hook.LastEntry().Data)
	}
}

func TestAlertAfterShutdown(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	bg := background.New(log)
	if err := bg.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	alert.New(srv.URL, time.Second, bg, log).Alert(context.Background(), "late", nil)

	if called {
		t.Fatal("no alert should be posted once shutdown started")
	}
}
