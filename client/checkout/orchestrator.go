// Package checkout drives the hosted payment widget: it loads the gateway
// configuration once, opens the widget for an order and turns the widget's
// callbacks into a single success or error outcome.
package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/irsalhamdi/traderfolio/client"
	"github.com/irsalhamdi/traderfolio/client/errclass"
	"github.com/sirupsen/logrus"
)

type Prefill struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact,omitempty"`
}

// Options is what the widget needs to open a checkout.
type Options struct {
	Gateway        string            `json:"gateway"`
	Key            string            `json:"key"`
	ScriptURL      string            `json:"-"`
	OrderID        string            `json:"-"`
	GatewayOrderID string            `json:"order_id"`
	CheckoutToken  string            `json:"client_secret,omitempty"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Prefill        Prefill           `json:"prefill"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// Result is the raw payment triple reported by the widget. It is not trusted
// until the server has verified it.
type Result struct {
	OrderID        string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type Callbacks struct {
	OnSuccess func(Result)
	OnFailure func(*errclass.GatewayError)
	OnDismiss func()
}

// Widget is the hosted checkout UI. Open returns once the widget is shown;
// the outcome arrives through exactly one of the callbacks.
type Widget interface {
	Open(ctx context.Context, opts Options, cb Callbacks) error
}

type ConfigLoader interface {
	CheckoutConfig(ctx context.Context, gateway string) (client.CheckoutConfig, error)
}

type Purchaser struct {
	Name  string
	Email string
	Phone string
}

type loadCall struct {
	done chan struct{}
	cfg  client.CheckoutConfig
	err  error
}

type Orchestrator struct {
	loader     ConfigLoader
	widget     Widget
	classifier *errclass.Classifier
	merchant   string
	log        logrus.FieldLogger

	mu       sync.Mutex
	loaded   map[string]client.CheckoutConfig
	inflight map[string]*loadCall
}

func NewOrchestrator(loader ConfigLoader, widget Widget, classifier *errclass.Classifier, merchant string, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		loader:     loader,
		widget:     widget,
		classifier: classifier,
		merchant:   merchant,
		log:        log,
		loaded:     make(map[string]client.CheckoutConfig),
		inflight:   make(map[string]*loadCall),
	}
}

// Load fetches the configuration of a gateway once. Concurrent callers share
// the in-flight request; failures are not cached so a later call retries.
func (o *Orchestrator) Load(ctx context.Context, gateway string) (client.CheckoutConfig, error) {
	o.mu.Lock()
	if cfg, ok := o.loaded[gateway]; ok {
		o.mu.Unlock()
		return cfg, nil
	}

	call, ok := o.inflight[gateway]
	if !ok {
		call = &loadCall{done: make(chan struct{})}
		o.inflight[gateway] = call
		go o.load(gateway, call)
	}
	o.mu.Unlock()

	select {
	case <-call.done:
		return call.cfg, call.err
	case <-ctx.Done():
		return client.CheckoutConfig{}, ctx.Err()
	}
}

// load runs detached from any single caller so that one caller giving up
// does not fail the others.
func (o *Orchestrator) load(gateway string, call *loadCall) {
	cfg, err := o.loader.CheckoutConfig(context.Background(), gateway)
	if err == nil && gateway != "" && cfg.Gateway != gateway {
		err = fmt.Errorf("asked for gateway %q, got %q", gateway, cfg.Gateway)
	}

	o.mu.Lock()
	call.cfg, call.err = cfg, err
	if err == nil {
		o.loaded[gateway] = cfg
	}
	delete(o.inflight, gateway)
	o.mu.Unlock()

	close(call.done)
}

// OpenCheckout opens the widget for ord and returns immediately. Exactly one
// of onSuccess and onError is called later. Dismissing the widget reports a
// cancelled error.
func (o *Orchestrator) OpenCheckout(ctx context.Context, ord client.Order, p Purchaser, onSuccess func(Result), onError func(errclass.ProcessedError)) {
	var once sync.Once
	ectx := errclass.Context{Operation: errclass.OpCheckout, OrderID: ord.OrderID, ItemType: ord.ItemType}

	fail := func(err error, op string) {
		once.Do(func() {
			c := ectx
			c.Operation = op
			onError(o.classifier.Classify(err, c))
		})
	}

	cb := Callbacks{
		OnSuccess: func(r Result) {
			once.Do(func() {
				r.OrderID = ord.OrderID
				if r.GatewayOrderID == "" {
					r.GatewayOrderID = ord.GatewayOrderID
				}
				onSuccess(r)
			})
		},
		OnFailure: func(gerr *errclass.GatewayError) {
			fail(gerr, errclass.OpCheckout)
		},
		OnDismiss: func() {
			fail(errclass.ErrCancelled, errclass.OpCheckout)
		},
	}

	go func() {
		cfg, err := o.Load(ctx, ord.Gateway)
		if err != nil {
			fail(err, errclass.OpLoad)
			return
		}

		opts := o.options(cfg, ord, p)

		o.log.WithFields(logrus.Fields{
			"order_id":         ord.OrderID,
			"gateway":          opts.Gateway,
			"gateway_order_id": opts.GatewayOrderID,
		}).Info("opening checkout")

		if err := o.widget.Open(ctx, opts, cb); err != nil {
			fail(err, errclass.OpCheckout)
		}
	}()
}

func (o *Orchestrator) options(cfg client.CheckoutConfig, ord client.Order, p Purchaser) Options {
	return Options{
		Gateway:        cfg.Gateway,
		Key:            cfg.Key,
		ScriptURL:      cfg.ScriptURL,
		OrderID:        ord.OrderID,
		GatewayOrderID: ord.GatewayOrderID,
		CheckoutToken:  ord.CheckoutToken,
		Amount:         ord.Amount,
		Currency:       ord.Currency,
		Name:           o.merchant,
		Description:    fmt.Sprintf("%s #%d", ord.ItemType, ord.ItemID),
		Prefill: Prefill{
			Name:    p.Name,
			Email:   p.Email,
			Contact: p.Phone,
		},
		Notes: map[string]string{
			"order_id":   ord.OrderID,
			"receipt_no": ord.ReceiptNo,
		},
	}
}
