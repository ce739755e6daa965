package checkout

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/traderfolio/client"
	"github.com/irsalhamdi/traderfolio/client/errclass"
	"github.com/sirupsen/logrus"
)

type countingLoader struct {
	calls   atomic.Int32
	release chan struct{}

	mu   sync.Mutex
	errs []error
}

func (l *countingLoader) CheckoutConfig(ctx context.Context, gateway string) (client.CheckoutConfig, error) {
	l.calls.Add(1)
	if l.release != nil {
		<-l.release
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]
		if err != nil {
			return client.CheckoutConfig{}, err
		}
	}

	return client.CheckoutConfig{Gateway: gateway, Key: "rzp_test_key", ScriptURL: "https://checkout.example/v1.js"}, nil
}

// scriptedWidget answers every Open with the callback picked by act.
type scriptedWidget struct {
	act func(opts Options, cb Callbacks)

	mu     sync.Mutex
	opened []Options
}

func (w *scriptedWidget) Open(ctx context.Context, opts Options, cb Callbacks) error {
	w.mu.Lock()
	w.opened = append(w.opened, opts)
	w.mu.Unlock()

	go w.act(opts, cb)
	return nil
}

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testOrder() client.Order {
	return client.Order{
		OrderID:        "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		Gateway:        "razorpay",
		GatewayOrderID: "order_9A33XWu170gUtm",
		ItemType:       "course",
		ItemID:         7,
		Amount:         499900,
		Currency:       "INR",
		Status:         "pending",
		ReceiptNo:      "rcpt_abc",
	}
}

type outcomes struct {
	results chan Result
	errs    chan errclass.ProcessedError
}

func newOutcomes() outcomes {
	return outcomes{results: make(chan Result, 4), errs: make(chan errclass.ProcessedError, 4)}
}

func (o outcomes) wait(t *testing.T) (*Result, *errclass.ProcessedError) {
	t.Helper()
	select {
	case r := <-o.results:
		return &r, nil
	case p := <-o.errs:
		return nil, &p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for checkout outcome")
	}
	return nil, nil
}

func TestOpenCheckoutSuccess(t *testing.T) {
	loader := &countingLoader{}
	widget := &scriptedWidget{act: func(opts Options, cb Callbacks) {
		cb.OnSuccess(Result{PaymentID: "pay_29QQoUBi66xm2f", Signature: "sig"})
		cb.OnDismiss()
	}}

	orch := NewOrchestrator(loader, widget, errclass.New(quietLog()), "Traderfolio", quietLog())

	out := newOutcomes()
	ord := testOrder()
	orch.OpenCheckout(context.Background(), ord, Purchaser{Name: "Asha Rao", Email: "asha@example.com"},
		func(r Result) { out.results <- r },
		func(p errclass.ProcessedError) { out.errs <- p },
	)

	res, perr := out.wait(t)
	if perr != nil {
		t.Fatalf("expected success, got %s", perr.Code)
	}

	want := Result{
		OrderID:        ord.OrderID,
		GatewayOrderID: ord.GatewayOrderID,
		PaymentID:      "pay_29QQoUBi66xm2f",
		Signature:      "sig",
	}
	if diff := cmp.Diff(want, *res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	// The late dismiss must not produce a second outcome.
	select {
	case p := <-out.errs:
		t.Fatalf("unexpected second outcome %s", p.Code)
	case <-time.After(50 * time.Millisecond):
	}

	widget.mu.Lock()
	opts := widget.opened[0]
	widget.mu.Unlock()

	if opts.Key != "rzp_test_key" || opts.Amount != 499900 || opts.Currency != "INR" {
		t.Fatalf("unexpected widget options %+v", opts)
	}
	if opts.Prefill.Email != "asha@example.com" || opts.Name != "Traderfolio" {
		t.Fatalf("unexpected prefill %+v", opts)
	}
}

func TestOpenCheckoutDismiss(t *testing.T) {
	widget := &scriptedWidget{act: func(opts Options, cb Callbacks) { cb.OnDismiss() }}
	orch := NewOrchestrator(&countingLoader{}, widget, errclass.New(quietLog()), "Traderfolio", quietLog())

	out := newOutcomes()
	orch.OpenCheckout(context.Background(), testOrder(), Purchaser{},
		func(r Result) { out.results <- r },
		func(p errclass.ProcessedError) { out.errs <- p },
	)

	_, perr := out.wait(t)
	if perr == nil {
		t.Fatal("expected an error outcome")
	}
	if perr.Code != "PAYMENT_CANCELLED" || perr.Severity != errclass.Low {
		t.Fatalf("expected low PAYMENT_CANCELLED, got %s/%s", perr.Code, perr.Severity)
	}
}

func TestOpenCheckoutGatewayFailure(t *testing.T) {
	widget := &scriptedWidget{act: func(opts Options, cb Callbacks) {
		cb.OnFailure(&errclass.GatewayError{Code: "BAD_REQUEST_ERROR", Description: "Payment failed", Reason: "payment_failed"})
	}}
	orch := NewOrchestrator(&countingLoader{}, widget, errclass.New(quietLog()), "Traderfolio", quietLog())

	out := newOutcomes()
	orch.OpenCheckout(context.Background(), testOrder(), Purchaser{},
		func(r Result) { out.results <- r },
		func(p errclass.ProcessedError) { out.errs <- p },
	)

	_, perr := out.wait(t)
	if perr == nil || perr.Code != "PAYMENT_METHOD_INVALID" {
		t.Fatalf("expected PAYMENT_METHOD_INVALID, got %+v", perr)
	}
	if perr.Context.OrderID != testOrder().OrderID {
		t.Fatalf("expected order id in context, got %+v", perr.Context)
	}
}

func TestLoadOnceUnderConcurrency(t *testing.T) {
	loader := &countingLoader{release: make(chan struct{})}
	orch := NewOrchestrator(loader, nil, errclass.New(quietLog()), "Traderfolio", quietLog())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cfg, err := orch.Load(context.Background(), "razorpay")
			if err == nil && cfg.Key != "rzp_test_key" {
				err = errors.New("wrong key " + cfg.Key)
			}
			errs <- err
		}()
	}

	// Give every caller a chance to join the in-flight load.
	time.Sleep(50 * time.Millisecond)
	close(loader.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
	}

	if _, err := orch.Load(context.Background(), "razorpay"); err != nil {
		t.Fatalf("cached load failed: %v", err)
	}

	if got := loader.calls.Load(); got != 1 {
		t.Fatalf("expected a single configuration request, got %d", got)
	}
}

func TestLoadFailureIsRetried(t *testing.T) {
	loader := &countingLoader{errs: []error{&errclass.NetworkError{Method: "GET", URL: "/checkout/config", StatusCode: 503}}}
	orch := NewOrchestrator(loader, nil, errclass.New(quietLog()), "Traderfolio", quietLog())

	if _, err := orch.Load(context.Background(), "razorpay"); err == nil {
		t.Fatal("expected first load to fail")
	}
	if _, err := orch.Load(context.Background(), "razorpay"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got := loader.calls.Load(); got != 2 {
		t.Fatalf("expected two configuration requests, got %d", got)
	}
}

func TestOpenCheckoutLoadFailure(t *testing.T) {
	loader := &countingLoader{errs: []error{&errclass.NetworkError{Method: "GET", URL: "/checkout/config"}}}
	widget := &scriptedWidget{act: func(opts Options, cb Callbacks) { cb.OnSuccess(Result{}) }}
	orch := NewOrchestrator(loader, widget, errclass.New(quietLog()), "Traderfolio", quietLog())

	out := newOutcomes()
	orch.OpenCheckout(context.Background(), testOrder(), Purchaser{},
		func(r Result) { out.results <- r },
		func(p errclass.ProcessedError) { out.errs <- p },
	)

	_, perr := out.wait(t)
	if perr == nil || perr.Code != "NETWORK_ERROR" {
		t.Fatalf("expected NETWORK_ERROR, got %+v", perr)
	}
	if perr.Context.Operation != errclass.OpLoad {
		t.Fatalf("expected load operation, got %q", perr.Context.Operation)
	}

	widget.mu.Lock()
	defer widget.mu.Unlock()
	if len(widget.opened) != 0 {
		t.Fatal("widget must not open without configuration")
	}
}
