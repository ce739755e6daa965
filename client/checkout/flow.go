package checkout

import (
	"context"
	"errors"

	"github.com/irsalhamdi/traderfolio/client"
	"github.com/irsalhamdi/traderfolio/client/errclass"
	"github.com/irsalhamdi/traderfolio/client/validation"
)

type API interface {
	CreateOrder(ctx context.Context, req client.OrderRequest) (client.Order, error)
	Verify(ctx context.Context, orderID, paymentID, signature string) (client.Confirmation, error)
}

// Form is a checkout submission: the item being bought and the buyer's
// answers.
type Form struct {
	ItemID  int64
	Gateway string
	validation.Form
}

func (f Form) extra() map[string]string {
	extra := map[string]string{}
	if f.ExperienceLevel != "" {
		extra["experience_level"] = f.ExperienceLevel
	}
	if f.ContactMethod != "" {
		extra["contact_method"] = f.ContactMethod
	}
	if f.Message != "" {
		extra["message"] = f.Message
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// Flow runs a purchase from form submission to verified receipt.
type Flow struct {
	api        API
	orch       *Orchestrator
	validator  *validation.Validator
	classifier *errclass.Classifier
}

func NewFlow(api API, orch *Orchestrator, validator *validation.Validator, classifier *errclass.Classifier) *Flow {
	return &Flow{
		api:        api,
		orch:       orch,
		validator:  validator,
		classifier: classifier,
	}
}

type outcome struct {
	res Result
	err *errclass.ProcessedError
}

// Purchase blocks until the buyer has paid and the server has verified the
// payment. Every failure is returned as an errclass.ProcessedError.
func (f *Flow) Purchase(ctx context.Context, form Form) (client.Receipt, error) {
	ectx := errclass.Context{Operation: errclass.OpValidate, ItemType: form.ItemType}

	if res := f.validator.ValidatePaymentContext(form.Form); !res.Valid {
		return client.Receipt{}, f.classifier.Classify(res.Err(), ectx)
	}

	ectx.Operation = errclass.OpCreateOrder
	ord, err := f.api.CreateOrder(ctx, client.OrderRequest{
		ItemID:   form.ItemID,
		ItemType: form.ItemType,
		Email:    form.Email,
		Name:     form.UserName,
		Phone:    form.Phone,
		Extra:    form.extra(),
		Gateway:  form.Gateway,
	})
	if err != nil {
		return client.Receipt{}, f.classifier.Classify(err, ectx)
	}
	ectx.OrderID = ord.OrderID

	done := make(chan outcome, 1)
	f.orch.OpenCheckout(ctx, ord,
		Purchaser{Name: form.UserName, Email: form.Email, Phone: form.Phone},
		func(r Result) { done <- outcome{res: r} },
		func(p errclass.ProcessedError) { done <- outcome{err: &p} },
	)

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		ectx.Operation = errclass.OpCheckout
		return client.Receipt{}, f.classifier.Classify(ctx.Err(), ectx)
	}
	if out.err != nil {
		return client.Receipt{}, *out.err
	}

	ectx.Operation = errclass.OpVerify
	conf, err := f.api.Verify(ctx, ord.OrderID, out.res.PaymentID, out.res.Signature)
	if err != nil {
		return client.Receipt{}, f.classifier.Classify(err, ectx)
	}

	if conf.Receipt == nil {
		return client.Receipt{}, f.classifier.Classify(errors.New("verified order without receipt"), ectx)
	}

	return *conf.Receipt, nil
}
