package order

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/traderfolio/core/item"
	"github.com/irsalhamdi/traderfolio/gateway"
)

type Status string

const (
	Pending   Status = "pending"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// CanTransition reports whether an order may move from s to next. Orders
// only ever leave pending.
func (s Status) CanTransition(next Status) bool {
	return s == Pending && (next == Completed || next == Failed)
}

var (
	ErrItemNotFound       = item.ErrNotFound
	ErrSoldOut            = item.ErrSoldOut
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderFailed        = errors.New("order already failed")
	ErrPaymentMismatch    = errors.New("order completed with a different payment")
	ErrVerificationFailed = errors.New("payment verification failed")
)

// VerificationError is returned when a payment could not be confirmed. It
// matches ErrVerificationFailed and unwraps to the reason.
type VerificationError struct {
	OrderID string
	Status  Status
	Reason  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verifying order[%s]: %v", e.OrderID, e.Reason)
}

func (e *VerificationError) Unwrap() error { return e.Reason }

func (e *VerificationError) Is(target error) bool { return target == ErrVerificationFailed }

// Extra holds the free-form form fields sent along with an order, such as a
// workshop experience level or a booking message.
type Extra map[string]string

func (e Extra) Value() (driver.Value, error) {
	if e == nil {
		return "{}", nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *Extra) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*e = Extra{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into order extra", src)
	}
	return json.Unmarshal(b, e)
}

type Order struct {
	ID               string     `json:"order_id" db:"order_id"`
	Gateway          string     `json:"gateway" db:"gateway"`
	GatewayOrderID   string     `json:"gateway_order_id" db:"gateway_order_id"`
	ItemType         item.Type  `json:"item_type" db:"item_type"`
	ItemID           int64      `json:"item_id" db:"item_id"`
	Email            string     `json:"email" db:"email"`
	Name             string     `json:"name,omitempty" db:"name"`
	Phone            string     `json:"phone,omitempty" db:"phone"`
	Extra            Extra      `json:"extra,omitempty" db:"extra"`
	Amount           int64      `json:"amount" db:"amount"`
	Currency         string     `json:"currency" db:"currency"`
	Status           Status     `json:"status" db:"status"`
	ReceiptNo        string     `json:"receipt_no" db:"receipt_no"`
	GatewayPaymentID *string    `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	// CheckoutToken is only known right after creation and never stored.
	CheckoutToken string `json:"checkout_token,omitempty" db:"-"`
}

type OrderNew struct {
	ItemID   int64             `json:"item_id" validate:"required,gt=0"`
	ItemType item.Type         `json:"item_type" validate:"required,oneof=course workshop service"`
	Email    string            `json:"email" validate:"required,email,max=254"`
	Name     string            `json:"name" validate:"omitempty,max=120"`
	Phone    string            `json:"phone" validate:"omitempty,max=20"`
	Extra    map[string]string `json:"extra" validate:"omitempty,max=10,dive,max=1000"`
	Gateway  string            `json:"gateway" validate:"omitempty,oneof=razorpay stripe paypal"`

	// Price is accepted for compatibility with older forms and ignored: the
	// catalog price is the only one ever charged.
	Price *int64 `json:"price,omitempty"`
}

type VerifyNew struct {
	PaymentID string `json:"gateway_payment_id" validate:"required,max=255"`
	Signature string `json:"gateway_signature" validate:"omitempty,max=512"`
}

type Receipt struct {
	ReceiptNo      string    `json:"receipt_no"`
	OrderID        string    `json:"order_id"`
	Gateway        string    `json:"gateway"`
	GatewayOrderID string    `json:"gateway_order_id"`
	PaymentID      string    `json:"gateway_payment_id"`
	ItemType       item.Type `json:"item_type"`
	ItemID         int64     `json:"item_id"`
	Email          string    `json:"email"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	Display        string    `json:"display"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Receipt returns the receipt of a completed order.
func (o Order) Receipt() (Receipt, bool) {
	if o.Status != Completed || o.GatewayPaymentID == nil || o.CompletedAt == nil {
		return Receipt{}, false
	}

	return Receipt{
		ReceiptNo:      o.ReceiptNo,
		OrderID:        o.ID,
		Gateway:        o.Gateway,
		GatewayOrderID: o.GatewayOrderID,
		PaymentID:      *o.GatewayPaymentID,
		ItemType:       o.ItemType,
		ItemID:         o.ItemID,
		Email:          o.Email,
		Amount:         o.Amount,
		Currency:       o.Currency,
		Display:        gateway.MajorUnits(o.Amount) + " " + o.Currency,
		CompletedAt:    o.CompletedAt.UTC(),
	}, true
}

// View is the public status of an order. It carries no buyer or payment
// details since anyone holding the order id can read it.
type View struct {
	ID        string `json:"order_id"`
	Status    Status `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	ReceiptNo string `json:"receipt_no,omitempty"`
}

func (o Order) View() View {
	v := View{ID: o.ID, Status: o.Status, Amount: o.Amount, Currency: o.Currency}
	if o.Status == Completed {
		v.ReceiptNo = o.ReceiptNo
	}
	return v
}

type Confirmation struct {
	Status  Status   `json:"status"`
	Receipt *Receipt `json:"receipt,omitempty"`
}

type StatusUp struct {
	ID          string     `db:"order_id"`
	Status      Status     `db:"status"`
	PaymentID   *string    `db:"gateway_payment_id"`
	CompletedAt *time.Time `db:"completed_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
