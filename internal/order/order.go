package order

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ismaiel54/fix-trading-engine/internal/fix"
)

// Status is an order's resting state
type Status int

const (
	StatusPending Status = iota
	StatusNew
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// OrdStatus maps the status to its tag 39 wire value
func (s Status) OrdStatus() fix.OrdStatus {
	switch s {
	case StatusNew:
		return fix.OrdStatusNew
	case StatusPartiallyFilled:
		return fix.OrdStatusPartiallyFilled
	case StatusFilled:
		return fix.OrdStatusFilled
	case StatusCanceled:
		return fix.OrdStatusCanceled
	case StatusRejected:
		return fix.OrdStatusRejected
	default:
		return fix.OrdStatusPendingNew
	}
}

// StatusFromOrdStatus maps a tag 39 wire value back to a status
func StatusFromOrdStatus(v fix.OrdStatus) Status {
	switch v {
	case fix.OrdStatusNew:
		return StatusNew
	case fix.OrdStatusPartiallyFilled:
		return StatusPartiallyFilled
	case fix.OrdStatusFilled:
		return StatusFilled
	case fix.OrdStatusCanceled:
		return StatusCanceled
	case fix.OrdStatusRejected:
		return StatusRejected
	default:
		return StatusPending
	}
}

// Order is one trading instruction and its execution state. All
// access goes through the methods; the internal mutex makes each
// order safe for the reader goroutine, the status handler and the
// fill simulator touching it at once.
type Order struct {
	mu         sync.Mutex
	orderID    string
	clOrdID    string
	symbol     string
	side       fix.Side
	ordType    fix.OrdType
	qty        decimal.Decimal
	price      decimal.Decimal
	cumQty     decimal.Decimal
	status     Status
	cancelFill context.CancelFunc
}

// Snapshot is a point-in-time copy of an order's state
type Snapshot struct {
	OrderID string
	ClOrdID string
	Symbol  string
	Side    fix.Side
	OrdType fix.OrdType
	Qty     decimal.Decimal
	Price   decimal.Decimal
	CumQty  decimal.Decimal
	Status  Status
}

// New creates an order in Pending state
func New(orderID, clOrdID, symbol string, side fix.Side, ordType fix.OrdType, qty, price decimal.Decimal) *Order {
	return &Order{
		orderID: orderID,
		clOrdID: clOrdID,
		symbol:  symbol,
		side:    side,
		ordType: ordType,
		qty:     qty,
		price:   price,
		cumQty:  decimal.Zero,
		status:  StatusPending,
	}
}

// Snapshot returns a consistent copy of the order's state
func (o *Order) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		OrderID: o.orderID,
		ClOrdID: o.clOrdID,
		Symbol:  o.symbol,
		Side:    o.side,
		OrdType: o.ordType,
		Qty:     o.qty,
		Price:   o.price,
		CumQty:  o.cumQty,
		Status:  o.status,
	}
}

// ClOrdID returns the current client order id (changes on replace)
func (o *Order) ClOrdID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clOrdID
}

// Status returns the current status
func (o *Order) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Ack moves a Pending order to New. Returns false if the order has
// already left Pending.
func (o *Order) Ack() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusPending {
		return false
	}
	o.status = StatusNew
	return true
}

// ApplyPartialFill adds qty to the cumulative fill and moves the
// order to PartiallyFilled. Refused once the order is canceled,
// rejected or filled, and never pushes CumQty past OrderQty.
func (o *Order) ApplyPartialFill(qty decimal.Decimal) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusNew && o.status != StatusPartiallyFilled {
		return false
	}
	next := o.cumQty.Add(qty)
	if next.GreaterThan(o.qty) {
		next = o.qty
	}
	o.cumQty = next
	if o.cumQty.Equal(o.qty) {
		o.status = StatusFilled
	} else {
		o.status = StatusPartiallyFilled
	}
	return true
}

// ApplyFullFill completes the order: CumQty becomes OrderQty and the
// status becomes Filled. Refused on canceled or rejected orders.
func (o *Order) ApplyFullFill() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status != StatusNew && o.status != StatusPartiallyFilled {
		return false
	}
	o.cumQty = o.qty
	o.status = StatusFilled
	return true
}

// Cancel moves the order to Canceled and signals its fill simulator.
// Refused if the order is already Filled, Canceled or Rejected.
func (o *Order) Cancel() bool {
	o.mu.Lock()
	if o.status == StatusFilled || o.status == StatusCanceled || o.status == StatusRejected {
		o.mu.Unlock()
		return false
	}
	o.status = StatusCanceled
	cancel := o.cancelFill
	o.cancelFill = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// Replace overwrites quantity and price under a new client order id,
// keeping the cumulative fill, and resets the status to New. The old
// fill simulator is signaled so a fresh one can take over. Refused on
// filled, canceled or rejected orders, or when the new quantity does
// not exceed what has already filled.
func (o *Order) Replace(newClOrdID string, qty, price decimal.Decimal) bool {
	o.mu.Lock()
	if o.status == StatusFilled || o.status == StatusCanceled || o.status == StatusRejected {
		o.mu.Unlock()
		return false
	}
	if qty.LessThanOrEqual(o.cumQty) {
		o.mu.Unlock()
		return false
	}
	o.clOrdID = newClOrdID
	o.qty = qty
	o.price = price
	o.status = StatusNew
	cancel := o.cancelFill
	o.cancelFill = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// SetFillCancel registers the cancel function of the order's fill
// simulator so Cancel and Replace can signal it directly.
func (o *Order) SetFillCancel(cancel context.CancelFunc) {
	o.mu.Lock()
	o.cancelFill = cancel
	o.mu.Unlock()
}

// UpdateFromReport overwrites status and cumulative fill from an
// execution report. Used only on the client-side mirror.
func (o *Order) UpdateFromReport(status Status, cumQty decimal.Decimal) {
	o.mu.Lock()
	o.status = status
	o.cumQty = cumQty
	o.mu.Unlock()
}

// UpdateTerms overwrites the mirror's client order id, quantity and
// price after a Replaced report.
func (o *Order) UpdateTerms(clOrdID string, qty, price decimal.Decimal) {
	o.mu.Lock()
	o.clOrdID = clOrdID
	o.qty = qty
	o.price = price
	o.mu.Unlock()
}
