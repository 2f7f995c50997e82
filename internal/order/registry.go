package order

import "sync"

// Registry is a concurrent order store keyed by client order id. The
// server holds one authoritative registry shared across all sessions
// and fill simulators; each client holds its own private mirror.
type Registry struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{orders: make(map[string]*Order)}
}

// Put stores an order under its client order id
func (r *Registry) Put(clOrdID string, o *Order) {
	r.mu.Lock()
	r.orders[clOrdID] = o
	r.mu.Unlock()
}

// Get looks up an order by client order id
func (r *Registry) Get(clOrdID string) (*Order, bool) {
	r.mu.RLock()
	o, ok := r.orders[clOrdID]
	r.mu.RUnlock()
	return o, ok
}

// Rekey moves an order from its old client order id to a new one,
// as happens on cancel/replace.
func (r *Registry) Rekey(oldID, newID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[oldID]
	if !ok {
		return false
	}
	delete(r.orders, oldID)
	r.orders[newID] = o
	return true
}

// Len returns the number of orders
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// All returns a copy of all orders
func (r *Registry) All() []*Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out
}
