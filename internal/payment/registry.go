// internal/payment/registry.go
package payment

import (
	"sync"

	"github.com/javajoker/licensegate/internal/apperr"
	"github.com/javajoker/licensegate/internal/models"
)

// Registry holds processors in registration order.
type Registry struct {
	mu         sync.RWMutex
	processors []Processor
}

func NewRegistry(processors ...Processor) *Registry {
	r := &Registry{}
	for _, p := range processors {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any processor with the same id in place.
func (r *Registry) Register(p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.processors {
		if existing.ID() == p.ID() {
			r.processors[i] = p
			return
		}
	}
	r.processors = append(r.processors, p)
}

func (r *Registry) Get(id string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.processors {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, apperr.Newf(apperr.CodeProcessorNotFound, "payment processor %q is not registered", id)
}

func (r *Registry) All() []Processor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Processor, len(r.processors))
	copy(out, r.processors)
	return out
}

// Select returns the first available processor supporting pt.
func (r *Registry) Select(pt models.PaymentType) (Processor, error) {
	for _, p := range r.All() {
		if p.IsAvailable() && Supports(p, pt) {
			return p, nil
		}
	}
	return nil, apperr.Newf(apperr.CodeNoProcessorAvailable, "no payment processor available for payment type %q", pt)
}
