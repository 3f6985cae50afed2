// Package registry maps capability names to the workers providing them. The
// planner names capabilities abstractly; the dispatcher resolves them here,
// so new worker types can be added without touching planning logic.
package registry

import (
	"fmt"

	contractx "github.com/witthaya/deskflow/agent/contract"
)

type Registry struct {
	workers map[contractx.Capability]contractx.Worker
	sealed  bool
}

func New() *Registry {
	return &Registry{
		workers: make(map[contractx.Capability]contractx.Worker, 8),
	}
}

// Register binds every capability the worker advertises. Registration happens
// once at session initialization; calling Register after Seal is a
// programming error.
func (r *Registry) Register(w contractx.Worker) error {
	if w == nil {
		return fmt.Errorf("%w: nil worker", contractx.ErrValidation)
	}
	if r.sealed {
		return fmt.Errorf("%w: registry is sealed", contractx.ErrValidation)
	}
	caps := w.Capabilities()
	if len(caps) == 0 {
		return fmt.Errorf("%w: worker %s advertises no capabilities", contractx.ErrValidation, w.Name())
	}
	for _, c := range caps {
		if prev, ok := r.workers[c]; ok {
			return fmt.Errorf("%w: capability %s already provided by %s", contractx.ErrValidation, c, prev.Name())
		}
		r.workers[c] = w
	}
	return nil
}

// Seal makes the registry read-only for the rest of the session.
func (r *Registry) Seal() {
	r.sealed = true
}

func (r *Registry) Resolve(cap contractx.Capability) (contractx.Worker, error) {
	w, ok := r.workers[cap]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownCapability, cap)
	}
	return w, nil
}

var _ contractx.Registry = (*Registry)(nil)
