package archive

import (
	"context"
	"errors"
)

// Multi writes to every backend. Reads prefer the last backend, which is the
// most durable one in the order the builder adds them.
type Multi struct {
	stores []Store
}

func NewMulti(primary Store, rest ...Store) *Multi {
	stores := []Store{primary}
	for _, s := range rest {
		if s != nil {
			stores = append(stores, s)
		}
	}
	return &Multi{stores: stores}
}

// Save tries every backend; failures are joined.
func (m *Multi) Save(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Save(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Recent(ctx context.Context, limit int) ([]Record, error) {
	var errs []error
	for i := len(m.stores) - 1; i >= 0; i-- {
		recs, err := m.stores[i].Recent(ctx, limit)
		if err == nil {
			return recs, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

func (m *Multi) Backends() int { return len(m.stores) }
