package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/framebase/framebase/pkg/store"
)

// DefaultLeaseTTL is how long a migration lease lives before another
// holder may take it over. It bounds how long a crashed migration blocks
// the dataset.
const DefaultLeaseTTL = 5 * time.Minute

// Lease is a held advisory lease on one dataset.
type Lease struct {
	leases   store.Leases
	dataset  string
	holder   string
	released bool
}

// AcquireLease takes the advisory lease on a dataset under a fresh holder
// id. It returns store.ErrLeaseHeld when another holder owns an unexpired
// lease. A ttl of zero or less selects DefaultLeaseTTL.
func AcquireLease(ctx context.Context, leases store.Leases, dataset string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	holder := uuid.NewString()
	ok, err := leases.AcquireLease(ctx, dataset, holder, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquiring lease on dataset %q: %w", dataset, err)
	}
	if !ok {
		return nil, fmt.Errorf("dataset %q: %w", dataset, store.ErrLeaseHeld)
	}
	return &Lease{leases: leases, dataset: dataset, holder: holder}, nil
}

// Release drops the lease. Releasing twice is harmless.
func (l *Lease) Release(ctx context.Context) error {
	if l.released {
		return nil
	}
	l.released = true
	return l.leases.ReleaseLease(ctx, l.dataset, l.holder)
}
