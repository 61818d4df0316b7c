// Package idempotency implements request-fingerprint caching of
// successful write responses, keyed by a client-supplied opaque string.
package idempotency

import (
	"context"
	"time"

	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/store"
)

type Layer struct {
	Store store.Store
	Now   func() time.Time
}

func New(s store.Store) *Layer {
	return &Layer{Store: s, Now: time.Now}
}

// Lookup returns the cached payload for key, if any.
func (l *Layer) Lookup(ctx context.Context, key string) (model.IdempotencyRecord, bool, error) {
	if key == "" {
		return model.IdempotencyRecord{}, false, nil
	}
	rec, err := l.Store.GetIdempotency(ctx, key)
	if err == nil {
		return rec, true, nil
	}
	if err == internaltypes.ErrNotFound {
		return model.IdempotencyRecord{}, false, nil
	}
	return model.IdempotencyRecord{}, false, err
}

// Save caches payload under key. Only 2xx responses should ever be
// passed here; the caller decides that before calling Save.
func (l *Layer) Save(ctx context.Context, key string, payload []byte) error {
	if key == "" {
		return nil
	}
	return l.Store.PutIdempotency(ctx, key, payload, l.Now())
}
