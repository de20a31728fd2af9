package dao

import (
	"cmp"
	"context"
)

// Snapshot persists a whole keyed collection at once.
//
// Load returns an empty map (and nil error) when nothing was persisted yet and
// an error wrapping ErrCorrupt when persisted data cannot be decoded. SaveAll
// replaces the persisted set so that readers never observe a partial write.
type Snapshot[K cmp.Ordered, T any] interface {
	Load(ctx context.Context) (map[K]*T, error)

	SaveAll(ctx context.Context, records map[K]*T) error
}

// KeyFunc extracts the key of a record.
type KeyFunc[K cmp.Ordered, T any] func(*T) K
