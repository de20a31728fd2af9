package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Func generates a new identifier.
type Func func() string

// New returns a new random UUID string.
func New() string { return uuid.New().String() }

// Sequence returns a deterministic generator producing prefix-1, prefix-2, ...
func Sequence(prefix string) Func {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("%s-%d", prefix, n.Add(1))
	}
}
