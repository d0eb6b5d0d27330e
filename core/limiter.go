package core

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrModelCallLimit is returned once an invocation used up its model calls.
var ErrModelCallLimit = errors.New("model call limit exceeded")

// ModelLimiter counts model calls of one invocation against a budget. A zero
// budget is unlimited. Safe for concurrent use.
type ModelLimiter struct {
	limit int64
	used  atomic.Int64
}

// NewModelLimiter creates a limiter allowing limit calls.
func NewModelLimiter(limit int) *ModelLimiter {
	return &ModelLimiter{limit: int64(max(limit, 0))}
}

// Increment records a call. It fails once the budget is exceeded; the
// failing call is still counted.
func (ml *ModelLimiter) Increment() error {
	n := ml.used.Add(1)
	if ml.limit > 0 && n > ml.limit {
		return fmt.Errorf("%w: %d", ErrModelCallLimit, ml.limit)
	}

	return nil
}

// Count reports the recorded calls.
func (ml *ModelLimiter) Count() int { return int(ml.used.Load()) }

// Limit reports the budget, 0 when unlimited.
func (ml *ModelLimiter) Limit() int { return int(ml.limit) }

// Remaining reports the calls left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	if ml.limit == 0 {
		return -1
	}

	return int(max(ml.limit-ml.used.Load(), 0))
}
