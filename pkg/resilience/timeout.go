// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"

	"github.com/angleito/seiron-runtime/pkg/errors"
)

// WithTimeoutResult races fn against a deadline. If the deadline wins, the
// call's eventual result is abandoned, not cancelled: fn keeps running on
// its goroutine and its return value is discarded. Tool implementations
// with non-idempotent side effects must handle this defensively.
func WithTimeoutResult(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if timeout == 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value interface{}
		err   error
	}

	done := make(chan result, 1)
	go func() {
		value, err := fn(ctx)
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", timeout.String())
	case res := <-done:
		return res.value, res.err
	}
}
