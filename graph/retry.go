package graph

import (
	"context"

	"github.com/go-kratos/kit/retry"
)

// Retry returns a middleware that retries node handlers with exponential backoff.
//
// Parameters:
//
//	attempts: The total number of attempts to execute the handler, including the initial attempt.
//	          For example, attempts=3 means up to 3 tries (1 initial + 2 retries).
//	opts:     Optional configuration for retry behavior. See retry.Option (from github.com/go-kratos/kit/retry) for details.
//
// Behavior:
//   - Every attempt receives the same state copy; only the delta of the successful attempt is merged.
//   - If all attempts fail, the last error is returned and the run fails with a NodeExecutionError.
//   - Cancellation of the run (timeout or caller cancellation) stops further attempts.
//
// Example usage:
//
//	g := NewGraph(WithMiddleware(Retry(5,
//	    retry.WithBackoff(retry.NewExponentialBackoff()),
//	    retry.WithRetryable(func(err error) bool {
//	        return errors.Is(err, ErrTemporary)
//	    }),
//	)))
func Retry(attempts int, opts ...retry.Option) Middleware {
	r := retry.New(attempts, opts...)
	return func(next Handler) Handler {
		return func(ctx context.Context, input State) (State, error) {
			var (
				err    error
				output State
			)
			if err = r.Do(ctx, func(ctx context.Context) error {
				output, err = next(ctx, input)
				return err
			}); err != nil {
				return nil, err
			}
			return output, nil
		}
	}
}
