package recipe

import (
	"fmt"
	"sync"
	"time"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// evalResult passes evaluation results through channels.
type evalResult struct {
	result *Result
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// if the evaluation exceeds limit. It uses a generation counter to
// discard stale results from previous evaluations.
//
// On timeout, the goroutine may still be running; the generation check
// ensures its result is discarded when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	mu *sync.Mutex,
	currentGen *uint64,
	limit time.Duration,
) (*Result, []EvalError, error) {
	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()

		if gen != current {
			return nil, nil, fmt.Errorf("recipe: evaluation superseded by newer request")
		}

		return res.result, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("recipe: evaluation timed out after %s", limit)
	}
}
