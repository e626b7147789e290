// Copyright 2024 Customer Segmenter Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resilience retries operations that can fail transiently, such as
// reads from a registry database that another process is writing.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Policy controls exponential backoff between attempts
type Policy struct {
	// Attempts is the total number of tries; values below 1 mean one try
	Attempts   int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Retryable decides whether an error is worth another attempt. Nil retries
	// everything except context cancellation.
	Retryable func(error) bool
}

// DefaultPolicy returns a short policy suited to startup-time reads
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2.0,
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts run out
func Do(ctx context.Context, logger *zap.Logger, policy Policy, operation string, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempt", attempt))
			}
			return nil
		}
		lastErr = err

		if !policy.retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Debug("Retrying after delay",
			zap.String("operation", operation),
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = policy.next(delay)
	}

	logger.Warn("All retry attempts exhausted",
		zap.String("operation", operation),
		zap.Error(lastErr),
		zap.Int("attempts", attempts))

	return fmt.Errorf("%s failed after %d attempts: %w", operation, attempts, lastErr)
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

func (p Policy) next(delay time.Duration) time.Duration {
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	next := time.Duration(float64(delay) * multiplier)
	if p.MaxDelay > 0 && next > p.MaxDelay {
		next = p.MaxDelay
	}
	return next
}
