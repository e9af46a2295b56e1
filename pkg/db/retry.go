/*
 * Copyright 2025 GridPulse, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes for transient errors that should be retried.
const (
	sqlstateDeadlockDetected    = "40P01"
	sqlstateSerializationFailed = "40001"
	sqlstateStatementTimeout    = "57014"
)

// A lost per-MAC serialization race is retried once with freshly read state
// before the failure surfaces to the resolver.
const (
	maxMutateAttempts    = 2
	baseRetryBackoff     = 150 * time.Millisecond
	conflictRetryBackoff = 500 * time.Millisecond
)

// classifyPGError checks if an error is a transient PostgreSQL error that
// can be retried. Returns the SQLSTATE code and whether it is transient.
func classifyPGError(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlstateDeadlockDetected, sqlstateSerializationFailed, sqlstateStatementTimeout:
			return pgErr.Code, true
		}

		return pgErr.Code, false
	}

	// Fallback to string matching for wrapped errors.
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "40p01"), strings.Contains(msg, "deadlock detected"):
		return sqlstateDeadlockDetected, true
	case strings.Contains(msg, "40001"), strings.Contains(msg, "could not serialize access"):
		return sqlstateSerializationFailed, true
	case strings.Contains(msg, "57014"), strings.Contains(msg, "statement timeout"):
		return sqlstateStatementTimeout, true
	default:
		return "", false
	}
}

// retryBackoff calculates the pause before a retry attempt, with jitter to
// break lock acquisition synchronization between contending reports.
func retryBackoff(attempt int, sqlstate string) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	base := baseRetryBackoff

	switch sqlstate {
	case sqlstateDeadlockDetected, sqlstateSerializationFailed:
		base = conflictRetryBackoff
	}

	backoff := base * time.Duration(1<<(attempt-1))
	jitter := time.Duration(time.Now().UnixNano() % int64(base))

	return backoff + jitter
}

// withConflictRetry runs op, retrying once when the failure is a transient
// serialization conflict.
func (db *DB) withConflictRetry(ctx context.Context, name string, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		sqlstate, transient := classifyPGError(err)
		if !transient || attempt == maxMutateAttempts {
			break
		}

		delay := retryBackoff(attempt, sqlstate)

		db.logger.Warn().
			Str("operation", name).
			Str("sqlstate", sqlstate).
			Dur("backoff", delay).
			Msg("transient postgres error, retrying with fresh state")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
