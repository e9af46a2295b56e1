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
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/devicegate/pkg/logger"
)

func TestClassifyPGError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantSQLState  string
		wantTransient bool
	}{
		{
			name: "nil error",
		},
		{
			name:          "deadlock pg error",
			err:           &pgconn.PgError{Code: "40P01"},
			wantSQLState:  "40P01",
			wantTransient: true,
		},
		{
			name:          "serialization failure pg error",
			err:           &pgconn.PgError{Code: "40001"},
			wantSQLState:  "40001",
			wantTransient: true,
		},
		{
			name:          "statement timeout pg error",
			err:           &pgconn.PgError{Code: "57014"},
			wantSQLState:  "57014",
			wantTransient: true,
		},
		{
			name:         "unique violation is not transient",
			err:          &pgconn.PgError{Code: "23505"},
			wantSQLState: "23505",
		},
		{
			name:          "wrapped pg error",
			err:           fmt.Errorf("upsert failed: %w", &pgconn.PgError{Code: "40001"}),
			wantSQLState:  "40001",
			wantTransient: true,
		},
		{
			name:          "string fallback deadlock",
			err:           errors.New("ERROR: deadlock detected (SQLSTATE 40P01)"),
			wantSQLState:  "40P01",
			wantTransient: true,
		},
		{
			name:          "string fallback serialization",
			err:           errors.New("could not serialize access due to concurrent update"),
			wantSQLState:  "40001",
			wantTransient: true,
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sqlstate, transient := classifyPGError(tt.err)
			assert.Equal(t, tt.wantSQLState, sqlstate)
			assert.Equal(t, tt.wantTransient, transient)
		})
	}
}

func TestRetryBackoffGrowsWithAttempts(t *testing.T) {
	first := retryBackoff(1, sqlstateStatementTimeout)
	second := retryBackoff(2, sqlstateStatementTimeout)

	assert.GreaterOrEqual(t, first, baseRetryBackoff)
	assert.Less(t, first, 2*baseRetryBackoff)
	assert.GreaterOrEqual(t, second, 2*baseRetryBackoff)
}

func TestRetryBackoffConflictsBackOffLonger(t *testing.T) {
	assert.GreaterOrEqual(t, retryBackoff(1, sqlstateDeadlockDetected), conflictRetryBackoff)
	assert.GreaterOrEqual(t, retryBackoff(1, sqlstateSerializationFailed), conflictRetryBackoff)
}

func TestWithConflictRetryRetriesTransientOnce(t *testing.T) {
	database := &DB{logger: logger.NewTestLogger()}

	attempts := 0
	err := database.withConflictRetry(context.Background(), "mutate fingerprint", func(context.Context) error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: "40001"}
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithConflictRetryDoesNotRetryPermanent(t *testing.T) {
	database := &DB{logger: logger.NewTestLogger()}

	permanent := errors.New("relation does not exist")

	attempts := 0
	err := database.withConflictRetry(context.Background(), "mutate fingerprint", func(context.Context) error {
		attempts++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
}

func TestWithConflictRetryExhaustsAttempts(t *testing.T) {
	database := &DB{logger: logger.NewTestLogger()}

	transient := &pgconn.PgError{Code: "40P01"}

	attempts := 0
	err := database.withConflictRetry(context.Background(), "mutate fingerprint", func(context.Context) error {
		attempts++
		return transient
	})

	require.Error(t, err)
	assert.Equal(t, maxMutateAttempts, attempts)
}

func TestWithConflictRetryHonorsContext(t *testing.T) {
	database := &DB{logger: logger.NewTestLogger()}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := database.withConflictRetry(ctx, "mutate fingerprint", func(context.Context) error {
		return &pgconn.PgError{Code: "40001"}
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
}
