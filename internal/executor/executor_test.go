package executor_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/f-sync/tweeblock/internal/executor"
	"github.com/f-sync/tweeblock/internal/xapi"
)

const errMessageForbidden = "forbidden"

var (
	errForbidden   = errors.New(errMessageForbidden)
	rateLimitError = &xapi.APIError{Method: http.MethodPost, Endpoint: "/2/users/1/blocking", StatusCode: http.StatusTooManyRequests}
)

type blockCall struct {
	path      string
	accountID string
}

type scriptedBlocker struct {
	primaryErrors  map[string]error
	fallbackErrors map[string]error
	calls          []blockCall
}

func (blocker *scriptedBlocker) BlockPrimary(_ context.Context, accountID string) error {
	blocker.calls = append(blocker.calls, blockCall{path: "primary", accountID: accountID})
	return blocker.primaryErrors[accountID]
}

func (blocker *scriptedBlocker) BlockFallback(_ context.Context, accountID string) error {
	blocker.calls = append(blocker.calls, blockCall{path: "fallback", accountID: accountID})
	return blocker.fallbackErrors[accountID]
}

func (blocker *scriptedBlocker) trace() string {
	parts := make([]string, 0, len(blocker.calls))
	for _, call := range blocker.calls {
		parts = append(parts, fmt.Sprintf("%s:%s", call.path, call.accountID))
	}
	return strings.Join(parts, " ")
}

func noWait(context.Context, time.Duration) error { return nil }

func TestExecute(t *testing.T) {
	testCases := []struct {
		name               string
		accountIDs         []string
		primaryErrors      map[string]error
		fallbackErrors     map[string]error
		maxBlocks          int
		expectedTrace      string
		expectedBlocked    []string
		expectedSwitchedAt int
		expectedFinalPath  executor.Path
		expectedError      error
		expectedTruncated  bool
	}{
		{
			name:               "primary path only",
			accountIDs:         []string{"C", "A", "B"},
			expectedTrace:      "primary:A primary:B primary:C",
			expectedBlocked:    []string{"A", "B", "C"},
			expectedSwitchedAt: -1,
			expectedFinalPath:  executor.PrimaryPath,
		},
		{
			name:               "rate limit switches permanently to fallback",
			accountIDs:         []string{"A", "B", "C", "D"},
			primaryErrors:      map[string]error{"B": rateLimitError},
			expectedTrace:      "primary:A primary:B fallback:B fallback:C fallback:D",
			expectedBlocked:    []string{"A", "B", "C", "D"},
			expectedSwitchedAt: 1,
			expectedFinalPath:  executor.FallbackPath,
		},
		{
			name:               "wrapped rate limit is recognized",
			accountIDs:         []string{"A", "B"},
			primaryErrors:      map[string]error{"A": fmt.Errorf("wrapped: %w", rateLimitError)},
			expectedTrace:      "primary:A fallback:A fallback:B",
			expectedBlocked:    []string{"A", "B"},
			expectedSwitchedAt: 0,
			expectedFinalPath:  executor.FallbackPath,
		},
		{
			name:               "other primary error aborts",
			accountIDs:         []string{"A", "B", "C"},
			primaryErrors:      map[string]error{"B": errForbidden},
			expectedTrace:      "primary:A primary:B",
			expectedBlocked:    []string{"A"},
			expectedSwitchedAt: -1,
			expectedFinalPath:  executor.PrimaryPath,
			expectedError:      errForbidden,
		},
		{
			name:               "fallback error aborts",
			accountIDs:         []string{"A", "B", "C"},
			primaryErrors:      map[string]error{"A": rateLimitError},
			fallbackErrors:     map[string]error{"B": errForbidden},
			expectedTrace:      "primary:A fallback:A fallback:B",
			expectedBlocked:    []string{"A"},
			expectedSwitchedAt: 0,
			expectedFinalPath:  executor.FallbackPath,
			expectedError:      errForbidden,
		},
		{
			name:               "block cap truncates the run",
			accountIDs:         []string{"A", "B", "C"},
			maxBlocks:          2,
			expectedTrace:      "primary:A primary:B",
			expectedBlocked:    []string{"A", "B"},
			expectedSwitchedAt: -1,
			expectedFinalPath:  executor.PrimaryPath,
			expectedTruncated:  true,
		},
		{
			name:               "empty block list",
			expectedTrace:      "",
			expectedSwitchedAt: -1,
			expectedFinalPath:  executor.PrimaryPath,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			blocker := &scriptedBlocker{primaryErrors: testCase.primaryErrors, fallbackErrors: testCase.fallbackErrors}
			blockExecutor, err := executor.New(executor.Config{Blocker: blocker, MaxBlocks: testCase.maxBlocks, Wait: noWait})
			if err != nil {
				t.Fatalf("create executor: %v", err)
			}

			report, err := blockExecutor.Execute(context.Background(), testCase.accountIDs)
			if testCase.expectedError != nil {
				if !errors.Is(err, testCase.expectedError) {
					t.Fatalf("expected %v, got %v", testCase.expectedError, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if blocker.trace() != testCase.expectedTrace {
				t.Fatalf("trace = %q, want %q", blocker.trace(), testCase.expectedTrace)
			}
			if strings.Join(report.Blocked, ",") != strings.Join(testCase.expectedBlocked, ",") {
				t.Fatalf("blocked = %v, want %v", report.Blocked, testCase.expectedBlocked)
			}
			if report.SwitchedAt != testCase.expectedSwitchedAt {
				t.Fatalf("switched at = %d, want %d", report.SwitchedAt, testCase.expectedSwitchedAt)
			}
			if report.FinalPath != testCase.expectedFinalPath || blockExecutor.Path() != testCase.expectedFinalPath {
				t.Fatalf("final path = %s, want %s", report.FinalPath, testCase.expectedFinalPath)
			}
			if report.Truncated != testCase.expectedTruncated {
				t.Fatalf("truncated = %v, want %v", report.Truncated, testCase.expectedTruncated)
			}
			if report.Total != len(testCase.accountIDs) {
				t.Fatalf("total = %d, want %d", report.Total, len(testCase.accountIDs))
			}
		})
	}
}

func TestExecutorStaysOnFallbackAcrossRuns(t *testing.T) {
	blocker := &scriptedBlocker{primaryErrors: map[string]error{"A": rateLimitError}}
	blockExecutor, err := executor.New(executor.Config{Blocker: blocker, Wait: noWait})
	if err != nil {
		t.Fatalf("create executor: %v", err)
	}

	if _, err := blockExecutor.Execute(context.Background(), []string{"A"}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := blockExecutor.Execute(context.Background(), []string{"B"}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if blocker.trace() != "primary:A fallback:A fallback:B" {
		t.Fatalf("unexpected trace %q", blocker.trace())
	}
}

func TestExecutePacesBetweenRequests(t *testing.T) {
	var waits []time.Duration
	blocker := &scriptedBlocker{}
	blockExecutor, err := executor.New(executor.Config{
		Blocker: blocker,
		Pacing:  executor.PacingConfig{BaseDelay: 200 * time.Millisecond, Jitter: 50 * time.Millisecond, RandomGenerator: rand.New(rand.NewSource(7))},
		Wait: func(_ context.Context, duration time.Duration) error {
			waits = append(waits, duration)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("create executor: %v", err)
	}

	if _, err := blockExecutor.Execute(context.Background(), []string{"A", "B", "C"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(waits) != 2 {
		t.Fatalf("expected waits between the three requests only, got %d", len(waits))
	}
	for _, wait := range waits {
		if wait < 150*time.Millisecond || wait > 250*time.Millisecond {
			t.Fatalf("wait %s outside jitter window", wait)
		}
	}
}

func TestExecuteStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocker := &scriptedBlocker{}
	blockExecutor, err := executor.New(executor.Config{
		Blocker: blocker,
		Wait: func(waitCtx context.Context, _ time.Duration) error {
			cancel()
			return waitCtx.Err()
		},
	})
	if err != nil {
		t.Fatalf("create executor: %v", err)
	}

	report, err := blockExecutor.Execute(ctx, []string{"A", "B"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if strings.Join(report.Blocked, ",") != "A" {
		t.Fatalf("expected only the first account blocked, got %v", report.Blocked)
	}
}

func TestNewRequiresBlocker(t *testing.T) {
	if _, err := executor.New(executor.Config{}); err == nil {
		t.Fatalf("expected error without blocker")
	}
}
