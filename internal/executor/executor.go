package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/f-sync/tweeblock/internal/xapi"
)

const (
	errMessageNilBlocker          = "blocker is nil"
	primaryBlockErrorFormat       = "block %s via primary path: %w"
	fallbackBlockErrorFormat      = "block %s via fallback path: %w"
	logMessageSwitchToFallback    = "primary block path rate limited, switching to fallback for the rest of the run"
	logMessageBlocked             = "account blocked"
	logMessageProgress            = "block progress"
	logMessageBlockLimitReached   = "block limit reached"
	logMessageExecutionComplete   = "block execution complete"
	logFieldAccountID             = "account_id"
	logFieldPath                  = "path"
	logFieldProgress              = "progress"
	logFieldTotal                 = "total"
	logFieldBlocked               = "blocked"
	logFieldLimit                 = "limit"
	progressLogInterval           = 25
	pathNamePrimary               = "primary"
	pathNameFallback              = "fallback"
	pathNameUnknown               = "unknown"
	switchedAtNotSwitchedSentinel = -1
)

var errNilBlocker = errors.New(errMessageNilBlocker)

// Path is the block request route in use.
type Path int

const (
	// PrimaryPath blocks through the current API and surfaces rate limiting.
	PrimaryPath Path = iota
	// FallbackPath blocks through the legacy API. Once entered it is kept for the rest of the run.
	FallbackPath
)

func (path Path) String() string {
	switch path {
	case PrimaryPath:
		return pathNamePrimary
	case FallbackPath:
		return pathNameFallback
	default:
		return pathNameUnknown
	}
}

// Blocker issues block requests on behalf of the acting account.
type Blocker interface {
	BlockPrimary(ctx context.Context, accountID string) error
	BlockFallback(ctx context.Context, accountID string) error
}

// Config configures an Executor.
type Config struct {
	Blocker Blocker
	// MaxBlocks caps the blocks issued in one run; zero means no cap.
	MaxBlocks int
	Pacing    PacingConfig
	Logger    *zap.Logger
	// Wait pauses between requests; tests replace it.
	Wait func(ctx context.Context, duration time.Duration) error
}

// Report summarizes one execution.
type Report struct {
	Total     int
	Attempted int
	Blocked   []string
	// SwitchedAt is the index of the account that triggered the fallback, or -1.
	SwitchedAt int
	FinalPath  Path
	Truncated  bool
}

// Executor blocks accounts one at a time. Its path starts at PrimaryPath and
// moves to FallbackPath at most once.
type Executor struct {
	blocker   Blocker
	maxBlocks int
	pacer     requestPacer
	logger    *zap.Logger
	wait      func(ctx context.Context, duration time.Duration) error
	path      Path
}

// New constructs an Executor in PrimaryPath.
func New(configuration Config) (*Executor, error) {
	if configuration.Blocker == nil {
		return nil, errNilBlocker
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	wait := configuration.Wait
	if wait == nil {
		wait = xapi.WaitForDuration
	}
	maxBlocks := configuration.MaxBlocks
	if maxBlocks < 0 {
		maxBlocks = 0
	}
	return &Executor{
		blocker:   configuration.Blocker,
		maxBlocks: maxBlocks,
		pacer:     newRequestPacer(configuration.Pacing),
		logger:    logger,
		wait:      wait,
		path:      PrimaryPath,
	}, nil
}

// Path reports the path the next block request will take.
func (executor *Executor) Path() Path {
	return executor.path
}

// Execute blocks accountIDs in ascending order. A rate-limited primary request
// is repeated on the fallback path and the executor stays there. Any other
// error stops the run and is returned with the partial report.
func (executor *Executor) Execute(ctx context.Context, accountIDs []string) (Report, error) {
	orderedIDs := append([]string(nil), accountIDs...)
	sort.Strings(orderedIDs)

	report := Report{Total: len(orderedIDs), SwitchedAt: switchedAtNotSwitchedSentinel}
	for index, accountID := range orderedIDs {
		if executor.maxBlocks > 0 && report.Attempted >= executor.maxBlocks {
			report.Truncated = true
			executor.logger.Warn(logMessageBlockLimitReached, zap.Int(logFieldLimit, executor.maxBlocks), zap.Int(logFieldTotal, report.Total))
			break
		}
		if index > 0 {
			if err := executor.wait(ctx, executor.pacer.NextWait()); err != nil {
				report.FinalPath = executor.path
				return report, err
			}
		}
		if err := ctx.Err(); err != nil {
			report.FinalPath = executor.path
			return report, err
		}

		report.Attempted++
		if err := executor.blockOne(ctx, index, accountID, &report); err != nil {
			report.FinalPath = executor.path
			return report, err
		}
		report.Blocked = append(report.Blocked, accountID)
		executor.logger.Debug(logMessageBlocked, zap.String(logFieldAccountID, accountID), zap.Stringer(logFieldPath, executor.path))
		if len(report.Blocked)%progressLogInterval == 0 {
			executor.logger.Info(logMessageProgress, zap.Int(logFieldProgress, len(report.Blocked)), zap.Int(logFieldTotal, report.Total))
		}
	}

	report.FinalPath = executor.path
	executor.logger.Info(logMessageExecutionComplete,
		zap.Int(logFieldBlocked, len(report.Blocked)),
		zap.Int(logFieldTotal, report.Total),
		zap.Stringer(logFieldPath, executor.path),
	)
	return report, nil
}

func (executor *Executor) blockOne(ctx context.Context, index int, accountID string, report *Report) error {
	if executor.path == PrimaryPath {
		err := executor.blocker.BlockPrimary(ctx, accountID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, xapi.ErrRateLimited) {
			return fmt.Errorf(primaryBlockErrorFormat, accountID, err)
		}
		executor.path = FallbackPath
		report.SwitchedAt = index
		executor.logger.Warn(logMessageSwitchToFallback, zap.String(logFieldAccountID, accountID))
	}
	if err := executor.blocker.BlockFallback(ctx, accountID); err != nil {
		return fmt.Errorf(fallbackBlockErrorFormat, accountID, err)
	}
	return nil
}
