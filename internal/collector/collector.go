package collector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/f-sync/tweeblock/internal/accountset"
)

const (
	// DefaultPageSize is the largest page the follower listings serve.
	DefaultPageSize = 1000

	defaultDimensionName        = "accounts"
	errMessagePaginationLoop    = "pagination token repeated"
	errMessageNilFetcher        = "page fetcher is nil"
	fetchPageErrorFormat        = "collect %s page %d: %w"
	paginationLoopErrorFormat   = "collect %s page %d: %w: %q"
	logMessagePageCollected     = "page collected"
	logMessageCollectionDone    = "collection complete"
	logFieldDimension           = "dimension"
	logFieldPage                = "page"
	logFieldPageRecords         = "page_records"
	logFieldCollectedRecords    = "collected_records"
	logFieldPaginationTokenSeen = "has_next_token"
)

var (
	// ErrPaginationLoop is returned when the upstream hands back a continuation token it already issued.
	ErrPaginationLoop = errors.New(errMessagePaginationLoop)
	errNilFetcher     = errors.New(errMessageNilFetcher)
)

// PageRequest identifies one page of a paginated listing.
type PageRequest struct {
	Token      string
	MaxResults int
}

// Page is one page of account records plus the continuation token. An empty
// NextToken signals the end of the listing.
type Page struct {
	Records   []accountset.AccountRecord
	NextToken string
}

// PageFetcher fetches a single page of one interaction dimension.
type PageFetcher func(ctx context.Context, request PageRequest) (Page, error)

type options struct {
	pageSize  int
	dimension string
	logger    *zap.Logger
}

// Option customizes Collect.
type Option func(*options)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(pageSize int) Option {
	return func(collectOptions *options) {
		if pageSize > 0 {
			collectOptions.pageSize = pageSize
		}
	}
}

// WithDimension names the collected dimension in errors and logs.
func WithDimension(dimension string) Option {
	return func(collectOptions *options) {
		if dimension != "" {
			collectOptions.dimension = dimension
		}
	}
}

// WithLogger attaches a logger for per-page progress.
func WithLogger(logger *zap.Logger) Option {
	return func(collectOptions *options) {
		if logger != nil {
			collectOptions.logger = logger
		}
	}
}

// Collect fetches successive pages until the upstream stops returning a
// continuation token and folds every page into one set. A failing page aborts
// the whole collection.
func Collect(ctx context.Context, fetch PageFetcher, opts ...Option) (accountset.Set, error) {
	collectOptions := options{
		pageSize:  DefaultPageSize,
		dimension: defaultDimensionName,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&collectOptions)
	}
	if fetch == nil {
		return nil, errNilFetcher
	}

	collected := accountset.New()
	seenTokens := map[string]struct{}{}
	request := PageRequest{MaxResults: collectOptions.pageSize}

	for pageNumber := 1; ; pageNumber++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, request)
		if err != nil {
			return nil, fmt.Errorf(fetchPageErrorFormat, collectOptions.dimension, pageNumber, err)
		}
		for _, record := range page.Records {
			collected.AddRecord(record)
		}
		collectOptions.logger.Debug(logMessagePageCollected,
			zap.String(logFieldDimension, collectOptions.dimension),
			zap.Int(logFieldPage, pageNumber),
			zap.Int(logFieldPageRecords, len(page.Records)),
			zap.Bool(logFieldPaginationTokenSeen, page.NextToken != ""),
		)

		if page.NextToken == "" {
			break
		}
		if _, repeated := seenTokens[page.NextToken]; repeated {
			return nil, fmt.Errorf(paginationLoopErrorFormat, collectOptions.dimension, pageNumber, ErrPaginationLoop, page.NextToken)
		}
		seenTokens[page.NextToken] = struct{}{}
		request.Token = page.NextToken
	}

	collectOptions.logger.Info(logMessageCollectionDone,
		zap.String(logFieldDimension, collectOptions.dimension),
		zap.Int(logFieldCollectedRecords, collected.Len()),
	)
	return collected, nil
}
