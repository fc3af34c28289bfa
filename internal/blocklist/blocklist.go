// Package blocklist derives the accounts to block from a seed tweet or account.
package blocklist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/f-sync/tweeblock/internal/accountset"
	"github.com/f-sync/tweeblock/internal/collector"
	"github.com/f-sync/tweeblock/internal/seed"
	"github.com/f-sync/tweeblock/internal/xapi"
)

const (
	DimensionLikers          = "likers"
	DimensionRetweeters      = "retweeters"
	DimensionTargetFollowers = "target followers"
	DimensionMyFollowers     = "my followers"
	DimensionMyFollowing     = "my following"

	errMessageNilGraph        = "graph is nil"
	errMessageMissingActingID = "acting account id is required"
	errMessageUnsupportedKind = "unsupported seed kind"
	resolveTargetErrorFormat  = "resolve seed account @%s: %w"
	collectErrorFormat        = "collect %s: %w"
	unsupportedKindFormat     = "%w: %s"
	logMessagePlanned         = "block list planned"
	logFieldSeed              = "seed"
	logFieldInteractions      = "interactions"
	logFieldProtected         = "protected"
	logFieldBlockList         = "block_list"
)

var (
	errNilGraph = errors.New(errMessageNilGraph)
	// ErrUnsupportedSeed reports a seed whose kind the planner cannot expand.
	ErrUnsupportedSeed        = errors.New(errMessageUnsupportedKind)
	errMissingActingAccountID = errors.New(errMessageMissingActingID)
)

// Graph is the slice of the social graph the planner reads.
type Graph interface {
	UserByUsername(ctx context.Context, userName string, auth xapi.AuthMode) (accountset.AccountRecord, error)
	LikingUsers(tweetID string, auth xapi.AuthMode) collector.PageFetcher
	Retweeters(tweetID string, auth xapi.AuthMode) collector.PageFetcher
	Followers(accountID string, auth xapi.AuthMode) collector.PageFetcher
	Following(accountID string, auth xapi.AuthMode) collector.PageFetcher
}

// InteractionSets holds the candidate dimensions. Likers and Retweeters stay
// nil in account mode.
type InteractionSets struct {
	Likers          accountset.Set
	Retweeters      accountset.Set
	TargetFollowers accountset.Set
	Target          accountset.Set
}

// All returns the non-nil interaction sets.
func (sets InteractionSets) All() []accountset.Set {
	return nonNil(sets.Likers, sets.Retweeters, sets.TargetFollowers, sets.Target)
}

// ProtectiveSets holds the accounts that are never blocked.
type ProtectiveSets struct {
	Followers accountset.Set
	Following accountset.Set
	Self      accountset.Set
}

// All returns the non-nil protective sets.
func (sets ProtectiveSets) All() []accountset.Set {
	return nonNil(sets.Followers, sets.Following, sets.Self)
}

// Plan is a computed block list together with the sets that produced it.
type Plan struct {
	Seed         seed.Seed
	Target       accountset.AccountRecord
	Interactions InteractionSets
	Protective   ProtectiveSets
	BlockList    accountset.Set
}

// Combine returns the union of interactions minus the union of protective.
func Combine(interactions []accountset.Set, protective []accountset.Set) accountset.Set {
	return accountset.Union(interactions...).Difference(accountset.Union(protective...))
}

// PlannerConfig configures a Planner.
type PlannerConfig struct {
	Graph           Graph
	ActingAccountID string
	// InteractionAuth authenticates the interaction queries. Protective
	// queries always run in user context.
	InteractionAuth xapi.AuthMode
	PageSize        int
	Logger          *zap.Logger
}

// Planner expands seeds into block lists for one acting account.
type Planner struct {
	graph           Graph
	actingAccountID string
	interactionAuth xapi.AuthMode
	pageSize        int
	logger          *zap.Logger
}

// NewPlanner validates configuration and returns a Planner.
func NewPlanner(configuration PlannerConfig) (*Planner, error) {
	if configuration.Graph == nil {
		return nil, errNilGraph
	}
	actingAccountID := strings.TrimSpace(configuration.ActingAccountID)
	if actingAccountID == "" {
		return nil, errMissingActingAccountID
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		graph:           configuration.Graph,
		actingAccountID: actingAccountID,
		interactionAuth: configuration.InteractionAuth,
		pageSize:        configuration.PageSize,
		logger:          logger,
	}, nil
}

// PlanInput parses raw as a seed and plans it. Malformed input fails before
// any request is made.
func (planner *Planner) PlanInput(ctx context.Context, raw string) (Plan, error) {
	parsedSeed, err := seed.Parse(raw)
	if err != nil {
		return Plan{}, err
	}
	return planner.Plan(ctx, parsedSeed)
}

// Plan dispatches on the seed kind.
func (planner *Planner) Plan(ctx context.Context, parsedSeed seed.Seed) (Plan, error) {
	switch parsedSeed.Kind {
	case seed.KindTweet:
		return planner.PlanTweet(ctx, parsedSeed)
	case seed.KindAccount:
		return planner.PlanAccount(ctx, parsedSeed)
	default:
		return Plan{}, fmt.Errorf(unsupportedKindFormat, ErrUnsupportedSeed, parsedSeed.Kind)
	}
}

// PlanTweet blocks the tweet's likers, retweeters, the author's followers and
// the author.
func (planner *Planner) PlanTweet(ctx context.Context, parsedSeed seed.Seed) (Plan, error) {
	target, err := planner.resolveTarget(ctx, parsedSeed)
	if err != nil {
		return Plan{}, err
	}
	likers, err := planner.collect(ctx, DimensionLikers, planner.graph.LikingUsers(parsedSeed.TweetID, planner.interactionAuth))
	if err != nil {
		return Plan{}, err
	}
	retweeters, err := planner.collect(ctx, DimensionRetweeters, planner.graph.Retweeters(parsedSeed.TweetID, planner.interactionAuth))
	if err != nil {
		return Plan{}, err
	}
	targetFollowers, err := planner.collect(ctx, DimensionTargetFollowers, planner.graph.Followers(target.AccountID, planner.interactionAuth))
	if err != nil {
		return Plan{}, err
	}
	interactions := InteractionSets{
		Likers:          likers,
		Retweeters:      retweeters,
		TargetFollowers: targetFollowers,
		Target:          accountset.FromRecords(target),
	}
	return planner.finish(ctx, parsedSeed, target, interactions)
}

// PlanAccount blocks the account and its followers.
func (planner *Planner) PlanAccount(ctx context.Context, parsedSeed seed.Seed) (Plan, error) {
	target, err := planner.resolveTarget(ctx, parsedSeed)
	if err != nil {
		return Plan{}, err
	}
	targetFollowers, err := planner.collect(ctx, DimensionTargetFollowers, planner.graph.Followers(target.AccountID, planner.interactionAuth))
	if err != nil {
		return Plan{}, err
	}
	interactions := InteractionSets{
		TargetFollowers: targetFollowers,
		Target:          accountset.FromRecords(target),
	}
	return planner.finish(ctx, parsedSeed, target, interactions)
}

func (planner *Planner) finish(ctx context.Context, parsedSeed seed.Seed, target accountset.AccountRecord, interactions InteractionSets) (Plan, error) {
	protective, err := planner.protectiveSets(ctx)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{
		Seed:         parsedSeed,
		Target:       target,
		Interactions: interactions,
		Protective:   protective,
		BlockList:    Combine(interactions.All(), protective.All()),
	}
	planner.logger.Info(logMessagePlanned,
		zap.Stringer(logFieldSeed, parsedSeed),
		zap.Int(logFieldInteractions, accountset.Union(interactions.All()...).Len()),
		zap.Int(logFieldProtected, accountset.Union(protective.All()...).Len()),
		zap.Int(logFieldBlockList, plan.BlockList.Len()),
	)
	return plan, nil
}

func (planner *Planner) protectiveSets(ctx context.Context) (ProtectiveSets, error) {
	followers, err := planner.collect(ctx, DimensionMyFollowers, planner.graph.Followers(planner.actingAccountID, xapi.UserContext))
	if err != nil {
		return ProtectiveSets{}, err
	}
	following, err := planner.collect(ctx, DimensionMyFollowing, planner.graph.Following(planner.actingAccountID, xapi.UserContext))
	if err != nil {
		return ProtectiveSets{}, err
	}
	return ProtectiveSets{
		Followers: followers,
		Following: following,
		Self:      accountset.FromIDs(planner.actingAccountID),
	}, nil
}

func (planner *Planner) resolveTarget(ctx context.Context, parsedSeed seed.Seed) (accountset.AccountRecord, error) {
	target, err := planner.graph.UserByUsername(ctx, parsedSeed.Handle, planner.interactionAuth)
	if err != nil {
		return accountset.AccountRecord{}, fmt.Errorf(resolveTargetErrorFormat, parsedSeed.Handle, err)
	}
	return target, nil
}

func (planner *Planner) collect(ctx context.Context, dimension string, fetch collector.PageFetcher) (accountset.Set, error) {
	options := []collector.Option{collector.WithDimension(dimension), collector.WithLogger(planner.logger)}
	if planner.pageSize > 0 {
		options = append(options, collector.WithPageSize(planner.pageSize))
	}
	collected, err := collector.Collect(ctx, fetch, options...)
	if err != nil {
		return nil, fmt.Errorf(collectErrorFormat, dimension, err)
	}
	return collected, nil
}

func nonNil(sets ...accountset.Set) []accountset.Set {
	present := make([]accountset.Set, 0, len(sets))
	for _, set := range sets {
		if set != nil {
			present = append(present, set)
		}
	}
	return present
}
