// Package report renders computed block lists for terminals, files and the review page.
package report

import (
	"github.com/f-sync/tweeblock/internal/accountset"
	"github.com/f-sync/tweeblock/internal/blocklist"
)

// DimensionCount is the size of one collected set.
type DimensionCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the presentation form of a blocklist.Plan.
type Summary struct {
	Seed         string                     `json:"seed"`
	Mode         string                     `json:"mode"`
	Target       accountset.AccountRecord   `json:"target"`
	Interactions []DimensionCount           `json:"interactions"`
	Protective   []DimensionCount           `json:"protective"`
	Candidates   int                        `json:"candidates"`
	Excluded     int                        `json:"excluded"`
	BlockList    []accountset.AccountRecord `json:"block_list"`
}

// BlockListIDs returns the block list identifiers in report order.
func (summary Summary) BlockListIDs() []string {
	accountIDs := make([]string, 0, len(summary.BlockList))
	for _, record := range summary.BlockList {
		accountIDs = append(accountIDs, record.AccountID)
	}
	return accountIDs
}

// Build summarizes plan. Dimensions that were not collected are omitted.
func Build(plan blocklist.Plan) Summary {
	interactions := plan.Interactions
	protective := plan.Protective
	candidates := accountset.Union(interactions.All()...)
	protected := accountset.Union(protective.All()...)

	return Summary{
		Seed:   plan.Seed.String(),
		Mode:   plan.Seed.Kind.String(),
		Target: plan.Target,
		Interactions: dimensionCounts(
			namedSet{name: blocklist.DimensionLikers, set: interactions.Likers},
			namedSet{name: blocklist.DimensionRetweeters, set: interactions.Retweeters},
			namedSet{name: blocklist.DimensionTargetFollowers, set: interactions.TargetFollowers},
		),
		Protective: dimensionCounts(
			namedSet{name: blocklist.DimensionMyFollowers, set: protective.Followers},
			namedSet{name: blocklist.DimensionMyFollowing, set: protective.Following},
		),
		Candidates: candidates.Len(),
		Excluded:   candidates.Intersect(protected).Len(),
		BlockList:  plan.BlockList.Records(),
	}
}

type namedSet struct {
	name string
	set  accountset.Set
}

func dimensionCounts(sets ...namedSet) []DimensionCount {
	counts := make([]DimensionCount, 0, len(sets))
	for _, named := range sets {
		if named.set == nil {
			continue
		}
		counts = append(counts, DimensionCount{Name: named.name, Count: named.set.Len()})
	}
	return counts
}
