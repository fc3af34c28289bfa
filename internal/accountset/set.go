package accountset

import (
	"sort"
	"strings"
)

// AccountRecord represents a single X/Twitter account.
type AccountRecord struct {
	AccountID   string `json:"id"`
	UserName    string `json:"username,omitempty"`
	DisplayName string `json:"name,omitempty"`
}

// Set holds account records keyed by account identifier.
type Set map[string]AccountRecord

// New returns an empty set.
func New() Set {
	return Set{}
}

// FromIDs builds a set containing the supplied identifiers.
func FromIDs(accountIDs ...string) Set {
	set := make(Set, len(accountIDs))
	for _, accountID := range accountIDs {
		set.Add(accountID)
	}
	return set
}

// FromRecords builds a set from the supplied records.
func FromRecords(records ...AccountRecord) Set {
	set := make(Set, len(records))
	for _, record := range records {
		set.AddRecord(record)
	}
	return set
}

// Add inserts a bare identifier. Blank identifiers are ignored.
func (set Set) Add(accountID string) {
	set.AddRecord(AccountRecord{AccountID: accountID})
}

// AddRecord inserts record. A record already present keeps its identity and
// only has blank fields filled from the new record.
func (set Set) AddRecord(record AccountRecord) {
	record.AccountID = strings.TrimSpace(record.AccountID)
	if record.AccountID == "" {
		return
	}
	existing, exists := set[record.AccountID]
	if !exists {
		set[record.AccountID] = record
		return
	}
	if existing.UserName == "" {
		existing.UserName = record.UserName
	}
	if existing.DisplayName == "" {
		existing.DisplayName = record.DisplayName
	}
	set[record.AccountID] = existing
}

// Merge folds every record of other into set.
func (set Set) Merge(other Set) {
	for _, record := range other {
		set.AddRecord(record)
	}
}

// Contains reports whether accountID is a member.
func (set Set) Contains(accountID string) bool {
	_, exists := set[accountID]
	return exists
}

// Len returns the number of members.
func (set Set) Len() int {
	return len(set)
}

// Union returns a new set holding every member of the supplied sets.
func Union(sets ...Set) Set {
	union := New()
	for _, set := range sets {
		union.Merge(set)
	}
	return union
}

// Difference returns the members of set that are absent from excluded.
func (set Set) Difference(excluded Set) Set {
	difference := New()
	for accountID, record := range set {
		if excluded.Contains(accountID) {
			continue
		}
		difference[accountID] = record
	}
	return difference
}

// Intersect returns the members present in both sets.
func (set Set) Intersect(other Set) Set {
	intersection := New()
	for accountID, record := range set {
		if other.Contains(accountID) {
			intersection[accountID] = record
		}
	}
	return intersection
}

// IDs returns the member identifiers in ascending order.
func (set Set) IDs() []string {
	accountIDs := make([]string, 0, len(set))
	for accountID := range set {
		accountIDs = append(accountIDs, accountID)
	}
	sort.Strings(accountIDs)
	return accountIDs
}

// Records returns the members sorted by their display label.
func (set Set) Records() []AccountRecord {
	sortedRecords := make([]AccountRecord, 0, len(set))
	for _, record := range set {
		sortedRecords = append(sortedRecords, record)
	}
	sort.Slice(sortedRecords, func(firstIndex, secondIndex int) bool {
		firstKey := strings.ToLower(recordSortKey(sortedRecords[firstIndex]))
		secondKey := strings.ToLower(recordSortKey(sortedRecords[secondIndex]))
		if firstKey == secondKey {
			return sortedRecords[firstIndex].AccountID < sortedRecords[secondIndex].AccountID
		}
		return firstKey < secondKey
	})
	return sortedRecords
}

func recordSortKey(record AccountRecord) string {
	if record.DisplayName != "" {
		return record.DisplayName
	}
	if record.UserName != "" {
		return record.UserName
	}
	return record.AccountID
}
