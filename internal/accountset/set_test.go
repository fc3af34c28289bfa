package accountset_test

import (
	"testing"

	"github.com/f-sync/tweeblock/internal/accountset"
)

func TestSetAddRecordCollapsesDuplicates(t *testing.T) {
	set := accountset.New()
	set.Add("1")
	set.AddRecord(accountset.AccountRecord{AccountID: "1", UserName: "first", DisplayName: "First"})
	set.AddRecord(accountset.AccountRecord{AccountID: "1", UserName: "ignored"})
	set.Add("  ")

	if set.Len() != 1 {
		t.Fatalf("expected one member, got %d", set.Len())
	}
	record := set["1"]
	if record.UserName != "first" {
		t.Fatalf("expected username to be filled once, got %q", record.UserName)
	}
	if record.DisplayName != "First" {
		t.Fatalf("expected display name to be filled, got %q", record.DisplayName)
	}
}

func TestSetAlgebra(t *testing.T) {
	testCases := []struct {
		name        string
		operation   func() accountset.Set
		expectedIDs []string
	}{
		{
			name: "union of overlapping sets",
			operation: func() accountset.Set {
				return accountset.Union(accountset.FromIDs("A", "B"), accountset.FromIDs("B", "C"), accountset.FromIDs("C", "D"))
			},
			expectedIDs: []string{"A", "B", "C", "D"},
		},
		{
			name: "union of nothing",
			operation: func() accountset.Set {
				return accountset.Union()
			},
			expectedIDs: []string{},
		},
		{
			name: "difference removes excluded members",
			operation: func() accountset.Set {
				return accountset.FromIDs("A", "B", "C").Difference(accountset.FromIDs("B", "Z"))
			},
			expectedIDs: []string{"A", "C"},
		},
		{
			name: "difference with nil exclusion",
			operation: func() accountset.Set {
				return accountset.FromIDs("A").Difference(nil)
			},
			expectedIDs: []string{"A"},
		},
		{
			name: "intersection",
			operation: func() accountset.Set {
				return accountset.FromIDs("A", "B", "C").Intersect(accountset.FromIDs("C", "B", "X"))
			},
			expectedIDs: []string{"B", "C"},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			assertIDsEqual(t, testCase.operation().IDs(), testCase.expectedIDs)
		})
	}
}

func TestSetDifferenceDoesNotMutateOperands(t *testing.T) {
	source := accountset.FromIDs("A", "B")
	excluded := accountset.FromIDs("B")

	_ = source.Difference(excluded)

	assertIDsEqual(t, source.IDs(), []string{"A", "B"})
	assertIDsEqual(t, excluded.IDs(), []string{"B"})
}

func TestSetRecordsSortedByLabel(t *testing.T) {
	set := accountset.FromRecords(
		accountset.AccountRecord{AccountID: "3", DisplayName: "charlie"},
		accountset.AccountRecord{AccountID: "1", UserName: "Bravo"},
		accountset.AccountRecord{AccountID: "2", DisplayName: "alpha"},
		accountset.AccountRecord{AccountID: "0"},
	)

	records := set.Records()
	expectedOrder := []string{"0", "2", "1", "3"}
	if len(records) != len(expectedOrder) {
		t.Fatalf("records length mismatch: got %d, want %d", len(records), len(expectedOrder))
	}
	for index, record := range records {
		if record.AccountID != expectedOrder[index] {
			t.Fatalf("records[%d] = %s, want %s", index, record.AccountID, expectedOrder[index])
		}
	}
}

func assertIDsEqual(t *testing.T, actualIDs []string, expectedIDs []string) {
	t.Helper()
	if len(actualIDs) != len(expectedIDs) {
		t.Fatalf("length mismatch: got %v, want %v", actualIDs, expectedIDs)
	}
	for index := range actualIDs {
		if actualIDs[index] != expectedIDs[index] {
			t.Fatalf("ids[%d] = %s, want %s", index, actualIDs[index], expectedIDs[index])
		}
	}
}
