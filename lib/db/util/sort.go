package util

import (
	"cmp"
	"slices"
	"strings"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/model"
)

// --------------------------------------------------------------------------
// Ranking
// --------------------------------------------------------------------------

// CompareBasicByField returns a comparator ordering packages ascending by the
// given ranking field. Numeric fields compare numerically, all others
// lexicographically. Equal values fall back to the package name so the order
// is total.
func CompareBasicByField(field string) (func(a, b model.BasicPackageData) int, error) {
	if err := db.ValidateRankingField(field); err != nil {
		return nil, err
	}

	var byField func(a, b model.BasicPackageData) int
	switch field {
	case model.FieldName:
		byField = func(a, b model.BasicPackageData) int { return 0 }
	case model.FieldVersion:
		byField = func(a, b model.BasicPackageData) int { return strings.Compare(a.Version, b.Version) }
	case model.FieldPathToAdditionalData:
		byField = func(a, b model.BasicPackageData) int {
			return strings.Compare(a.PathToAdditionalData, b.PathToAdditionalData)
		}
	case model.FieldVotes:
		byField = func(a, b model.BasicPackageData) int { return cmp.Compare(a.Votes, b.Votes) }
	case model.FieldPopularity:
		byField = func(a, b model.BasicPackageData) int { return cmp.Compare(a.Popularity, b.Popularity) }
	case model.FieldDescription:
		byField = func(a, b model.BasicPackageData) int { return strings.Compare(a.Description, b.Description) }
	case model.FieldMaintainer:
		byField = func(a, b model.BasicPackageData) int { return strings.Compare(a.Maintainer, b.Maintainer) }
	case model.FieldLastUpdated:
		byField = func(a, b model.BasicPackageData) int { return strings.Compare(a.LastUpdated, b.LastUpdated) }
	}

	return func(a, b model.BasicPackageData) int {
		if c := byField(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	}, nil
}

// SortBasicByField sorts pkgs in place, descending by field.
// Unsupported fields fail before pkgs is touched.
func SortBasicByField(pkgs []model.BasicPackageData, field string) error {
	compare, err := CompareBasicByField(field)
	if err != nil {
		return err
	}
	slices.SortFunc(pkgs, func(a, b model.BasicPackageData) int {
		return compare(b, a)
	})
	return nil
}

// Page returns the window [start, end) of s, clamped to its bounds.
func Page[T any](s []T, start, end uint32) []T {
	offset, count := db.Window(start, end)
	if offset >= len(s) {
		return s[:0]
	}
	if offset+count > len(s) {
		count = len(s) - offset
	}
	return s[offset : offset+count]
}

// TopN returns the first n packages of pkgs ranked descending by field.
func TopN(pkgs []model.BasicPackageData, field string, n uint32) ([]model.BasicPackageData, error) {
	if err := SortBasicByField(pkgs, field); err != nil {
		return nil, err
	}
	return Page(pkgs, 0, n), nil
}

// Names projects the package names.
func Names(pkgs []model.BasicPackageData) []string {
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	return names
}

// --------------------------------------------------------------------------
// Occurrences
// --------------------------------------------------------------------------

// OccurrenceCounter tallies in how many packages each requested name
// appears as a dependency. Unrequested names are ignored.
type OccurrenceCounter struct {
	counts map[string]int
}

// NewOccurrenceCounter creates a counter with all requested names at 0.
func NewOccurrenceCounter(names []string) *OccurrenceCounter {
	counts := make(map[string]int, len(names))
	for _, n := range names {
		counts[n] = 0
	}
	return &OccurrenceCounter{counts: counts}
}

// AddPackage counts the dependency names of one package. A name listed in
// several groups of the same package counts once.
func (c *OccurrenceCounter) AddPackage(depNames []string) {
	seen := make(map[string]struct{}, len(depNames))
	for _, n := range depNames {
		if _, ok := c.counts[n]; !ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		c.counts[n]++
	}
}

// Result returns the counts.
func (c *OccurrenceCounter) Result() map[string]int {
	return c.counts
}
