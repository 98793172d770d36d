package testing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/db/util"
	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/google/go-cmp/cmp"
)

// DBFactory creates a connected PkgDB on an empty database.
// It may use t to skip or fail when the backend cannot be reached.
type DBFactory func(t testing.TB) db.PkgDB

// CustomQueries holds backend-native queries for the custom query tests.
// Valid must succeed on any database state, Invalid must be rejected by the
// backend. Empty strings skip the respective test.
type CustomQueries struct {
	Valid   string
	Invalid string
}

// RunPkgDBTests runs the conformance suite for a PkgDB implementation.
func RunPkgDBTests(t *testing.T, name string, factory DBFactory, queries CustomQueries) {
	t.Run(name, func(t *testing.T) {
		t.Run("InsertGet", func(t *testing.T) {
			testInsertGet(t, factory(t))
		})

		t.Run("GetMissing", func(t *testing.T) {
			testGetMissing(t, factory(t))
		})

		t.Run("OptionalFields", func(t *testing.T) {
			testOptionalFields(t, factory(t))
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory(t))
		})

		t.Run("SortByVotes", func(t *testing.T) {
			testSortByVotes(t, factory(t))
		})

		t.Run("SortByOtherFields", func(t *testing.T) {
			testSortByOtherFields(t, factory(t))
		})

		t.Run("SortTies", func(t *testing.T) {
			testSortTies(t, factory(t))
		})

		t.Run("UnsupportedField", func(t *testing.T) {
			testUnsupportedField(t, factory(t))
		})

		t.Run("MostVoted", func(t *testing.T) {
			testMostVoted(t, factory(t))
		})

		t.Run("RemoveComments", func(t *testing.T) {
			testRemoveComments(t, factory(t))
		})

		t.Run("Occurrences", func(t *testing.T) {
			testOccurrences(t, factory(t))
		})

		t.Run("EmptyDatabase", func(t *testing.T) {
			testEmptyDatabase(t, factory(t))
		})

		t.Run("CustomQuery", func(t *testing.T) {
			testCustomQuery(t, factory(t), queries)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// insertAll inserts pkgs and stops the test on the first error
func insertAll(t testing.TB, database db.PkgDB, pkgs ...model.PackageData) {
	t.Helper()
	for _, p := range pkgs {
		res, err := database.InsertPkg(context.Background(), p)
		if err != nil {
			t.Fatalf("InsertPkg(%s) failed: %v", p.Basic.Name, err)
		}
		if res.Elapsed() < 0 {
			t.Errorf("InsertPkg(%s) reported negative duration %s", p.Basic.Name, res.Elapsed())
		}
	}
}

func getPkg(t testing.TB, database db.PkgDB, name string) model.PackageData {
	t.Helper()
	res, err := database.GetPkg(context.Background(), name)
	if err != nil {
		t.Fatalf("GetPkg(%s) failed: %v", name, err)
	}
	return res.Result
}

func sortNames(t testing.TB, database db.PkgDB, field string, start, end uint32) []string {
	t.Helper()
	res, err := database.SortPkgsByFieldWithLimit(context.Background(), field, start, end)
	if err != nil {
		t.Fatalf("SortPkgsByFieldWithLimit(%s, %d, %d) failed: %v", field, start, end, err)
	}
	return res.Result
}

// expectPkg compares got with want after normalizing both
func expectPkg(t testing.TB, want, got model.PackageData) {
	t.Helper()
	want.Normalize()
	got.Normalize()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("package %s mismatch (-want +got):\n%s", want.Basic.Name, diff)
	}
}

// expectNames compares rankings, nil and empty are considered equal
func expectNames(t testing.TB, what string, want, got []string) {
	t.Helper()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", what, diff)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, Fixture()...)

	for _, want := range Fixture() {
		res, err := database.GetPkg(context.Background(), want.Basic.Name)
		if err != nil {
			t.Errorf("GetPkg(%s) failed: %v", want.Basic.Name, err)
			continue
		}
		if res.Elapsed() < 0 {
			t.Errorf("GetPkg(%s) reported negative duration %s", want.Basic.Name, res.Elapsed())
		}
		expectPkg(t, want, res.Result)
	}
}

func testGetMissing(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, FixtureByName("alpha"))

	_, err := database.GetPkg(context.Background(), "does-not-exist")
	if err == nil {
		t.Fatal("Expected NotFound for a missing package, got nil")
	}
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected NotFound for a missing package, got %v (kind %s)", err, db.KindOf(err))
	}
}

func testOptionalFields(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, FixtureByName("alpha"), FixtureByName("bravo"))

	// bravo has no optional field at all
	bravo := getPkg(t, database, "bravo")
	for field, v := range map[string]*string{
		model.FieldKeywords:  bravo.Additional.Keywords,
		model.FieldLicense:   bravo.Additional.License,
		model.FieldConflicts: bravo.Additional.Conflicts,
		model.FieldProvides:  bravo.Additional.Provides,
	} {
		if v != nil {
			t.Errorf("Expected %s of bravo to be absent, got %q", field, *v)
		}
	}

	// alpha has keywords set to the empty string, which must not become absent
	alpha := getPkg(t, database, "alpha")
	if alpha.Additional.Keywords == nil {
		t.Error("Expected empty keywords of alpha to be present, got absent")
	} else if *alpha.Additional.Keywords != "" {
		t.Errorf("Expected empty keywords of alpha, got %q", *alpha.Additional.Keywords)
	}
}

func testOverwrite(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, Fixture()...)

	// replace alpha with fewer dependencies and comments
	updated := FixtureByName("alpha")
	updated.Basic.Votes = 5
	updated.Basic.Description = "rewritten"
	updated.Additional.License = nil
	updated.Dependencies = []model.PackageDependency{
		{Group: "depends", Packages: []string{"go"}},
	}
	updated.Comments = []model.Comment{
		{Header: "dora commented on 2024-01-01", Content: "new"},
	}
	insertAll(t, database, updated)

	expectPkg(t, updated, getPkg(t, database, "alpha"))

	// the replaced dependencies must be reflected in the counts
	res, err := database.GetPackagesOccurrencesInDeps(context.Background(), []string{"rust", "go"})
	if err != nil {
		t.Fatalf("GetPackagesOccurrencesInDeps failed: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"rust": 1, "go": 1}, res.Result); diff != "" {
		t.Errorf("occurrences after overwrite mismatch (-want +got):\n%s", diff)
	}

	// and in the ranking
	expectNames(t, "ranking after overwrite", []string{"delta", "bravo", "charlie", "alpha"},
		sortNames(t, database, model.FieldVotes, 0, 10))
}

func testSortByVotes(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, Fixture()...)

	expectNames(t, "full ranking", fixtureByVotes, sortNames(t, database, model.FieldVotes, 0, 4))

	// k larger than the number of packages returns all of them
	expectNames(t, "oversized window", fixtureByVotes, sortNames(t, database, model.FieldVotes, 0, 100))

	// inner window
	expectNames(t, "window [1,3)", fixtureByVotes[1:3], sortNames(t, database, model.FieldVotes, 1, 3))

	// windows past the end or inverted are empty
	expectNames(t, "window past the end", nil, sortNames(t, database, model.FieldVotes, 10, 20))
	expectNames(t, "inverted window", nil, sortNames(t, database, model.FieldVotes, 3, 1))
	expectNames(t, "empty window", nil, sortNames(t, database, model.FieldVotes, 2, 2))

	// votes are non-increasing along the ranking
	names := sortNames(t, database, model.FieldVotes, 0, 4)
	for i := 1; i < len(names); i++ {
		prev, cur := FixtureByName(names[i-1]), FixtureByName(names[i])
		if cur.Basic.Votes > prev.Basic.Votes {
			t.Errorf("Ranking not descending at %d: %s (%d) before %s (%d)",
				i, prev.Basic.Name, prev.Basic.Votes, cur.Basic.Name, cur.Basic.Votes)
		}
	}
}

func testSortByOtherFields(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, Fixture()...)

	// all fixture values are distinct, so the expected order follows from the
	// reference comparator
	basics := make([]model.BasicPackageData, 0, len(Fixture()))
	for _, p := range Fixture() {
		basics = append(basics, p.Basic)
	}

	for _, field := range db.RankingFields {
		want := slices.Clone(basics)
		if err := util.SortBasicByField(want, field); err != nil {
			t.Fatalf("SortBasicByField(%s) failed: %v", field, err)
		}
		expectNames(t, fmt.Sprintf("ranking by %s", field), util.Names(want),
			sortNames(t, database, field, 0, uint32(len(basics))))
	}
}

func testSortTies(t *testing.T, database db.PkgDB) {
	defer database.Close()

	var pkgs []model.PackageData
	for _, name := range []string{"tie-b", "tie-e", "tie-c", "tie-a", "tie-d"} {
		p := FixtureByName("bravo")
		p.Basic.Name = name
		p.Basic.Votes = 7
		p.Basic.Maintainer = "same"
		p.Basic.Version = "1.0"
		pkgs = append(pkgs, p)
	}
	top := FixtureByName("bravo")
	top.Basic.Name = "tie-0"
	top.Basic.Votes = 8
	top.Basic.Maintainer = "zed"
	top.Basic.Version = "2.0"
	insertAll(t, database, append(pkgs, top)...)

	// equal values are ranked by name, descending, for numbers and strings
	want := []string{"tie-0", "tie-e", "tie-d", "tie-c", "tie-b", "tie-a"}
	for _, field := range []string{model.FieldVotes, model.FieldMaintainer, model.FieldVersion} {
		expectNames(t, fmt.Sprintf("tied ranking by %s", field), want,
			sortNames(t, database, field, 0, uint32(len(want))))
		// a window cutting through the tied run
		expectNames(t, fmt.Sprintf("tied window by %s", field), want[2:4],
			sortNames(t, database, field, 2, 4))
	}
}

func testUnsupportedField(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, Fixture()...)

	for _, field := range []string{"bogus_field", "", "votes; DROP TABLE", "git_clone_url"} {
		_, err := database.SortPkgsByFieldWithLimit(context.Background(), field, 0, 10)
		if !errors.Is(err, db.ErrUnsupportedField) {
			t.Errorf("Expected UnsupportedField for %q, got %v", field, err)
		}
	}
}

func testMostVoted(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, Fixture()...)

	for _, n := range []uint32{0, 1, 2, 4, 10} {
		res, err := database.GetMostVotedPkgs(context.Background(), n)
		if err != nil {
			t.Fatalf("GetMostVotedPkgs(%d) failed: %v", n, err)
		}

		// the result is the prefix of the vote ranking
		want := sortNames(t, database, model.FieldVotes, 0, n)
		expectNames(t, fmt.Sprintf("most voted (n=%d)", n), want, util.Names(res.Result))

		// and carries the full basic data
		for _, got := range res.Result {
			if diff := cmp.Diff(FixtureByName(got.Name).Basic, got); diff != "" {
				t.Errorf("basic data of %s mismatch (-want +got):\n%s", got.Name, diff)
			}
		}
	}
}

func testRemoveComments(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, Fixture()...)

	if _, err := database.RemoveComments(context.Background(), "alpha"); err != nil {
		t.Fatalf("RemoveComments failed: %v", err)
	}

	want := FixtureByName("alpha")
	want.Comments = nil
	expectPkg(t, want, getPkg(t, database, "alpha"))

	// other packages keep their comments
	expectPkg(t, FixtureByName("bravo"), getPkg(t, database, "bravo"))

	// removing twice is fine
	if _, err := database.RemoveComments(context.Background(), "alpha"); err != nil {
		t.Errorf("Second RemoveComments failed: %v", err)
	}

	// a missing package is not created by removing its comments
	if _, err := database.RemoveComments(context.Background(), "does-not-exist"); err != nil {
		t.Errorf("RemoveComments of a missing package failed: %v", err)
	}
	if _, err := database.GetPkg(context.Background(), "does-not-exist"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected NotFound after RemoveComments of a missing package, got %v", err)
	}
}

func testOccurrences(t *testing.T, database db.PkgDB) {
	defer database.Close()

	insertAll(t, database, Fixture()...)

	tests := []struct {
		names []string
		want  map[string]int
	}{
		{[]string{"rust", "go"}, map[string]int{"rust": 2, "go": 0}},
		{[]string{"sudo", "cmake", "glibc"}, map[string]int{"sudo": 1, "cmake": 1, "glibc": 1}},
		{[]string{"alpha"}, map[string]int{"alpha": 0}},
		{[]string{"rust", "rust"}, map[string]int{"rust": 2}},
		{[]string{}, map[string]int{}},
	}

	for _, tt := range tests {
		res, err := database.GetPackagesOccurrencesInDeps(context.Background(), tt.names)
		if err != nil {
			t.Errorf("GetPackagesOccurrencesInDeps(%v) failed: %v", tt.names, err)
			continue
		}
		got := res.Result
		if got == nil {
			got = map[string]int{}
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("occurrences of %v mismatch (-want +got):\n%s", tt.names, diff)
		}
	}
}

func testEmptyDatabase(t *testing.T, database db.PkgDB) {
	defer database.Close()

	expectNames(t, "ranking of an empty database", nil, sortNames(t, database, model.FieldVotes, 0, 10))

	res, err := database.GetMostVotedPkgs(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetMostVotedPkgs failed: %v", err)
	}
	if len(res.Result) != 0 {
		t.Errorf("Expected no packages, got %v", util.Names(res.Result))
	}

	occ, err := database.GetPackagesOccurrencesInDeps(context.Background(), []string{"rust"})
	if err != nil {
		t.Fatalf("GetPackagesOccurrencesInDeps failed: %v", err)
	}
	if diff := cmp.Diff(map[string]int{"rust": 0}, occ.Result); diff != "" {
		t.Errorf("occurrences mismatch (-want +got):\n%s", diff)
	}
}

func testCustomQuery(t *testing.T, database db.PkgDB, queries CustomQueries) {
	defer database.Close()

	if queries.Valid == "" && queries.Invalid == "" {
		t.Skip("no custom queries configured")
	}

	if queries.Valid != "" {
		res, err := database.RunCustomQuery(context.Background(), queries.Valid)
		if err != nil {
			t.Errorf("RunCustomQuery(%q) failed: %v", queries.Valid, err)
		} else if res.Elapsed() < 0 {
			t.Errorf("RunCustomQuery(%q) reported negative duration", queries.Valid)
		}

		d, err := database.GetCustomQueryTime(context.Background(), queries.Valid)
		if err != nil {
			t.Errorf("GetCustomQueryTime(%q) failed: %v", queries.Valid, err)
		} else if d < 0 {
			t.Errorf("GetCustomQueryTime(%q) reported negative duration", queries.Valid)
		}
	}

	if queries.Invalid != "" {
		_, err := database.RunCustomQuery(context.Background(), queries.Invalid)
		if !errors.Is(err, db.ErrQuery) {
			t.Errorf("Expected QueryError for %q, got %v", queries.Invalid, err)
		}
		if _, err := database.GetCustomQueryTime(context.Background(), queries.Invalid); !errors.Is(err, db.ErrQuery) {
			t.Errorf("Expected QueryError for %q, got %v", queries.Invalid, err)
		}

		// the connection stays usable after a rejected query
		insertAll(t, database, FixtureByName("charlie"))
		expectPkg(t, FixtureByName("charlie"), getPkg(t, database, "charlie"))
	}
}
