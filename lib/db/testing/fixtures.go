package testing

import (
	"github.com/ValentinKolb/dbBench/lib/model"
)

// Fixture returns the packages used by the conformance suite:
//
//   - alpha: 30 votes, all optional fields set (keywords is the empty
//     string), "rust" listed in two dependency groups, two comments
//   - bravo: 20 votes, all optional fields absent, depends on "rust"
//   - charlie: 10 votes, depends on "sudo", no comments
//   - delta: 40 votes, no dependencies, one optional field set
//
// "rust" is a dependency of exactly 2 packages, "go" of none.
func Fixture() []model.PackageData {
	return []model.PackageData{
		{
			Basic: model.BasicPackageData{
				Name:                 "alpha",
				Version:              "1.2.0-1",
				PathToAdditionalData: "/packages/alpha",
				Votes:                30,
				Popularity:           1.25,
				Description:          "first package",
				Maintainer:           "anna",
				LastUpdated:          "2023-04-01 10:00 (UTC)",
			},
			Additional: model.AdditionalPackageData{
				GitCloneURL:    "https://aur.archlinux.org/alpha.git",
				Keywords:       model.StringPtr(""),
				License:        model.StringPtr("MIT"),
				Conflicts:      model.StringPtr("alpha-git"),
				Provides:       model.StringPtr("alpha-bin"),
				Submitter:      "anna",
				FirstSubmitted: "2020-01-01 08:00 (UTC)",
			},
			Dependencies: []model.PackageDependency{
				{Group: "depends", Packages: []string{"rust", "glibc"}},
				{Group: "makedepends", Packages: []string{"rust", "cmake"}},
			},
			Comments: []model.Comment{
				{Header: "ben commented on 2023-04-02", Content: "works fine"},
				{Header: "carl commented on 2023-04-03", Content: "needs\nmultiline: support"},
			},
		},
		{
			Basic: model.BasicPackageData{
				Name:                 "bravo",
				Version:              "0.9",
				PathToAdditionalData: "/packages/bravo",
				Votes:                20,
				Popularity:           0.5,
				Description:          "second package",
				Maintainer:           "ben",
				LastUpdated:          "2022-11-11 11:11 (UTC)",
			},
			Additional: model.AdditionalPackageData{
				GitCloneURL:    "https://aur.archlinux.org/bravo.git",
				Submitter:      "ben",
				FirstSubmitted: "2019-05-05 05:05 (UTC)",
			},
			Dependencies: []model.PackageDependency{
				{Group: "depends", Packages: []string{"rust"}},
			},
			Comments: []model.Comment{
				{Header: "anna commented on 2022-12-01", Content: "thanks"},
			},
		},
		{
			Basic: model.BasicPackageData{
				Name:                 "charlie",
				Version:              "2.0",
				PathToAdditionalData: "/packages/charlie",
				Votes:                10,
				Popularity:           3.75,
				Description:          "third package",
				Maintainer:           "carl",
				LastUpdated:          "2021-01-01 00:00 (UTC)",
			},
			Additional: model.AdditionalPackageData{
				GitCloneURL:    "https://aur.archlinux.org/charlie.git",
				License:        model.StringPtr("GPL3"),
				Submitter:      "carl",
				FirstSubmitted: "2018-02-02 02:02 (UTC)",
			},
			Dependencies: []model.PackageDependency{
				{Group: "depends", Packages: []string{"sudo"}},
			},
			Comments: []model.Comment{},
		},
		{
			Basic: model.BasicPackageData{
				Name:                 "delta",
				Version:              "10.1",
				PathToAdditionalData: "/packages/delta",
				Votes:                40,
				Popularity:           0.125,
				Description:          "fourth package",
				Maintainer:           "dora",
				LastUpdated:          "2024-06-30 23:59 (UTC)",
			},
			Additional: model.AdditionalPackageData{
				GitCloneURL:    "https://aur.archlinux.org/delta.git",
				Provides:       model.StringPtr("delta"),
				Submitter:      "dora",
				FirstSubmitted: "2024-01-01 00:00 (UTC)",
			},
			Dependencies: []model.PackageDependency{},
			Comments:     []model.Comment{},
		},
	}
}

// FixtureByName returns the fixture package with the given name.
func FixtureByName(name string) model.PackageData {
	for _, p := range Fixture() {
		if p.Basic.Name == name {
			return p
		}
	}
	panic("unknown fixture " + name)
}

// Names of the fixture packages ranked by votes, descending.
var fixtureByVotes = []string{"delta", "alpha", "bravo", "charlie"}
