package dataset

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/ValentinKolb/dbBench/lib/model"
)

// commonDeps are dependency names shared by many generated packages, so
// occurrence counts are interesting
var commonDeps = []string{
	"glibc", "gcc-libs", "rust", "go", "python", "cmake", "git", "openssl",
	"zlib", "qt6-base", "gtk3", "nodejs", "npm", "sudo", "bash",
}

var groups = []string{"depends", "makedepends", "optdepends", "checkdepends"}

var maintainers = []string{"anna", "ben", "carl", "dora", "emil", "fiona", "greta"}

// Generate builds n synthetic packages. The same seed always yields the same
// packages. About every fifth package lacks each optional field.
func Generate(n int, seed int64) []model.PackageData {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)

	pkgs := make([]model.PackageData, n)
	for i := range pkgs {
		name := fmt.Sprintf("pkg-%05d", i)
		maintainer := maintainers[rng.Intn(len(maintainers))]
		submitted := base.Add(time.Duration(rng.Intn(3*365*24)) * time.Hour)
		updated := submitted.Add(time.Duration(rng.Intn(5*365*24)) * time.Hour)

		pkgs[i] = model.PackageData{
			Basic: model.BasicPackageData{
				Name:                 name,
				Version:              fmt.Sprintf("%d.%d.%d-%d", rng.Intn(10), rng.Intn(20), rng.Intn(50), 1+rng.Intn(3)),
				PathToAdditionalData: "/packages/" + name,
				Votes:                int32(rng.Intn(5000)),
				Popularity:           float32(rng.Intn(100000)) / 1000,
				Description:          fmt.Sprintf("Synthetic package number %d", i),
				Maintainer:           maintainer,
				LastUpdated:          updated.Format("2006-01-02 15:04 (UTC)"),
			},
			Additional: model.AdditionalPackageData{
				GitCloneURL:    fmt.Sprintf("https://aur.archlinux.org/%s.git", name),
				Keywords:       maybe(rng, "synthetic benchmark"),
				License:        maybe(rng, []string{"MIT", "GPL3", "Apache-2.0", "BSD"}[rng.Intn(4)]),
				Conflicts:      maybe(rng, name+"-git"),
				Provides:       maybe(rng, name),
				Submitter:      maintainer,
				FirstSubmitted: submitted.Format("2006-01-02 15:04 (UTC)"),
			},
			Dependencies: generateDependencies(rng, i),
			Comments:     generateComments(rng, updated),
		}
	}
	return pkgs
}

// maybe returns nil for roughly a fifth of the calls
func maybe(rng *rand.Rand, s string) *string {
	if rng.Intn(5) == 0 {
		return nil
	}
	return &s
}

func generateDependencies(rng *rand.Rand, i int) []model.PackageDependency {
	deps := []model.PackageDependency{}
	for _, g := range groups[:rng.Intn(len(groups)+1)] {
		pkgs := []string{}
		for j := rng.Intn(4); j >= 0; j-- {
			if i > 0 && rng.Intn(3) == 0 {
				// depend on an earlier generated package
				pkgs = append(pkgs, fmt.Sprintf("pkg-%05d", rng.Intn(i)))
			} else {
				pkgs = append(pkgs, commonDeps[rng.Intn(len(commonDeps))])
			}
		}
		deps = append(deps, model.PackageDependency{Group: g, Packages: pkgs})
	}
	return deps
}

func generateComments(rng *rand.Rand, after time.Time) []model.Comment {
	comments := []model.Comment{}
	for j := rng.Intn(4); j > 0; j-- {
		at := after.Add(time.Duration(rng.Intn(90*24)) * time.Hour)
		comments = append(comments, model.Comment{
			Header:  fmt.Sprintf("%s commented on %s", maintainers[rng.Intn(len(maintainers))], at.Format("2006-01-02 15:04 (UTC)")),
			Content: fmt.Sprintf("Comment %d: builds fine on %s.", j, at.Format("2006-01-02")),
		})
	}
	return comments
}
