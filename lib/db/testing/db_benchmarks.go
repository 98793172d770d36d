package testing

import (
	"context"
	"testing"

	"github.com/ValentinKolb/dbBench/lib/dataset"
	"github.com/ValentinKolb/dbBench/lib/db"
	"github.com/ValentinKolb/dbBench/lib/model"
)

// benchmarkPackages is the size of the generated data set the read
// benchmarks run against
const benchmarkPackages = 500

// RunPkgDBBenchmarks runs all benchmarks for a PkgDB implementation
func RunPkgDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("InsertPkg", func(b *testing.B) {
			benchmarkInsert(b, factory(b))
		})

		b.Run("GetPkg", func(b *testing.B) {
			benchmarkGet(b, factory(b))
		})

		b.Run("SortByVotes", func(b *testing.B) {
			benchmarkSort(b, factory(b), model.FieldVotes)
		})

		b.Run("SortByName", func(b *testing.B) {
			benchmarkSort(b, factory(b), model.FieldName)
		})

		b.Run("MostVoted", func(b *testing.B) {
			benchmarkMostVoted(b, factory(b))
		})

		b.Run("Occurrences", func(b *testing.B) {
			benchmarkOccurrences(b, factory(b))
		})

		b.Run("RemoveComments", func(b *testing.B) {
			benchmarkRemoveComments(b, factory(b))
		})
	})
}

// seed fills the database with the generated data set
func seed(b *testing.B, database db.PkgDB) []model.PackageData {
	b.Helper()
	pkgs := dataset.Generate(benchmarkPackages, 42)
	for _, p := range pkgs {
		if _, err := database.InsertPkg(context.Background(), p); err != nil {
			b.Fatalf("seeding failed: %v", err)
		}
	}
	return pkgs
}

func benchmarkInsert(b *testing.B, database db.PkgDB) {
	defer database.Close()
	pkgs := dataset.Generate(benchmarkPackages, 7)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.InsertPkg(ctx, pkgs[i%len(pkgs)]); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, database db.PkgDB) {
	defer database.Close()
	pkgs := seed(b, database)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.GetPkg(ctx, pkgs[i%len(pkgs)].Basic.Name); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkSort(b *testing.B, database db.PkgDB, field string) {
	defer database.Close()
	seed(b, database)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.SortPkgsByFieldWithLimit(ctx, field, 0, 50); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkMostVoted(b *testing.B, database db.PkgDB) {
	defer database.Close()
	seed(b, database)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.GetMostVotedPkgs(ctx, 20); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkOccurrences(b *testing.B, database db.PkgDB) {
	defer database.Close()
	pkgs := seed(b, database)
	names := []string{pkgs[0].Basic.Name, pkgs[1].Basic.Name, "glibc", "rust"}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.GetPackagesOccurrencesInDeps(ctx, names); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkRemoveComments(b *testing.B, database db.PkgDB) {
	defer database.Close()
	pkgs := seed(b, database)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := database.RemoveComments(ctx, pkgs[i%len(pkgs)].Basic.Name); err != nil {
			b.Fatal(err)
		}
	}
}
