// Package util provides helpers shared by the PkgDB adapters and the
// benchmarking commands.
//
// The package contains:
//   - sort: Client side ranking for backends that cannot order by a field
//     themselves (SortBasicByField, Page, TopN) and the OccurrenceCounter used
//     to count dependency occurrences
//   - statistics: Summary statistics (Stats) over duration samples and a
//     thread-safe Recorder collecting them
//
// Ranking always orders descending by the field and breaks ties by name in the
// same direction, so every backend returns the same order for the same data.
package util
