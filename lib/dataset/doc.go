// Package dataset loads, writes and generates package data sets.
//
// Supported formats (chosen by file extension):
//   - JSON: an array of packages in the model's JSON form
//   - YAML: the same structure, decoded with yaml.v3
//   - CSV: one package per row, the header names the flat fields (the
//     scraper aliases gitcloneurl, licenses and firstsubmitted are accepted).
//     An empty optional cell means the field is absent. The dependencies
//     column holds "group=pkg,pkg;group2=pkg", the comments column a JSON
//     array.
//
// Generate builds a deterministic synthetic data set for benchmark runs.
package dataset
