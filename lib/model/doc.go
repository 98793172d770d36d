// Package model contains the backend independent representation of an AUR
// style package: its basic listing data, additional details, dependency groups
// and comments.
//
// Packages are built in one of two ways:
//   - from typed sources (JSON or YAML documents), using the struct tags
//   - from flat string mappings (hashes of key/value stores, CSV rows), using
//     the validating FlatDecoder
//
// The flat path never falls back to defaults. A missing required field fails
// with a MissingSourceData FieldError, a field that cannot be converted fails
// with a ParseError FieldError. Both name the offending field.
package model
