package model

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Package Entities
// --------------------------------------------------------------------------

// BasicPackageData holds the fields of a package that are shown in listings.
// Name is the primary key in every backend.
type BasicPackageData struct {
	Name                 string  `json:"name" yaml:"name"`
	Version              string  `json:"version" yaml:"version"`
	PathToAdditionalData string  `json:"path_to_additional_data" yaml:"path_to_additional_data"`
	Votes                int32   `json:"votes" yaml:"votes"`
	Popularity           float32 `json:"popularity" yaml:"popularity"`
	Description          string  `json:"description" yaml:"description"`
	Maintainer           string  `json:"maintainer" yaml:"maintainer"`
	LastUpdated          string  `json:"last_updated" yaml:"last_updated"`
}

// AdditionalPackageData holds the detail fields of a package.
// The optional fields are nil when the package has no value for them,
// which is not the same as an empty string.
type AdditionalPackageData struct {
	GitCloneURL    string  `json:"git_clone_url" yaml:"git_clone_url"`
	Keywords       *string `json:"keywords" yaml:"keywords"`
	License        *string `json:"license" yaml:"license"`
	Conflicts      *string `json:"conflicts" yaml:"conflicts"`
	Provides       *string `json:"provides" yaml:"provides"`
	Submitter      string  `json:"submitter" yaml:"submitter"`
	FirstSubmitted string  `json:"first_submitted" yaml:"first_submitted"`
}

// PackageDependency is one dependency group (e.g. "depends", "makedepends")
// with its ordered list of package names.
type PackageDependency struct {
	Group    string   `json:"group" yaml:"group"`
	Packages []string `json:"packages" yaml:"packages"`
}

// Comment is a single user comment of a package.
type Comment struct {
	Header  string `json:"header" yaml:"header"`
	Content string `json:"content" yaml:"content"`
}

// PackageData aggregates everything known about a package.
// Dependencies and Comments keep their insertion order.
type PackageData struct {
	Basic        BasicPackageData      `json:"basic" yaml:"basic"`
	Additional   AdditionalPackageData `json:"additional" yaml:"additional"`
	Dependencies []PackageDependency   `json:"dependencies" yaml:"dependencies"`
	Comments     []Comment             `json:"comments" yaml:"comments"`
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// StringPtr returns a pointer to s, handy for the optional fields.
func StringPtr(s string) *string {
	return &s
}

// Validate checks the invariants of a package: a non-empty name and
// unique dependency group names.
func (p *PackageData) Validate() error {
	if p.Basic.Name == "" {
		return &FieldError{Kind: KindMissing, Field: FieldName, Msg: "package name must not be empty"}
	}
	seen := make(map[string]struct{}, len(p.Dependencies))
	for _, dep := range p.Dependencies {
		if _, ok := seen[dep.Group]; ok {
			return &FieldError{Kind: KindMalformed, Field: "dependencies", Msg: fmt.Sprintf("duplicate dependency group %q", dep.Group)}
		}
		seen[dep.Group] = struct{}{}
	}
	return nil
}

// Normalize replaces nil slices with empty ones, so that a package read back
// from a backend compares equal to the one that was written.
func (p *PackageData) Normalize() {
	if p.Dependencies == nil {
		p.Dependencies = []PackageDependency{}
	}
	for i := range p.Dependencies {
		if p.Dependencies[i].Packages == nil {
			p.Dependencies[i].Packages = []string{}
		}
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
}

// DependsOn reports whether any dependency group of the package lists name.
func (p *PackageData) DependsOn(name string) bool {
	for _, dep := range p.Dependencies {
		for _, pkg := range dep.Packages {
			if pkg == name {
				return true
			}
		}
	}
	return false
}

// String renders the package as indented JSON.
func (p PackageData) String() string {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Sprintf("PackageData{%s}", p.Basic.Name)
	}
	return string(b)
}
