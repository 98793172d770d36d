package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatSource() map[string]string {
	return map[string]string{
		"name":                    "yay",
		"version":                 "12.3.5-1",
		"path_to_additional_data": "/packages/yay",
		"votes":                   "2134",
		"popularity":              "25.75",
		"description":             "Yet another yogurt",
		"maintainer":              "jguer",
		"last_updated":            "2024-03-01 10:00",
		"git_clone_url":           "https://aur.archlinux.org/yay.git",
		"submitter":               "jguer",
		"first_submitted":         "2016-10-05 17:20",
		"license":                 "GPL-3.0-or-later",
	}
}

func TestDecodePackage(t *testing.T) {
	pkg, err := DecodePackage(flatSource())
	require.NoError(t, err)

	assert.Equal(t, "yay", pkg.Basic.Name)
	assert.Equal(t, int32(2134), pkg.Basic.Votes)
	assert.Equal(t, float32(25.75), pkg.Basic.Popularity)
	require.NotNil(t, pkg.Additional.License)
	assert.Equal(t, "GPL-3.0-or-later", *pkg.Additional.License)
	assert.Nil(t, pkg.Additional.Keywords)
	assert.Nil(t, pkg.Additional.Conflicts)
	assert.Nil(t, pkg.Additional.Provides)
	assert.Empty(t, pkg.Dependencies)
	assert.Empty(t, pkg.Comments)
}

func TestDecodePackageMissingField(t *testing.T) {
	src := flatSource()
	delete(src, "maintainer")

	_, err := DecodePackage(src)
	require.Error(t, err)
	assert.True(t, IsMissingSourceData(err))
	assert.False(t, IsParseError(err))
	assert.Contains(t, err.Error(), "maintainer")
}

func TestDecodePackageMalformedField(t *testing.T) {
	for _, field := range []string{"votes", "popularity"} {
		t.Run(field, func(t *testing.T) {
			src := flatSource()
			src[field] = "not-a-number"

			_, err := DecodePackage(src)
			require.Error(t, err)
			assert.True(t, IsParseError(err))

			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, field, fe.Field)
		})
	}
}

func TestDecodeReportsFirstFailure(t *testing.T) {
	src := flatSource()
	delete(src, "name")
	src["votes"] = "x"

	_, err := DecodeBasic(src)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "name", fe.Field)
	assert.Equal(t, KindMissing, fe.Kind)
}

func TestDecodeScraperAliases(t *testing.T) {
	src := flatSource()
	delete(src, "git_clone_url")
	delete(src, "first_submitted")
	delete(src, "license")
	src["gitcloneurl"] = "https://aur.archlinux.org/yay.git"
	src["firstsubmitted"] = "2016-10-05 17:20"
	src["licenses"] = "GPL"

	pkg, err := DecodePackage(src)
	require.NoError(t, err)
	assert.Equal(t, "https://aur.archlinux.org/yay.git", pkg.Additional.GitCloneURL)
	assert.Equal(t, "2016-10-05 17:20", pkg.Additional.FirstSubmitted)
	assert.Equal(t, "GPL", *pkg.Additional.License)
}

func TestEncodeFlatRoundTrip(t *testing.T) {
	pkg, err := DecodePackage(flatSource())
	require.NoError(t, err)

	// empty string is a value, not absence
	pkg.Additional.Keywords = StringPtr("")

	flat := EncodeFlat(pkg.Basic, pkg.Additional)
	_, hasConflicts := flat["conflicts"]
	assert.False(t, hasConflicts)

	again, err := DecodePackage(flat)
	require.NoError(t, err)
	assert.Equal(t, pkg, again)
	require.NotNil(t, again.Additional.Keywords)
	assert.Equal(t, "", *again.Additional.Keywords)
}

func TestDecodeComment(t *testing.T) {
	c, err := DecodeComment(EncodeComment(Comment{Header: "h", Content: "c"}))
	require.NoError(t, err)
	assert.Equal(t, Comment{Header: "h", Content: "c"}, c)

	_, err = DecodeComment(map[string]string{"header": "h"})
	assert.True(t, IsMissingSourceData(err))
}

func TestValidate(t *testing.T) {
	pkg := PackageData{Basic: BasicPackageData{Name: "a"}}
	assert.NoError(t, pkg.Validate())

	pkg.Dependencies = []PackageDependency{{Group: "depends"}, {Group: "depends"}}
	assert.True(t, IsParseError(pkg.Validate()))

	pkg = PackageData{}
	assert.True(t, IsMissingSourceData(pkg.Validate()))
}

func TestDependsOn(t *testing.T) {
	pkg := PackageData{Dependencies: []PackageDependency{
		{Group: "depends", Packages: []string{"glibc", "rust"}},
	}}
	assert.True(t, pkg.DependsOn("rust"))
	assert.False(t, pkg.DependsOn("go"))
}
