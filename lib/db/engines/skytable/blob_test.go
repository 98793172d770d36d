package skytable

import (
	"testing"

	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/google/go-cmp/cmp"
)

func TestBlobRoundTrip(t *testing.T) {
	basic := model.BasicPackageData{
		Name:                 "yay",
		Version:              "12.3.5-1",
		PathToAdditionalData: "/packages/yay",
		Votes:                2147483647,
		Popularity:           13.37,
		Description:          "Yet another yogurt. Pacman wrapper and AUR helper written in go.",
		Maintainer:           "jguer",
		LastUpdated:          "2024-03-17 21:37 (UTC)",
	}
	gotBasic, err := decodeBasic(encodeBasic(basic))
	if err != nil {
		t.Fatalf("decodeBasic failed: %v", err)
	}
	if diff := cmp.Diff(basic, gotBasic); diff != "" {
		t.Errorf("basic mismatch (-want +got):\n%s", diff)
	}

	for _, additional := range []model.AdditionalPackageData{
		{GitCloneURL: "https://aur.archlinux.org/yay.git", Submitter: "jguer", FirstSubmitted: "2016-10-05"},
		{
			GitCloneURL: "u",
			Keywords:    model.StringPtr(""),
			License:     model.StringPtr("GPL3"),
			Conflicts:   model.StringPtr("yay-bin yay-git"),
			Provides:    model.StringPtr(""),
		},
	} {
		got, err := decodeAdditional(encodeAdditional(additional))
		if err != nil {
			t.Fatalf("decodeAdditional failed: %v", err)
		}
		if diff := cmp.Diff(additional, got); diff != "" {
			t.Errorf("additional mismatch (-want +got):\n%s", diff)
		}
	}

	comment := model.Comment{Header: "h", Content: "line 1\nline 2 \x00 binary"}
	gotComment, err := decodeComment(encodeComment(comment))
	if err != nil {
		t.Fatalf("decodeComment failed: %v", err)
	}
	if diff := cmp.Diff(comment, gotComment); diff != "" {
		t.Errorf("comment mismatch (-want +got):\n%s", diff)
	}

	for _, dep := range []model.PackageDependency{
		{Group: "depends", Packages: []string{"pacman", "git"}},
		{Group: "optdepends", Packages: []string{}},
	} {
		got, err := decodeDependency(encodeDependency(dep))
		if err != nil {
			t.Fatalf("decodeDependency failed: %v", err)
		}
		if diff := cmp.Diff(dep, got); diff != "" {
			t.Errorf("dependency mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestBlobMalformed(t *testing.T) {
	basic := encodeBasic(model.BasicPackageData{Name: "a", Votes: 1})
	dep := encodeDependency(model.PackageDependency{Group: "depends", Packages: []string{"x"}})

	tests := []struct {
		name   string
		decode func() error
	}{
		{"EmptyBasic", func() error { _, err := decodeBasic(nil); return err }},
		{"TruncatedBasic", func() error { _, err := decodeBasic(basic[:len(basic)-1]); return err }},
		{"TrailingBasic", func() error { _, err := decodeBasic(append(basic, 0)); return err }},
		{"EmptyAdditional", func() error { _, err := decodeAdditional([]byte{}); return err }},
		{"TruncatedComment", func() error { _, err := decodeComment([]byte{0, 0, 0, 9, 'a'}); return err }},
		{"TruncatedDependency", func() error { _, err := decodeDependency(dep[:len(dep)-1]); return err }},
		// group "" followed by a huge package count
		{"OversizedCount", func() error { _, err := decodeDependency([]byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !model.IsParseError(err) {
				t.Errorf("Expected parse error, got %v", err)
			}
		})
	}
}
