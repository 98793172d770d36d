package model

import (
	"strconv"

	"github.com/spf13/cast"
)

// Flat field names used by key/value backends and CSV datasets.
const (
	FieldName                 = "name"
	FieldVersion              = "version"
	FieldPathToAdditionalData = "path_to_additional_data"
	FieldVotes                = "votes"
	FieldPopularity           = "popularity"
	FieldDescription          = "description"
	FieldMaintainer           = "maintainer"
	FieldLastUpdated          = "last_updated"

	FieldGitCloneURL    = "git_clone_url"
	FieldKeywords       = "keywords"
	FieldLicense        = "license"
	FieldConflicts      = "conflicts"
	FieldProvides       = "provides"
	FieldSubmitter      = "submitter"
	FieldFirstSubmitted = "first_submitted"

	FieldHeader  = "header"
	FieldContent = "content"
)

// aliases maps alternative source keys (as written by the AUR scraper) to
// the canonical field names.
var aliases = map[string][]string{
	FieldGitCloneURL:    {"gitcloneurl"},
	FieldLicense:        {"licenses"},
	FieldFirstSubmitted: {"firstsubmitted"},
}

// --------------------------------------------------------------------------
// Flat Decoder
// --------------------------------------------------------------------------

// FlatDecoder reads typed values out of an untyped string mapping.
// Every read consumes the key, so one source can feed several decoders.
// The first failure is kept and all later reads become no-ops.
type FlatDecoder struct {
	src map[string]string
	err error
}

// NewFlatDecoder wraps src. The map is modified while decoding.
func NewFlatDecoder(src map[string]string) *FlatDecoder {
	return &FlatDecoder{src: src}
}

// Err returns the first error that occurred.
func (d *FlatDecoder) Err() error {
	return d.err
}

func (d *FlatDecoder) take(field string) (string, bool) {
	if v, ok := d.src[field]; ok {
		delete(d.src, field)
		return v, true
	}
	for _, alias := range aliases[field] {
		if v, ok := d.src[alias]; ok {
			delete(d.src, alias)
			return v, true
		}
	}
	return "", false
}

// String returns a required string field.
func (d *FlatDecoder) String(field string) string {
	if d.err != nil {
		return ""
	}
	v, ok := d.take(field)
	if !ok {
		d.err = &FieldError{Kind: KindMissing, Field: field}
	}
	return v
}

// Optional returns an optional string field, nil when absent.
func (d *FlatDecoder) Optional(field string) *string {
	if d.err != nil {
		return nil
	}
	if v, ok := d.take(field); ok {
		return &v
	}
	return nil
}

// Int32 returns a required integer field.
func (d *FlatDecoder) Int32(field string) int32 {
	raw := d.String(field)
	if d.err != nil {
		return 0
	}
	v, err := cast.ToInt32E(raw)
	if err != nil {
		d.err = &FieldError{Kind: KindMalformed, Field: field, Err: err}
	}
	return v
}

// Float32 returns a required floating point field.
func (d *FlatDecoder) Float32(field string) float32 {
	raw := d.String(field)
	if d.err != nil {
		return 0
	}
	v, err := cast.ToFloat32E(raw)
	if err != nil {
		d.err = &FieldError{Kind: KindMalformed, Field: field, Err: err}
	}
	return v
}

// --------------------------------------------------------------------------
// Entity Decoders
// --------------------------------------------------------------------------

// DecodeBasic reads the basic package fields from src.
func DecodeBasic(src map[string]string) (BasicPackageData, error) {
	d := NewFlatDecoder(src)
	basic := d.basic()
	return basic, d.Err()
}

// DecodeAdditional reads the additional package fields from src.
func DecodeAdditional(src map[string]string) (AdditionalPackageData, error) {
	d := NewFlatDecoder(src)
	additional := d.additional()
	return additional, d.Err()
}

// DecodePackage reads basic and additional fields from one flat mapping.
// Dependencies and comments are left empty; they are stored separately by
// every flat backend and filled in by the caller.
func DecodePackage(src map[string]string) (PackageData, error) {
	d := NewFlatDecoder(src)
	pkg := PackageData{
		Basic:        d.basic(),
		Additional:   d.additional(),
		Dependencies: []PackageDependency{},
		Comments:     []Comment{},
	}
	if err := d.Err(); err != nil {
		return PackageData{}, err
	}
	return pkg, nil
}

// DecodeComment reads a comment from src.
func DecodeComment(src map[string]string) (Comment, error) {
	d := NewFlatDecoder(src)
	c := Comment{
		Header:  d.String(FieldHeader),
		Content: d.String(FieldContent),
	}
	return c, d.Err()
}

func (d *FlatDecoder) basic() BasicPackageData {
	return BasicPackageData{
		Name:                 d.String(FieldName),
		Version:              d.String(FieldVersion),
		PathToAdditionalData: d.String(FieldPathToAdditionalData),
		Votes:                d.Int32(FieldVotes),
		Popularity:           d.Float32(FieldPopularity),
		Description:          d.String(FieldDescription),
		Maintainer:           d.String(FieldMaintainer),
		LastUpdated:          d.String(FieldLastUpdated),
	}
}

func (d *FlatDecoder) additional() AdditionalPackageData {
	return AdditionalPackageData{
		GitCloneURL:    d.String(FieldGitCloneURL),
		Keywords:       d.Optional(FieldKeywords),
		License:        d.Optional(FieldLicense),
		Conflicts:      d.Optional(FieldConflicts),
		Provides:       d.Optional(FieldProvides),
		Submitter:      d.String(FieldSubmitter),
		FirstSubmitted: d.String(FieldFirstSubmitted),
	}
}

// --------------------------------------------------------------------------
// Flat Encoder
// --------------------------------------------------------------------------

// EncodeFlat is the inverse of DecodePackage. Absent optional fields are
// omitted from the result.
func EncodeFlat(basic BasicPackageData, additional AdditionalPackageData) map[string]string {
	m := map[string]string{
		FieldName:                 basic.Name,
		FieldVersion:              basic.Version,
		FieldPathToAdditionalData: basic.PathToAdditionalData,
		FieldVotes:                strconv.FormatInt(int64(basic.Votes), 10),
		FieldPopularity:           strconv.FormatFloat(float64(basic.Popularity), 'g', -1, 32),
		FieldDescription:          basic.Description,
		FieldMaintainer:           basic.Maintainer,
		FieldLastUpdated:          basic.LastUpdated,
		FieldGitCloneURL:          additional.GitCloneURL,
		FieldSubmitter:            additional.Submitter,
		FieldFirstSubmitted:       additional.FirstSubmitted,
	}
	optional := map[string]*string{
		FieldKeywords:  additional.Keywords,
		FieldLicense:   additional.License,
		FieldConflicts: additional.Conflicts,
		FieldProvides:  additional.Provides,
	}
	for field, v := range optional {
		if v != nil {
			m[field] = *v
		}
	}
	return m
}

// EncodeComment is the inverse of DecodeComment.
func EncodeComment(c Comment) map[string]string {
	return map[string]string{
		FieldHeader:  c.Header,
		FieldContent: c.Content,
	}
}
