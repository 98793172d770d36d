package skytable

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ValentinKolb/dbBench/lib/model"
)

/*
Blob layout (all integers big endian):

	string:     4 bytes length + N bytes
	basic:      name, version, path_to_additional_data, votes (4 bytes),
	            popularity (4 bytes IEEE 754), description, maintainer, last_updated
	additional: flags (1 byte), git_clone_url, keywords, license, conflicts,
	            provides, submitter, first_submitted
	comment:    header, content
	dependency: group, count (4 bytes), count x package name

Absent optional fields are written as an empty string with their flag bit
cleared, so an empty value and an absent one stay distinguishable.
*/

// Bit flags to indicate which optional fields are present
const (
	hasKeywords  byte = 1 << 0
	hasLicense   byte = 1 << 1
	hasConflicts byte = 1 << 2
	hasProvides  byte = 1 << 3
)

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

func encodeBasic(b model.BasicPackageData) []byte {
	w := blobWriter{buf: make([]byte, 0, 64+len(b.Description))}
	w.str(b.Name)
	w.str(b.Version)
	w.str(b.PathToAdditionalData)
	w.u32(uint32(b.Votes))
	w.u32(math.Float32bits(b.Popularity))
	w.str(b.Description)
	w.str(b.Maintainer)
	w.str(b.LastUpdated)
	return w.buf
}

func encodeAdditional(a model.AdditionalPackageData) []byte {
	var flags byte
	for _, opt := range []struct {
		v    *string
		flag byte
	}{
		{a.Keywords, hasKeywords},
		{a.License, hasLicense},
		{a.Conflicts, hasConflicts},
		{a.Provides, hasProvides},
	} {
		if opt.v != nil {
			flags |= opt.flag
		}
	}

	w := blobWriter{buf: make([]byte, 0, 128)}
	w.buf = append(w.buf, flags)
	w.str(a.GitCloneURL)
	w.optional(a.Keywords)
	w.optional(a.License)
	w.optional(a.Conflicts)
	w.optional(a.Provides)
	w.str(a.Submitter)
	w.str(a.FirstSubmitted)
	return w.buf
}

func encodeComment(c model.Comment) []byte {
	w := blobWriter{buf: make([]byte, 0, 8+len(c.Header)+len(c.Content))}
	w.str(c.Header)
	w.str(c.Content)
	return w.buf
}

func encodeDependency(d model.PackageDependency) []byte {
	w := blobWriter{buf: make([]byte, 0, 32)}
	w.str(d.Group)
	w.u32(uint32(len(d.Packages)))
	for _, p := range d.Packages {
		w.str(p)
	}
	return w.buf
}

// --------------------------------------------------------------------------
// Decoding
// --------------------------------------------------------------------------

func decodeBasic(data []byte) (model.BasicPackageData, error) {
	r := blobReader{data: data}
	b := model.BasicPackageData{
		Name:                 r.str(model.FieldName),
		Version:              r.str(model.FieldVersion),
		PathToAdditionalData: r.str(model.FieldPathToAdditionalData),
		Votes:                int32(r.u32(model.FieldVotes)),
		Popularity:           math.Float32frombits(r.u32(model.FieldPopularity)),
		Description:          r.str(model.FieldDescription),
		Maintainer:           r.str(model.FieldMaintainer),
		LastUpdated:          r.str(model.FieldLastUpdated),
	}
	return b, r.finish("basic")
}

func decodeAdditional(data []byte) (model.AdditionalPackageData, error) {
	r := blobReader{data: data}
	flags := r.u8("flags")
	a := model.AdditionalPackageData{
		GitCloneURL:    r.str(model.FieldGitCloneURL),
		Keywords:       r.optional(model.FieldKeywords, flags&hasKeywords != 0),
		License:        r.optional(model.FieldLicense, flags&hasLicense != 0),
		Conflicts:      r.optional(model.FieldConflicts, flags&hasConflicts != 0),
		Provides:       r.optional(model.FieldProvides, flags&hasProvides != 0),
		Submitter:      r.str(model.FieldSubmitter),
		FirstSubmitted: r.str(model.FieldFirstSubmitted),
	}
	return a, r.finish("additional")
}

func decodeComment(data []byte) (model.Comment, error) {
	r := blobReader{data: data}
	c := model.Comment{
		Header:  r.str(model.FieldHeader),
		Content: r.str(model.FieldContent),
	}
	return c, r.finish("comment")
}

func decodeDependency(data []byte) (model.PackageDependency, error) {
	r := blobReader{data: data}
	d := model.PackageDependency{Group: r.str("group")}
	n := r.u32("packages")
	if r.err == nil && int(n) > r.remaining()/4 {
		r.fail("packages", fmt.Sprintf("count %d exceeds blob size", n))
	}
	if r.err == nil {
		d.Packages = make([]string, n)
		for i := range d.Packages {
			d.Packages[i] = r.str("packages")
		}
	}
	return d, r.finish("dependency")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

type blobWriter struct {
	buf []byte
}

func (w *blobWriter) str(s string) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// optional writes the sentinel (empty string) for absent values
func (w *blobWriter) optional(s *string) {
	if s == nil {
		w.str("")
		return
	}
	w.str(*s)
}

func (w *blobWriter) u32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// blobReader reads fields in order. The first failure is kept and all
// further reads return zero values.
type blobReader struct {
	data []byte
	pos  int
	err  error
}

func (r *blobReader) remaining() int { return len(r.data) - r.pos }

func (r *blobReader) fail(field, msg string) {
	if r.err == nil {
		r.err = &model.FieldError{Kind: model.KindMalformed, Field: field, Msg: msg}
	}
}

func (r *blobReader) u8(field string) byte {
	if r.err != nil {
		return 0
	}
	if r.remaining() < 1 {
		r.fail(field, "blob truncated")
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *blobReader) u32(field string) uint32 {
	if r.err != nil {
		return 0
	}
	if r.remaining() < 4 {
		r.fail(field, "blob truncated")
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *blobReader) str(field string) string {
	n := r.u32(field)
	if r.err != nil {
		return ""
	}
	if uint64(n) > uint64(r.remaining()) {
		r.fail(field, "blob truncated")
		return ""
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s
}

func (r *blobReader) optional(field string, present bool) *string {
	s := r.str(field)
	if r.err != nil || !present {
		return nil
	}
	return &s
}

// finish returns the first read error or an error for trailing bytes.
func (r *blobReader) finish(entity string) error {
	if r.err == nil && r.remaining() != 0 {
		r.fail(entity, fmt.Sprintf("%d trailing bytes", r.remaining()))
	}
	return r.err
}
