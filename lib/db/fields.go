package db

import "github.com/ValentinKolb/dbBench/lib/model"

// RankingFields are the BasicPackageData attributes packages can be ranked by.
var RankingFields = []string{
	model.FieldName,
	model.FieldVersion,
	model.FieldPathToAdditionalData,
	model.FieldVotes,
	model.FieldPopularity,
	model.FieldDescription,
	model.FieldMaintainer,
	model.FieldLastUpdated,
}

// ValidateRankingField returns an UnsupportedField error unless field is one
// of RankingFields. Adapters call it before touching the backend.
func ValidateRankingField(field string) error {
	for _, f := range RankingFields {
		if f == field {
			return nil
		}
	}
	return UnsupportedFieldError(field)
}

// IsNumericField reports whether the ranking field holds a number.
func IsNumericField(field string) bool {
	return field == model.FieldVotes || field == model.FieldPopularity
}

// Window converts the ranking window [start, end) into offset and count.
// An end before start yields an empty window.
func Window(start, end uint32) (offset, count int) {
	if end <= start {
		return int(start), 0
	}
	return int(start), int(end - start)
}
