package dataset

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ValentinKolb/dbBench/lib/model"
	"github.com/lni/dragonboat/v4/logger"
	"gopkg.in/yaml.v3"
)

var Logger = logger.GetLogger("dataset")

// Format of a data set file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// FormatOf derives the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported data set format %q (expected .json, .yaml, .yml or .csv)", filepath.Ext(path))
	}
}

// --------------------------------------------------------------------------
// Loading
// --------------------------------------------------------------------------

// Load reads all packages of the data set file at path. Every package is
// validated and normalized.
func Load(path string) ([]model.PackageData, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pkgs, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	Logger.Infof("Loaded %d packages from %s", len(pkgs), path)
	return pkgs, nil
}

// Read decodes packages in the given format from r.
func Read(r io.Reader, format Format) ([]model.PackageData, error) {
	var (
		pkgs []model.PackageData
		err  error
	)
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&pkgs)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&pkgs)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case FormatCSV:
		pkgs, err = readCSV(r)
	default:
		err = fmt.Errorf("unsupported data set format %q", format)
	}
	if err != nil {
		return nil, err
	}

	for i := range pkgs {
		if err := pkgs[i].Validate(); err != nil {
			return nil, fmt.Errorf("package %d: %w", i, err)
		}
		pkgs[i].Normalize()
	}
	if pkgs == nil {
		pkgs = []model.PackageData{}
	}
	return pkgs, nil
}

// --------------------------------------------------------------------------
// Writing
// --------------------------------------------------------------------------

// Save writes pkgs to path in the format given by its extension.
func Save(path string, pkgs []model.PackageData) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, format, pkgs); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// Write encodes pkgs in the given format to w.
func Write(w io.Writer, format Format, pkgs []model.PackageData) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pkgs)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(pkgs); err != nil {
			return err
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, pkgs)
	default:
		return fmt.Errorf("unsupported data set format %q", format)
	}
}

// --------------------------------------------------------------------------
// CSV
// --------------------------------------------------------------------------

// Extra CSV columns besides the flat package fields
const (
	columnDependencies = "dependencies"
	columnComments     = "comments"
)

// csvColumns is the column order written by writeCSV
var csvColumns = []string{
	model.FieldName, model.FieldVersion, model.FieldPathToAdditionalData,
	model.FieldVotes, model.FieldPopularity, model.FieldDescription,
	model.FieldMaintainer, model.FieldLastUpdated,
	model.FieldGitCloneURL, model.FieldKeywords, model.FieldLicense,
	model.FieldConflicts, model.FieldProvides, model.FieldSubmitter,
	model.FieldFirstSubmitted, columnDependencies, columnComments,
}

// optionalColumns are treated as absent when the cell is empty
var optionalColumns = map[string]bool{
	model.FieldKeywords:  true,
	model.FieldLicense:   true,
	model.FieldConflicts: true,
	model.FieldProvides:  true,
}

// readCSV decodes one package per row. The header names the flat fields,
// the optional dependencies column holds "group=a,b;group2=c" and the
// optional comments column a JSON array of comments.
func readCSV(r io.Reader) ([]model.PackageData, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var pkgs []model.PackageData
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return pkgs, nil
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, len(header), len(record))
		}

		flat := make(map[string]string, len(header))
		var deps, comments string
		for i, col := range header {
			switch {
			case col == columnDependencies:
				deps = record[i]
			case col == columnComments:
				comments = record[i]
			case optionalColumns[col] && record[i] == "":
				// absent
			default:
				flat[col] = record[i]
			}
		}

		pkg, err := model.DecodePackage(flat)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if pkg.Dependencies, err = parseDependencies(deps); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if strings.TrimSpace(comments) != "" {
			if err := json.Unmarshal([]byte(comments), &pkg.Comments); err != nil {
				return nil, fmt.Errorf("line %d: comments: %w", line, err)
			}
		}
		pkgs = append(pkgs, pkg)
	}
}

func writeCSV(w io.Writer, pkgs []model.PackageData) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return err
	}
	for _, p := range pkgs {
		flat := model.EncodeFlat(p.Basic, p.Additional)
		comments, err := json.Marshal(p.Comments)
		if err != nil {
			return err
		}
		flat[columnDependencies] = formatDependencies(p.Dependencies)
		flat[columnComments] = string(comments)

		record := make([]string, len(csvColumns))
		for i, col := range csvColumns {
			record[i] = flat[col]
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// parseDependencies parses "depends=a,b;makedepends=c".
func parseDependencies(s string) ([]model.PackageDependency, error) {
	deps := []model.PackageDependency{}
	if strings.TrimSpace(s) == "" {
		return deps, nil
	}
	for _, part := range strings.Split(s, ";") {
		group, list, ok := strings.Cut(part, "=")
		group = strings.TrimSpace(group)
		if !ok || group == "" {
			return nil, &model.FieldError{Kind: model.KindMalformed, Field: columnDependencies,
				Msg: fmt.Sprintf("expected group=pkg,... got %q", part)}
		}
		pkgs := []string{}
		for _, p := range strings.Split(list, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pkgs = append(pkgs, p)
			}
		}
		deps = append(deps, model.PackageDependency{Group: group, Packages: pkgs})
	}
	return deps, nil
}

func formatDependencies(deps []model.PackageDependency) string {
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = d.Group + "=" + strings.Join(d.Packages, ",")
	}
	return strings.Join(parts, ";")
}
