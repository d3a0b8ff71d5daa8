package plan

import (
	"embed"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/NvTimLiu/spark-rapids-tools/internal/errors"
)

const (
	EntitySpeedupTable = "speedup table"
	EntityTypeSupport  = "type support table"
	EntityPlatform     = "platform"
)

// Direction distinguishes read support from write support in the data-type
// table.
type Direction string

const (
	DirectionRead  Direction = "read"
	DirectionWrite Direction = "write"
)

// SupportLevel is a cell value of the type-support table. Blank cells in
// override files mean supported; the table only enumerates exceptions.
type SupportLevel string

const (
	SupportNone            SupportLevel = "NS"
	SupportCorrectnessRisk SupportLevel = "CO"
)

// UnknownFormatMarker is reported as the unsupported type when the format
// itself is not in the table.
const UnknownFormatMarker = "*"

//go:embed platforms/*.yaml
var platformFS embed.FS

type platformSpec struct {
	Platform         string             `yaml:"platform"`
	SpeedupFactors   map[string]float64 `yaml:"speedup_factors"`
	SupportedExecs   []string           `yaml:"supported_execs"`
	UnsupportedExecs map[string]string  `yaml:"unsupported_execs"`
	SupportedExprs   []string           `yaml:"supported_exprs"`
	TypeSupport      []struct {
		Format      string                  `yaml:"format"`
		Direction   Direction               `yaml:"direction"`
		Unsupported map[string]SupportLevel `yaml:"unsupported"`
	} `yaml:"type_support"`
}

type formatKey struct {
	format    string
	direction Direction
}

// SpeedupFactorTable holds the per-platform classifier configuration: the
// operator speedup multipliers, the exec/expression support sets and the
// per-format data-type support matrix. Loaded once per run, read-only
// afterwards, safe to share across workers.
type SpeedupFactorTable struct {
	platform         string
	factors          map[string]float64
	supportedExecs   map[string]struct{}
	unsupportedExecs map[string]string
	supportedExprs   map[string]struct{}
	typeSupport      map[formatKey]map[string]SupportLevel
}

// Platforms lists the platform identifiers with bundled default tables.
func Platforms() []string {
	entries, err := platformFS.ReadDir("platforms")
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	return ids
}

// LoadPlatformTable loads the bundled default table for a platform id. An
// unknown id is a fatal configuration error.
func LoadPlatformTable(platform string) (*SpeedupFactorTable, error) {
	raw, err := platformFS.ReadFile("platforms/" + platform + ".yaml")
	if err != nil {
		return nil, errors.InvalidArgument(EntityPlatform,
			fmt.Sprintf("unknown platform %q, supported platforms are [%s]",
				platform, strings.Join(Platforms(), ", ")))
	}
	var spec platformSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, errors.InternalError(EntityPlatform, "malformed bundled table for "+platform, err)
	}

	table := &SpeedupFactorTable{
		platform:         platform,
		factors:          spec.SpeedupFactors,
		supportedExecs:   make(map[string]struct{}, len(spec.SupportedExecs)),
		unsupportedExecs: spec.UnsupportedExecs,
		supportedExprs:   make(map[string]struct{}, len(spec.SupportedExprs)),
		typeSupport:      make(map[formatKey]map[string]SupportLevel, len(spec.TypeSupport)),
	}
	for _, name := range spec.SupportedExecs {
		table.supportedExecs[name] = struct{}{}
	}
	for _, name := range spec.SupportedExprs {
		table.supportedExprs[strings.ToLower(name)] = struct{}{}
	}
	if table.unsupportedExecs == nil {
		table.unsupportedExecs = map[string]string{}
	}
	for _, ts := range spec.TypeSupport {
		key := formatKey{format: strings.ToLower(ts.Format), direction: ts.Direction}
		cells := make(map[string]SupportLevel, len(ts.Unsupported))
		for typeName, level := range ts.Unsupported {
			cells[strings.ToLower(typeName)] = level
		}
		table.typeSupport[key] = cells
	}
	return table, nil
}

func (t *SpeedupFactorTable) Platform() string { return t.platform }

// GetSpeedupFactor returns the estimated acceleration multiplier for an
// operator name, defaulting to 1.0 (no acceleration) when absent.
func (t *SpeedupFactorTable) GetSpeedupFactor(opName string) float64 {
	if factor, ok := t.factors[opName]; ok {
		return factor
	}
	return 1.0
}

// IsExecSupported reports whether an exec name is in the supported set and
// not explicitly listed unsupported.
func (t *SpeedupFactorTable) IsExecSupported(name string) bool {
	if _, banned := t.unsupportedExecs[name]; banned {
		return false
	}
	_, ok := t.supportedExecs[name]
	return ok
}

// UnsupportedReason returns the configured reason for an explicitly
// unsupported exec, or a generic one for execs simply absent from the set.
func (t *SpeedupFactorTable) UnsupportedReason(name string) string {
	if reason, ok := t.unsupportedExecs[name]; ok {
		return reason
	}
	return "exec is not supported on GPU"
}

func (t *SpeedupFactorTable) IsExprSupported(name string) bool {
	_, ok := t.supportedExprs[strings.ToLower(name)]
	return ok
}

// TypeSupportFor returns the unsupported-type cells for a format and
// direction, and whether the format is known at all.
func (t *SpeedupFactorTable) TypeSupportFor(format string, direction Direction) (map[string]SupportLevel, bool) {
	cells, ok := t.typeSupport[formatKey{format: strings.ToLower(format), direction: direction}]
	return cells, ok
}

// LoadSpeedupFactorFile replaces the operator table with a user-supplied
// one, header `CPUOperator,Score`. Operators absent from the file fall
// back to 1.0. A row whose column count does not match the header is a
// fatal configuration error raised here, before any log is processed.
func (t *SpeedupFactorTable) LoadSpeedupFactorFile(fs afero.Fs, path string) error {
	rows, err := readDelimited(fs, path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.InvalidArgument(EntitySpeedupTable, path+" is empty")
	}
	header := rows[0]
	if len(header) != 2 || header[0] != "CPUOperator" || header[1] != "Score" {
		return errors.InvalidArgument(EntitySpeedupTable,
			path+" must start with header CPUOperator,Score")
	}
	factors := make(map[string]float64, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return errors.InvalidArgument(EntitySpeedupTable,
				fmt.Sprintf("%s row %d has %d columns, header has %d", path, i+2, len(row), len(header)))
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			return errors.InvalidArgument(EntitySpeedupTable,
				fmt.Sprintf("%s row %d has non-numeric score %q", path, i+2, row[1]))
		}
		factors[strings.TrimSpace(row[0])] = score
	}
	t.factors = factors
	return nil
}

// MergeTypeSupportFile overlays a user-supplied data-type table, header
// `Format,Direction,<TYPE...>`, cells NS / CO / blank. The same fatal
// column-count rule applies.
func (t *SpeedupFactorTable) MergeTypeSupportFile(fs afero.Fs, path string) error {
	rows, err := readDelimited(fs, path)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.InvalidArgument(EntityTypeSupport, path+" is empty")
	}
	header := rows[0]
	if len(header) < 3 || header[0] != "Format" || header[1] != "Direction" {
		return errors.InvalidArgument(EntityTypeSupport,
			path+" must start with header Format,Direction followed by type columns")
	}
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return errors.InvalidArgument(EntityTypeSupport,
				fmt.Sprintf("%s row %d has %d columns, header has %d", path, i+2, len(row), len(header)))
		}
		key := formatKey{format: strings.ToLower(row[0]), direction: Direction(strings.ToLower(row[1]))}
		cells := make(map[string]SupportLevel)
		for col := 2; col < len(row); col++ {
			cell := SupportLevel(strings.TrimSpace(row[col]))
			if cell == "" {
				continue
			}
			if cell != SupportNone && cell != SupportCorrectnessRisk {
				return errors.InvalidArgument(EntityTypeSupport,
					fmt.Sprintf("%s row %d column %s has unknown cell %q", path, i+2, header[col], cell))
			}
			cells[strings.ToLower(header[col])] = cell
		}
		t.typeSupport[key] = cells
	}
	return nil
}

func readDelimited(fs afero.Fs, path string) ([][]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.InvalidArgument(EntitySpeedupTable, "unable to open "+path+": "+err.Error())
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // column counts validated by the caller
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.InvalidArgument(EntitySpeedupTable, "unable to parse "+path+": "+err.Error())
	}
	return rows, nil
}
