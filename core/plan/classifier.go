package plan

import (
	"sort"
	"strings"

	"github.com/goto/salt/log"
)

// Classification is the scoring result for one exec or expression node.
type Classification struct {
	OpName            string
	Supported         bool
	SpeedupFactor     float64
	UnsupportedReason string
}

// Classifier scores plan operators, expressions and read/write schemas
// against one platform's SpeedupFactorTable. It holds no mutable state and
// is safe for concurrent use.
type Classifier struct {
	logger log.Logger
	table  *SpeedupFactorTable
}

func NewClassifier(logger log.Logger, table *SpeedupFactorTable) *Classifier {
	return &Classifier{logger: logger, table: table}
}

func (c *Classifier) Table() *SpeedupFactorTable { return c.table }

// ClassifyExec scores a single exec node. An existence-style join wrapper
// is classified by the wrapper alone; the wrapped physical join never
// reaches the unsupported list when the wrapper is supported.
func (c *Classifier) ClassifyExec(node *Node) Classification {
	name := stripNameDecoration(node.Name)
	if subtype, ok := node.Metadata[MetaJoinSubtype]; ok {
		name = subtype
	}
	if node.Op == OperatorWholeStageCodegen {
		// codegen wrappers are transparent, children carry the work
		return Classification{OpName: name, Supported: true, SpeedupFactor: 1.0}
	}
	if !c.table.IsExecSupported(canonicalExecName(node, name)) {
		return Classification{
			OpName:            name,
			Supported:         false,
			SpeedupFactor:     1.0,
			UnsupportedReason: c.table.UnsupportedReason(canonicalExecName(node, name)),
		}
	}
	return Classification{
		OpName:        name,
		Supported:     true,
		SpeedupFactor: c.table.GetSpeedupFactor(speedupLookupName(node, name)),
	}
}

// ClassifyExpr scores an expression by name against the supported set.
func (c *Classifier) ClassifyExpr(name string) Classification {
	if c.table.IsExprSupported(name) {
		return Classification{OpName: name, Supported: true, SpeedupFactor: 1.0}
	}
	return Classification{
		OpName:            name,
		Supported:         false,
		SpeedupFactor:     1.0,
		UnsupportedReason: "expression is not supported on GPU",
	}
}

// ScoreReadDataTypes scores a schema against the (format, read, type)
// support table. The table enumerates only known-unsupported types, so an
// unknown type counts as supported; an unknown format scores 0.0 with "*"
// as the unsupported marker. The score is the supported fraction of
// fields.
func (c *Classifier) ScoreReadDataTypes(format string, typeStrings []string) (float64, []string) {
	if len(typeStrings) == 0 {
		return 1.0, nil
	}
	cells, knownFormat := c.table.TypeSupportFor(format, DirectionRead)
	if !knownFormat {
		return 0.0, []string{UnknownFormatMarker}
	}

	unsupportedSet := make(map[string]struct{})
	supported := 0
	for _, typeStr := range typeStrings {
		fieldOK := true
		for _, base := range BaseTypes(typeStr) {
			if _, bad := cells[base]; bad {
				fieldOK = false
				unsupportedSet[base] = struct{}{}
			}
		}
		if IsComplexType(typeStr) {
			container := strings.ToLower(typeStr[:strings.Index(typeStr, "<")])
			if _, bad := cells[container]; bad {
				fieldOK = false
				unsupportedSet[container] = struct{}{}
			}
		}
		if fieldOK {
			supported++
		}
	}

	unsupported := make([]string, 0, len(unsupportedSet))
	for typeName := range unsupportedSet {
		unsupported = append(unsupported, typeName)
	}
	sort.Strings(unsupported)
	return float64(supported) / float64(len(typeStrings)), unsupported
}

// canonicalExecName maps a node to the identifier used by the support set.
func canonicalExecName(node *Node, name string) string {
	switch node.Op {
	case OperatorScan:
		return "Scan"
	case OperatorShuffleExchange:
		return "ShuffleExchange"
	case OperatorCustomShuffleReader:
		return "CustomShuffleReader"
	case OperatorWriteFilesCommand:
		return "WriteFilesCommand"
	default:
		return name
	}
}

// speedupLookupName maps a node to the operator name keyed in the speedup
// factor table, which uses the physical exec class names.
func speedupLookupName(node *Node, name string) string {
	switch node.Op {
	case OperatorScan:
		return "FileSourceScanExec"
	case OperatorShuffleExchange:
		return "ShuffleExchangeExec"
	case OperatorCustomShuffleReader:
		return "CustomShuffleReaderExec"
	case OperatorWriteFilesCommand:
		return "InsertIntoHadoopFsRelationCommand"
	case OperatorExistenceJoin:
		if wrapped, ok := node.Metadata[MetaWrappedJoin]; ok {
			return wrapped + "Exec"
		}
		return name + "Exec"
	default:
		if strings.HasSuffix(name, "Exec") {
			return name
		}
		return name + "Exec"
	}
}
