package plan

import (
	"regexp"
	"strings"
)

// Info is the raw plan node shape carried inside SQL-execution start
// events: a node name, a free-form description and child nodes.
type Info struct {
	NodeName     string            `json:"nodeName"`
	SimpleString string            `json:"simpleString"`
	Children     []Info            `json:"children"`
	Metadata     map[string]string `json:"metadata"`
}

// Metadata keys extracted during parsing.
const (
	MetaWriteFormat = "writeFormat"
	MetaReadFormat  = "readFormat"
	MetaReadSchema  = "readSchema"
	MetaJoinSubtype = "joinSubtype"
	MetaWrappedJoin = "wrappedJoin"
)

const existenceJoinMarker = "ExistenceJoin("

var exprCallPattern = regexp.MustCompile(`([a-zA-Z_][a-zA-Z0-9_]*)\(`)

// exprNoise are call-shaped tokens in simple strings that are not
// expressions worth classifying.
var exprNoise = map[string]struct{}{
	"partial":        {},
	"finalmerge":     {},
	"merge":          {},
	"keys":           {},
	"functions":      {},
	"output":         {},
	"arguments":      {},
	"unknown":        {},
	"wholestagecodegen": {},
}

// Parse turns a raw plan-info tree into a Node tree, resolving each node
// name to its canonical operator exactly once. An existence-style join is
// represented by its wrapper: the wrapped physical join name is kept only
// as metadata and never classified on its own.
func Parse(info Info) *Node {
	node := &Node{
		Name:     strings.TrimSpace(info.NodeName),
		Op:       OperatorFromName(info.NodeName),
		Metadata: map[string]string{},
	}
	node.Exprs = extractExpressions(info.SimpleString, strings.ToLower(stripNameDecoration(node.Name)))
	for key, value := range info.Metadata {
		switch key {
		case "Format":
			node.Metadata[MetaReadFormat] = strings.ToLower(value)
		case "ReadSchema":
			node.Metadata[MetaReadSchema] = stripSchemaWrapper(value)
		}
	}
	if strings.Contains(info.SimpleString, existenceJoinMarker) && isJoinOperator(node.Op) {
		node.Metadata[MetaJoinSubtype] = "ExistenceJoin"
		node.Metadata[MetaWrappedJoin] = stripNameDecoration(node.Name)
		node.Name = "ExistenceJoin"
		node.Op = OperatorExistenceJoin
	}
	if node.Op == OperatorWriteFilesCommand {
		if format := WriteFormatString(info.SimpleString); format != "" {
			node.Metadata[MetaWriteFormat] = format
		}
	}
	for _, child := range info.Children {
		node.Children = append(node.Children, Parse(child))
	}
	return node
}

func isJoinOperator(op Operator) bool {
	switch op {
	case OperatorSortMergeJoin, OperatorShuffledHashJoin, OperatorBroadcastHashJoin,
		OperatorBroadcastNestedLoopJoin:
		return true
	default:
		return false
	}
}

// stripSchemaWrapper removes the struct<...> envelope Spark puts around a
// read schema so the field list can be parsed directly.
func stripSchemaWrapper(schema string) string {
	trimmed := strings.TrimSpace(schema)
	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "struct<") && strings.HasSuffix(trimmed, ">") {
		return trimmed[len("struct<") : len(trimmed)-1]
	}
	return trimmed
}

func extractExpressions(simpleString, nodeName string) []string {
	matches := exprCallPattern.FindAllStringSubmatch(simpleString, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var exprs []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if name == nodeName {
			continue
		}
		if _, noisy := exprNoise[name]; noisy {
			continue
		}
		if strings.HasPrefix(name, "existencejoin") {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		exprs = append(exprs, name)
	}
	return exprs
}

// WriteFormatString extracts the target file format from an "execute write
// command" description. The description is a fixed, order-sensitive
// sequence of comma-separated fields: path, flags, column list, format,
// options map, save mode, partition columns. Embedded option maps and
// column lists contain commas themselves, so fields are located by
// scanning bracket and paren depth rather than splitting naively.
func WriteFormatString(cmd string) string {
	fields := splitCommandFields(cmd)
	if len(fields) < 4 {
		return ""
	}
	format := strings.TrimSpace(fields[3])
	if format == "" || strings.ContainsAny(format, "[]{}()") {
		return ""
	}
	return format
}

func splitCommandFields(cmd string) []string {
	var fields []string
	depth := 0
	start := 0
	for i := 0; i < len(cmd); i++ {
		switch cmd[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				fields = append(fields, cmd[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, cmd[start:])
	return fields
}
