package plan

import "strings"

// Operator is the canonical identity of a physical plan node. Raw node
// names are resolved to an Operator once at parse time; anything we do not
// recognize maps to OperatorUnknown and keeps its raw name for reporting.
type Operator int

const (
	OperatorUnknown Operator = iota
	OperatorScan
	OperatorBatchScan
	OperatorProject
	OperatorFilter
	OperatorSort
	OperatorSortMergeJoin
	OperatorShuffledHashJoin
	OperatorBroadcastHashJoin
	OperatorBroadcastNestedLoopJoin
	OperatorCartesianProduct
	OperatorExistenceJoin
	OperatorHashAggregate
	OperatorSortAggregate
	OperatorObjectHashAggregate
	OperatorShuffleExchange
	OperatorBroadcastExchange
	OperatorSubqueryBroadcast
	OperatorUnion
	OperatorWindow
	OperatorExpand
	OperatorGenerate
	OperatorRange
	OperatorCoalesce
	OperatorCollectLimit
	OperatorGlobalLimit
	OperatorLocalLimit
	OperatorTakeOrderedAndProject
	OperatorCustomShuffleReader
	OperatorWholeStageCodegen
	OperatorWriteFilesCommand
)

var operatorByName = map[string]Operator{
	"Scan":                            OperatorScan,
	"FileSourceScan":                  OperatorScan,
	"BatchScan":                       OperatorBatchScan,
	"Project":                         OperatorProject,
	"Filter":                          OperatorFilter,
	"Sort":                            OperatorSort,
	"SortMergeJoin":                   OperatorSortMergeJoin,
	"ShuffledHashJoin":                OperatorShuffledHashJoin,
	"BroadcastHashJoin":               OperatorBroadcastHashJoin,
	"BroadcastNestedLoopJoin":         OperatorBroadcastNestedLoopJoin,
	"CartesianProduct":                OperatorCartesianProduct,
	"HashAggregate":                   OperatorHashAggregate,
	"SortAggregate":                   OperatorSortAggregate,
	"ObjectHashAggregate":             OperatorObjectHashAggregate,
	"Exchange":                        OperatorShuffleExchange,
	"ShuffleExchange":                 OperatorShuffleExchange,
	"BroadcastExchange":               OperatorBroadcastExchange,
	"SubqueryBroadcast":               OperatorSubqueryBroadcast,
	"Union":                           OperatorUnion,
	"Window":                          OperatorWindow,
	"Expand":                          OperatorExpand,
	"Generate":                        OperatorGenerate,
	"Range":                           OperatorRange,
	"Coalesce":                        OperatorCoalesce,
	"CollectLimit":                    OperatorCollectLimit,
	"GlobalLimit":                     OperatorGlobalLimit,
	"LocalLimit":                      OperatorLocalLimit,
	"TakeOrderedAndProject":           OperatorTakeOrderedAndProject,
	"CustomShuffleReader":             OperatorCustomShuffleReader,
	"AQEShuffleRead":                  OperatorCustomShuffleReader,
	"WholeStageCodegen":               OperatorWholeStageCodegen,
	"Execute InsertIntoHadoopFsRelationCommand": OperatorWriteFilesCommand,
	"Execute CreateDataSourceTableAsSelectCommand": OperatorWriteFilesCommand,
}

// OperatorFromName resolves a raw node name to its canonical operator.
// Names carry decorations such as codegen ids ("Project (3)") or the scan
// format ("Scan parquet t1"); decorations are stripped before lookup.
func OperatorFromName(name string) Operator {
	trimmed := stripNameDecoration(name)
	if op, ok := operatorByName[trimmed]; ok {
		return op
	}
	if strings.HasPrefix(trimmed, "Scan ") {
		return OperatorScan
	}
	if strings.HasPrefix(trimmed, "WholeStageCodegen") {
		return OperatorWholeStageCodegen
	}
	return OperatorUnknown
}

func stripNameDecoration(name string) string {
	trimmed := strings.TrimSpace(name)
	if idx := strings.LastIndex(trimmed, " ("); idx > 0 && strings.HasSuffix(trimmed, ")") {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// Node is one element of a parsed physical plan tree. Kind separates exec
// operators from expression pseudo-nodes; whether a node is supported on
// GPU is a classifier decision, never stored here.
type Node struct {
	Name     string
	Op       Operator
	Children []*Node
	Metadata map[string]string
	Exprs    []string
}

// Visit walks the tree depth first, parents before children. Plans are
// trees, not graphs, so no cycle handling is needed.
func (n *Node) Visit(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, child := range n.Children {
		child.Visit(fn)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Visit(func(*Node) { count++ })
	return count
}
