// Package query implements the cross-store query executor (spec.md
// §4.F): the planner that resolves a parsed query into one of
// {vector-first, graph-first, parallel, hop-by-hop MATCH} execution
// strategies, the WHERE evaluator, multi-vector fusion, and subquery
// pre-resolution. The AST types below are what the external SQL parser
// collaborator (spec.md §1 "deliberately out of scope") is expected to
// produce; this package only consumes them.
package query

// Value is a scalar or a not-yet-resolved subquery. Subquery is
// replaced with a concrete scalar during pre-resolution (subquery.go)
// before any WHERE evaluator sees it.
type Value struct {
	Scalar   any
	Field    *FieldRef
	Subquery *SelectQuery
}

// FieldRef is an alias-qualified column reference (e.g. "c.name" in a
// MATCH binding set).
type FieldRef struct {
	Alias string
	Field string
}

// ConditionKind identifies which WHERE evaluator handles a Condition.
// There is deliberately no catch-all kind: an evaluator is looked up by
// exact kind and an unmatched kind is a typed UnsupportedFeature error,
// never a silent pass-through (spec.md §4.F "WHERE evaluation
// contract").
type ConditionKind int

const (
	CondAnd ConditionKind = iota
	CondOr
	CondNot
	CondComparison
	CondLike
	CondILike
	CondBetween
	CondIn
	CondIsNull
	CondFullTextMatch
	CondTemporal
)

// CompareOp is a comparison operator for CondComparison and CondTemporal.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Condition is one node of the WHERE expression tree.
type Condition struct {
	Kind     ConditionKind
	Field    FieldRef
	Op       CompareOp
	Value    Value
	Low      Value   // CondBetween
	High     Value   // CondBetween
	Values   []Value // CondIn
	Children []*Condition
}

// FusionStrategy names one of the four NEAR_FUSED combination formulas
// (spec.md §4.F "Multi-vector fusion").
type FusionStrategy int

const (
	FusionRRF FusionStrategy = iota
	FusionAverage
	FusionMaximum
	FusionWeighted
)

// FusionParams carries the strategy-specific parameters, validated by
// ValidateFusionParams before any clause search runs (spec.md: invalid params return
// ParseError::InvalidFusionParam, never silently defaulting to zero).
type FusionParams struct {
	K     int     // RRF
	WAvg  float64 // Weighted
	WMax  float64 // Weighted
	WHit  float64 // Weighted
}

// NearClause is one vector similarity operator (spec.md §6 "NEAR with
// optional WITH (mode, ef_search, overfetch)").
type NearClause struct {
	Field     string
	Vector    []float32
	K         int
	EfSearch  int // not read by the executor; searches use the collection's ef_search
	Overfetch int // vector-first only; 0 means columnstore.DefaultOverfetch

	// Mode selects the execution strategy when both a Near clause and a
	// column-only WHERE are present: "" (default) runs vector-first,
	// over-fetching and post-filtering; "parallel" runs the filter scan
	// and the vector search concurrently and intersects by id
	// (spec.md §4.F "Parallel: disjoint filter and vector components
	// executed concurrently; results intersected").
	Mode string
}

// NearFusedClause combines several NearClauses with one fusion formula
// (spec.md §6 "NEAR_FUSED").
type NearFusedClause struct {
	Clauses  []NearClause
	Strategy FusionStrategy
	Params   FusionParams
}

// MatchHop is one edge traversal step in a MATCH pattern:
// (fromAlias)-[:Label]->(toAlias).
type MatchHop struct {
	Label      string // empty means no relationship-type filter
	FromAlias  string
	ToAlias    string
	Reverse    bool // true for <-[:Label]-
}

// MatchPattern is a full MATCH clause: a start alias plus zero or more
// hops (spec.md §4.F "Graph-first (MATCH)").
type MatchPattern struct {
	StartAlias string
	Hops       []MatchHop
}

// OrderTerm is one ORDER BY term. Desc follows the engine's unified
// semantics: true always means "most similar first", regardless of
// whether Field is a similarity or a distance metric (orderby.go
// inverts internally for distance metrics).
type OrderTerm struct {
	Field string
	Desc  bool
}

// JoinKind names a SQL JOIN variant. Only JoinLeft is ever evaluated;
// JoinRight and JoinFull are recognized syntax that the executor
// deliberately refuses (spec.md §6 "LEFT JOIN (RIGHT/FULL return
// UnsupportedFeature)").
type JoinKind int

const (
	JoinLeft JoinKind = iota
	JoinRight
	JoinFull
)

// JoinClause is a single JOIN of the query's rows against a second
// alias over the same collection's column store, matched row by row via
// On, a condition evaluated with both sides' fields bound under their
// respective aliases. Table is not read by the executor.
type JoinClause struct {
	Kind  JoinKind
	Table string
	Alias string // this side's alias; empty means the FROM table itself
	With  string // joined table's alias
	On    *Condition
}

// SetOp names a set-combination operator applied between a SelectQuery
// and its Combine query (spec.md §6 "UNION/INTERSECT/EXCEPT"). Rows are
// combined by id after both sides run to completion.
type SetOp int

const (
	SetOpNone SetOp = iota
	SetOpUnion
	SetOpIntersect
	SetOpExcept
)

// AggregateFunc names a scalar aggregate applied over a filtered row
// set, used by subqueries such as `(SELECT AVG(price) FROM items)`.
type AggregateFunc string

const (
	AggAvg   AggregateFunc = "AVG"
	AggSum   AggregateFunc = "SUM"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
	AggCount AggregateFunc = "COUNT"
)

// Aggregate is a single aggregate projection: `AVG(price)`.
type Aggregate struct {
	Func  AggregateFunc
	Field string
}

// SelectQuery is the parsed form of one SELECT/MATCH statement
// (spec.md §6 "Query surface").
type SelectQuery struct {
	From       string
	Where      *Condition
	Near       *NearClause
	NearFused  *NearFusedClause
	Match      *MatchPattern
	MatchWhere *Condition
	Join       *JoinClause
	Aggregate  *Aggregate // set for a scalar-aggregate subquery
	Return     []string
	OrderBy    []OrderTerm
	Limit      int

	// SetOp and Combine, when SetOp != SetOpNone, name the query this
	// one is combined with (spec.md §6 "UNION/INTERSECT/EXCEPT").
	SetOp   SetOp
	Combine *SelectQuery

	// CorrelatedFields names the outer-row fields a subquery may
	// reference; only meaningful when this SelectQuery is itself a
	// Value.Subquery.
	CorrelatedFields []string
}
