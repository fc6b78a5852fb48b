// Package filter implements the predicate language used to query log
// entries: comma-separated clauses of the form `field operator value`,
// conjunctively combined.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrParse reports a clause that does not match the grammar or
	// names an unknown field. The whole query is rejected before any
	// record is touched.
	ErrParse = errors.New("filter: parse error")

	// ErrEval reports a type/operator mismatch or a literal that cannot
	// coerce to the field's numeric type. Raised once per query, never
	// per record.
	ErrEval = errors.New("filter: evaluation error")
)

// fieldKind classifies a field for operator checking and coercion.
type fieldKind int

const (
	kindString fieldKind = iota
	kindUint
	kindFloat
)

// fieldKinds maps lowercased field names to their kind, alias style.
var fieldKinds = map[string]fieldKind{
	"username":     kindString,
	"user":         kindString,
	"ip":           kindString,
	"server":       kindString,
	"port":         kindUint,
	"accesstime":   kindUint,
	"datasent":     kindUint,
	"datareceived": kindUint,
	"score":        kindFloat,
}

// operators in longest-match-first order so != wins over =, <= over <.
var operators = []string{"!=", "<=", ">=", "=", "<", ">"}

// Clause is one field/operator/literal unit.
type Clause struct {
	Field   string // lowercased field name
	Op      string
	Literal string

	kind fieldKind
	// coerced literal, filled by Validate for numeric fields
	uintVal  uint64
	floatVal float64
}

// Query is an ordered, AND-combined clause list. The empty query
// matches every record.
type Query []Clause

// Parse splits the input on commas and matches each clause against the
// grammar. An empty input parses to the empty query.
func Parse(input string) (Query, error) {
	if strings.TrimSpace(input) == "" {
		return Query{}, nil
	}

	parts := strings.Split(input, ",")
	q := make(Query, 0, len(parts))
	for _, part := range parts {
		clause, err := parseClause(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		q = append(q, clause)
	}
	return q, nil
}

func parseClause(s string) (Clause, error) {
	if s == "" {
		return Clause{}, fmt.Errorf("%w: empty clause", ErrParse)
	}

	// Longest-match operator scan avoids the =/!= prefix ambiguity.
	for _, op := range operators {
		idx := strings.Index(s, op)
		if idx <= 0 {
			continue
		}
		field := strings.ToLower(strings.TrimSpace(s[:idx]))
		literal := strings.TrimSpace(s[idx+len(op):])

		kind, ok := fieldKinds[field]
		if !ok {
			return Clause{}, fmt.Errorf("%w: unknown field %q", ErrParse, field)
		}
		if literal == "" {
			return Clause{}, fmt.Errorf("%w: missing value in clause %q", ErrParse, s)
		}
		return Clause{Field: field, Op: op, Literal: literal, kind: kind}, nil
	}

	return Clause{}, fmt.Errorf("%w: no operator in clause %q", ErrParse, s)
}
