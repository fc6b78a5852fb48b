package filter

import (
	"fmt"
	"strconv"

	"github.com/logferry/logferry/internal/model"
)

// Validate checks operator/type compatibility and coerces numeric
// literals once for the whole query. Relational operators on string
// fields and uncoercible literals surface here, not during matching.
func (q Query) Validate() error {
	for i := range q {
		c := &q[i]
		switch c.kind {
		case kindString:
			if c.Op != "=" && c.Op != "!=" {
				return fmt.Errorf("%w: operator %q not valid for string field %q", ErrEval, c.Op, c.Field)
			}
		case kindUint:
			v, err := strconv.ParseUint(c.Literal, 10, 32)
			if err != nil {
				return fmt.Errorf("%w: %q is not a valid value for field %q", ErrEval, c.Literal, c.Field)
			}
			c.uintVal = v
		case kindFloat:
			v, err := strconv.ParseFloat(c.Literal, 32)
			if err != nil {
				return fmt.Errorf("%w: %q is not a valid value for field %q", ErrEval, c.Literal, c.Field)
			}
			c.floatVal = v
		}
	}
	return nil
}

// Match reports whether every clause holds for e. The query must have
// been validated; Match itself cannot fail.
func (q Query) Match(e model.LogEntry) bool {
	for _, c := range q {
		if !c.match(e) {
			return false
		}
	}
	return true
}

func (c Clause) match(e model.LogEntry) bool {
	switch c.kind {
	case kindString:
		var v string
		switch c.Field {
		case "username", "user":
			v = e.Username
		case "ip":
			v = e.IP
		case "server":
			v = e.Server
		}
		if c.Op == "=" {
			return v == c.Literal
		}
		return v != c.Literal

	case kindUint:
		var v uint32
		switch c.Field {
		case "port":
			v = uint32(e.Port)
		case "accesstime":
			v = e.AccessTime
		case "datasent":
			v = e.DataSent
		case "datareceived":
			v = e.DataReceived
		}
		return compareUint(v, c.Op, uint32(c.uintVal))

	case kindFloat:
		return compareFloat(e.Score, c.Op, float32(c.floatVal))
	}
	return false
}

func compareUint(a uint32, op string, b uint32) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}

func compareFloat(a float32, op string, b float32) bool {
	switch op {
	case "=":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}

// Apply validates q once, then returns the entries matching every
// clause, preserving input order.
func Apply(q Query, entries []model.LogEntry) ([]model.LogEntry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	out := make([]model.LogEntry, 0, len(entries))
	for _, e := range entries {
		if q.Match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
