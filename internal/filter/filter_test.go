package filter

import (
	"errors"
	"testing"

	"github.com/logferry/logferry/internal/model"
)

func TestParseSimple(t *testing.T) {
	tests := []struct {
		input string
		check func(Query) bool
	}{
		{
			input: "username=Alice",
			check: func(q Query) bool {
				return len(q) == 1 && q[0].Field == "username" && q[0].Op == "=" && q[0].Literal == "Alice"
			},
		},
		{
			input: "server!=srvB",
			check: func(q Query) bool {
				return len(q) == 1 && q[0].Op == "!=" && q[0].Literal == "srvB"
			},
		},
		{
			input: "accessTime<=75",
			check: func(q Query) bool {
				return len(q) == 1 && q[0].Field == "accesstime" && q[0].Op == "<=" && q[0].Literal == "75"
			},
		},
		{
			input: "score>=4.5",
			check: func(q Query) bool {
				return len(q) == 1 && q[0].Op == ">=" && q[0].Literal == "4.5"
			},
		},
		{
			input: " port < 1024 ",
			check: func(q Query) bool {
				return len(q) == 1 && q[0].Field == "port" && q[0].Op == "<" && q[0].Literal == "1024"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			q, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if !tt.check(q) {
				t.Errorf("check failed for input %q, got: %+v", tt.input, q)
			}
		})
	}
}

func TestParseCompound(t *testing.T) {
	q, err := Parse("server=srvA,accessTime<75,score>1")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(q) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(q))
	}
	if q[0].Field != "server" || q[1].Field != "accesstime" || q[2].Field != "score" {
		t.Errorf("clause order not preserved: %+v", q)
	}
}

func TestParseEmptyQuery(t *testing.T) {
	for _, input := range []string{"", "   "} {
		q, err := Parse(input)
		if err != nil {
			t.Fatalf("parse error for %q: %v", input, err)
		}
		if len(q) != 0 {
			t.Errorf("expected empty query for %q, got %+v", input, q)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"hostname=foo",       // unknown field
		"username",           // no operator
		"=Alice",             // no field
		"username=",          // no value
		"server=srvA,,port=1", // empty clause
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); !errors.Is(err, ErrParse) {
				t.Errorf("Parse(%q) = %v, want ErrParse", input, err)
			}
		})
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []string{
		"username<Alice", // relational on string field
		"server>=srvA",   // relational on string field
		"port=abc",       // uncoercible literal
		"accessTime<1.5", // float literal on integer field
		"score>high",     // uncoercible literal
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			q, err := Parse(input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if err := q.Validate(); !errors.Is(err, ErrEval) {
				t.Errorf("Validate(%q) = %v, want ErrEval", input, err)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	entry := model.LogEntry{
		Username:     "Alice",
		IP:           "10.0.0.9",
		Server:       "srvA",
		Port:         54362,
		AccessTime:   100,
		DataSent:     100,
		DataReceived: 0,
		Score:        1.0,
	}

	tests := []struct {
		query    string
		expected bool
	}{
		{"username=Alice", true},
		{"username!=Alice", false},
		{"username=alice", false}, // string comparison is exact text
		{"ip=10.0.0.9", true},
		{"server=srvA,accessTime<200", true},
		{"server=srvA,accessTime<75", false},
		{"accessTime>=100,accessTime<=100", true},
		{"dataSent=100,dataReceived=0", true},
		{"port>1024", true},
		{"score>0.5", true},
		{"score>4", false},
		{"score=1", true},
		{"", true}, // empty query passes every record
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if err := q.Validate(); err != nil {
				t.Fatalf("validate error: %v", err)
			}
			if got := q.Match(entry); got != tt.expected {
				t.Errorf("Match(%q) = %v, want %v", tt.query, got, tt.expected)
			}
		})
	}
}

func TestMatchConjunction(t *testing.T) {
	// A query matches iff every clause individually matches.
	entry := model.LogEntry{Username: "Bob", IP: "10.0.0.4", Server: "srvA",
		Port: 24153, AccessTime: 50, DataSent: 100, Score: 1.0}

	clauses := []string{"username=Bob", "accessTime<75", "server=srvA"}
	for i := range clauses {
		q, err := Parse(clauses[i])
		if err != nil {
			t.Fatalf("parse error: %v", err)
		}
		if err := q.Validate(); err != nil {
			t.Fatalf("validate error: %v", err)
		}
		if !q.Match(entry) {
			t.Fatalf("clause %q should match on its own", clauses[i])
		}
	}

	q, err := Parse("username=Bob,accessTime<75,server=srvA")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if err := q.Validate(); err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !q.Match(entry) {
		t.Error("conjunction of individually true clauses should match")
	}

	q, err = Parse("username=Bob,accessTime<75,server=srvB")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if err := q.Validate(); err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if q.Match(entry) {
		t.Error("one false clause must fail the conjunction")
	}
}

func TestApply(t *testing.T) {
	entries := []model.LogEntry{
		{Username: "Alice", IP: "10.0.0.9", Server: "srvA", Port: 54362, AccessTime: 100, DataSent: 100, Score: 1.0},
		{Username: "Bob", IP: "10.0.0.4", Server: "srvA", Port: 24153, AccessTime: 50, DataSent: 100, Score: 1.0},
		{Username: "Cara", IP: "10.0.0.7", Server: "srvB", Port: 8080, AccessTime: 60, DataSent: 5, Score: 7.5},
	}

	q, err := Parse("accessTime<75")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	got, err := Apply(q, entries)
	if err != nil {
		t.Fatalf("apply error: %v", err)
	}
	if len(got) != 2 || got[0].Username != "Bob" || got[1].Username != "Cara" {
		t.Errorf("input order not preserved: %+v", got)
	}

	// A type/operator mismatch surfaces once for the whole query,
	// before any record is touched.
	q, err = Parse("server<srvB")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if _, err := Apply(q, entries); !errors.Is(err, ErrEval) {
		t.Errorf("Apply with relational string clause = %v, want ErrEval", err)
	}
}
