package ledger

import (
	"context"
	"testing"
	"time"

	"accounting/internal/core"
)

func TestFilterClause(t *testing.T) {
	user, company := int64(4), int64(9)
	tests := []struct {
		name     string
		filter   core.LedgerFilter
		ph       Placeholder
		wantSQL  string
		wantArgs []any
	}{
		{"empty", core.LedgerFilter{}, QuestionMark, "", nil},
		{"actor", core.LedgerFilter{ActorID: &user}, QuestionMark, " WHERE e.user_id = ?", []any{user}},
		{"company", core.LedgerFilter{CompanyID: &company}, Dollar, " WHERE e.company_id = $1", []any{company}},
		{"both", core.LedgerFilter{ActorID: &user, CompanyID: &company}, Dollar, " WHERE e.user_id = $1 AND e.company_id = $2", []any{user, company}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := FilterClause(tt.filter, "e.user_id", "e.company_id", 1, tt.ph)
			if sql != tt.wantSQL {
				t.Errorf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if len(args) != len(tt.wantArgs) {
				t.Fatalf("args = %v, want %v", args, tt.wantArgs)
			}
			for i := range args {
				if args[i] != tt.wantArgs[i] {
					t.Errorf("arg %d = %v, want %v", i, args[i], tt.wantArgs[i])
				}
			}
		})
	}
}

func TestDollarNumbering(t *testing.T) {
	if got := Dollar(12); got != "$12" {
		t.Fatalf("Dollar(12) = %q", got)
	}
}

func TestContainsPattern(t *testing.T) {
	cases := map[string]string{
		"nile":    "%nile%",
		" 50% ":   `%50\%%`,
		"a_b":     `%a\_b%`,
		`back\sl`: `%back\\sl%`,
		"":        "%%",
	}
	for in, want := range cases {
		if got := ContainsPattern(in); got != want {
			t.Errorf("ContainsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithTimeoutDefault(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected a deadline")
	}
	if left := time.Until(deadline); left <= 0 || left > DefaultTimeout {
		t.Fatalf("unexpected remaining time %v", left)
	}
}
