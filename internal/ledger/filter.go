package ledger

import (
	"strconv"
	"strings"

	"accounting/internal/core"
)

// Placeholder renders the bind marker for the n-th (1-based) argument.
type Placeholder func(n int) string

func QuestionMark(int) string { return "?" }

func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// FilterClause renders f as a WHERE clause over actorCol and companyCol.
// Arguments are numbered from first. An empty filter yields "".
func FilterClause(f core.LedgerFilter, actorCol, companyCol string, first int, ph Placeholder) (string, []any) {
	var conds []string
	var args []any
	if f.ActorID != nil {
		conds = append(conds, actorCol+" = "+ph(first+len(args)))
		args = append(args, *f.ActorID)
	}
	if f.CompanyID != nil {
		conds = append(conds, companyCol+" = "+ph(first+len(args)))
		args = append(args, *f.CompanyID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns a search term into a LIKE pattern matching it as a
// literal substring. The escape character is a backslash.
func ContainsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(q)) + "%"
}
