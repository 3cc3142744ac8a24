package http

import (
	"net/http"

	"accounting/internal/log"
)

// entryTarget resolves the company in the path, the calling actor and the
// decoded entry body shared by every ledger creation route.
func entryTarget(w http.ResponseWriter, r *http.Request) (companyID int64, a Actor, req entryRequest, err error) {
	companyID, err = pathID(r, "id")
	if err != nil {
		return 0, Actor{}, entryRequest{}, err
	}
	a, _ = actorFrom(r.Context())
	err = decodeJSON(w, r, &req)
	return companyID, a, req, err
}

// createExpense debits the calling user.
func (s *Server) createExpense(w http.ResponseWriter, r *http.Request) {
	companyID, a, req, err := entryTarget(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.store.CreateExpense(r.Context(), a.ID, companyID, req.Value, req.Description)
	s.observe(log.OpCreate, log.EntryExpense, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogLedgerEntry(r.Context(), log.OpCreate, log.EntryExpense, e.ID, a.ID, companyID, e.Value.Cents)
	created(w, "expense recorded", e)
}

func (s *Server) listExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := s.store.ListExpenses(r.Context(), f)
	s.observe(log.OpList, log.EntryExpense, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "expenses", expenses)
}

// deleteExpense removes the row and credits its payer back.
func (s *Server) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.store.DeleteExpense(r.Context(), id)
	s.observe(log.OpDelete, log.EntryExpense, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, _ := actorFrom(r.Context())
	s.events.LogLedgerEntry(r.Context(), log.OpDelete, log.EntryExpense, id, a.ID, 0, 0)
	ok(w, "expense deleted", nil)
}

// createIncome attributes the income to the calling admin.
func (s *Server) createIncome(w http.ResponseWriter, r *http.Request) {
	companyID, a, req, err := entryTarget(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := s.store.CreateIncome(r.Context(), a.ID, companyID, req.Value, req.Description)
	s.observe(log.OpCreate, log.EntryIncome, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogLedgerEntry(r.Context(), log.OpCreate, log.EntryIncome, in.ID, a.ID, companyID, in.Value.Cents)
	created(w, "income recorded", in)
}

func (s *Server) listIncomes(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r, "admin_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	incomes, err := s.store.ListIncomes(r.Context(), f)
	s.observe(log.OpList, log.EntryIncome, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "incomes", incomes)
}

func (s *Server) deleteIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.store.DeleteIncome(r.Context(), id)
	s.observe(log.OpDelete, log.EntryIncome, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, _ := actorFrom(r.Context())
	s.events.LogLedgerEntry(r.Context(), log.OpDelete, log.EntryIncome, id, a.ID, 0, 0)
	ok(w, "income deleted", nil)
}

func (s *Server) createMoneyCapital(w http.ResponseWriter, r *http.Request) {
	companyID, a, req, err := entryTarget(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	mc, err := s.capitals.CreateMoneyCapital(r.Context(), a.ID, companyID, req.Value, req.Description)
	s.observe(log.OpCreate, log.EntryMoneyCapital, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.events.LogLedgerEntry(r.Context(), log.OpCreate, log.EntryMoneyCapital, mc.ID, a.ID, companyID, mc.Value.Cents)
	created(w, "money capital recorded", mc)
}

func (s *Server) listMoneyCapitals(w http.ResponseWriter, r *http.Request) {
	f, err := ledgerFilter(r, "user_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	capitals, err := s.capitals.ListMoneyCapitals(r.Context(), f)
	s.observe(log.OpList, log.EntryMoneyCapital, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "money capitals", capitals)
}

func (s *Server) deleteMoneyCapital(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.capitals.DeleteMoneyCapital(r.Context(), id)
	s.observe(log.OpDelete, log.EntryMoneyCapital, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, _ := actorFrom(r.Context())
	s.events.LogLedgerEntry(r.Context(), log.OpDelete, log.EntryMoneyCapital, id, a.ID, 0, 0)
	ok(w, "money capital deleted", nil)
}
