package http

import (
	"net/http"

	"accounting/internal/core"
	"accounting/internal/log"
)

const (
	kindCompany = "company"
	kindFunder  = "funder"
)

func (s *Server) createCompany(w http.ResponseWriter, r *http.Request) {
	var v core.CompanyView
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.store.CreateCompany(r.Context(), v)
	s.observe(log.OpCreate, kindCompany, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, "company created", out)
}

func (s *Server) searchCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.store.SearchCompanies(r.Context(), r.URL.Query().Get("search"))
	s.observe(log.OpSearch, kindCompany, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "companies", companies)
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.store.GetCompany(r.Context(), id)
	s.observe(log.OpRead, kindCompany, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "company", v)
}

// updateCompany takes the full aggregate; the id in the path wins over any
// id in the body.
func (s *Server) updateCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var v core.CompanyView
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, r, err)
		return
	}
	v.ID = id
	if s.capitals != nil {
		// Rows added through the aggregate are paid by the caller unless
		// the body names a payer.
		a, _ := actorFrom(r.Context())
		for i := range v.MoneyCapitals {
			if v.MoneyCapitals[i].UserID == 0 {
				v.MoneyCapitals[i].UserID = a.ID
			}
		}
	}

	out, err := s.store.UpdateCompany(r.Context(), v)
	s.observe(log.OpUpdate, kindCompany, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "company updated", out)
}

func (s *Server) deleteCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.store.DeleteCompany(r.Context(), id)
	s.observe(log.OpDelete, kindCompany, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Company deleted", log.FieldCompanyID, id)
	ok(w, "company deleted", nil)
}

func (s *Server) createFunder(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req funderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.store.CreateFunder(r.Context(), companyID, core.Funder{Name: req.Name, CompanyID: companyID})
	s.observe(log.OpCreate, kindFunder, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, "funder created", f)
}

func (s *Server) listFunders(w http.ResponseWriter, r *http.Request) {
	companyID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	funders, err := s.store.ListFunders(r.Context(), companyID)
	s.observe(log.OpList, kindFunder, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "funders", funders)
}

func (s *Server) deleteFunder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.store.DeleteFunder(r.Context(), id)
	s.observe(log.OpDelete, kindFunder, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "funder deleted", nil)
}
