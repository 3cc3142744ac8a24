package http

import (
	"net/http"

	"accounting/internal/core"
	"accounting/internal/log"
)

const kindUser = "user"

func (s *Server) registerUser(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	// Only an admin may create another admin.
	if c.IsAdmin {
		if a, found := actorFrom(r.Context()); !found || !a.Admin {
			writeError(w, r, errForbidden)
			return
		}
	}

	u, err := s.store.RegisterUser(r.Context(), core.User{Name: c.Name, Password: c.Password, IsAdmin: c.IsAdmin})
	s.observe(log.OpCreate, kindUser, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created(w, "user registered", u)
}

func (s *Server) loginUser(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.store.LoginUser(r.Context(), c.Name, c.Password)
	s.observe(log.OpRead, kindUser, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "logged in", u)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	s.observe(log.OpList, kindUser, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "users", users)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = selfOrAdmin(r.Context(), id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.store.GetUser(r.Context(), id)
	s.observe(log.OpRead, kindUser, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "user", u)
}

// updateUser changes name and password; role and balance are not taken
// from the body.
func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err == nil {
		err = selfOrAdmin(r.Context(), id)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	var c credentials
	if err := decodeJSON(w, r, &c); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := s.store.UpdateUser(r.Context(), core.User{ID: id, Name: c.Name, Password: c.Password})
	s.observe(log.OpUpdate, kindUser, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "user updated", u)
}

func (s *Server) payUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p paymentRequest
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.store.PayUser(r.Context(), id, p.Value)
	s.observe(log.OpPay, kindUser, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "User paid", log.FieldUserID, id, log.FieldAmountCents, p.Value.Cents)
	ok(w, "user paid", u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	err = s.store.DeleteUser(r.Context(), id)
	s.observe(log.OpDelete, kindUser, err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, "user deleted", nil)
}
