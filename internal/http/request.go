package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"accounting/internal/core"
)

const (
	maxBodyBytes   = 1 << 20
	maxUploadBytes = 32 << 20
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", core.ErrInvalidValue, err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %s %q is not a valid id", core.ErrInvalidValue, name, raw)
	}
	return id, nil
}

func queryID(r *http.Request, key string) (*int64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s %q is not a valid id", core.ErrInvalidValue, key, raw)
	}
	return &id, nil
}

// ledgerFilter reads the optional actor and company restrictions of a
// listing; actorKey names the actor dimension ("user_id" or "admin_id").
func ledgerFilter(r *http.Request, actorKey string) (core.LedgerFilter, error) {
	actor, err := queryID(r, actorKey)
	if err != nil {
		return core.LedgerFilter{}, err
	}
	company, err := queryID(r, "company_id")
	if err != nil {
		return core.LedgerFilter{}, err
	}
	return core.LedgerFilter{ActorID: actor, CompanyID: company}, nil
}

type (
	credentials struct {
		Name     string `json:"name"`
		Password string `json:"password"`
		IsAdmin  bool   `json:"is_admin"`
	}

	paymentRequest struct {
		Value core.Money `json:"value"`
	}

	// entryRequest is the body of every ledger-entry creation.
	entryRequest struct {
		Value       core.Money `json:"value"`
		Description string     `json:"description"`
	}

	funderRequest struct {
		Name string `json:"name"`
	}
)
