package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"carteira/internal/core"
	"carteira/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// respond writes err through writeError or body with status.
func respond(w http.ResponseWriter, r *http.Request, op string, status int, body any, err error) {
	if err != nil {
		var re *requestError
		if errors.As(err, &re) {
			BadRequestError(re.msg).Write(w)
			return
		}
		writeError(w, r, op, err)
		return
	}
	NewJSONResponse().Status(status).Body(body).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := ParseListFilter(r.URL.Query())
	if err != nil {
		respond(w, r, log.OpList, 0, nil, err)
		return
	}
	rows, err := s.svc.List(r.Context(), f)
	respond(w, r, log.OpList, http.StatusOK, map[string]any{"transactions": nonNil(rows)}, err)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond(w, r, log.OpCreate, 0, nil, err)
		return
	}
	rows, err := s.svc.Create(r.Context(), req.details(), req.Repeat)
	respond(w, r, log.OpCreate, http.StatusCreated, map[string]any{"transactions": rows}, err)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.svc.Get(r.Context(), r.PathValue("id"))
	respond(w, r, log.OpRead, http.StatusOK, tx, err)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond(w, r, log.OpUpdate, 0, nil, err)
		return
	}
	scope, err := parseScope(r, req.Scope)
	if err != nil {
		respond(w, r, log.OpUpdate, 0, nil, err)
		return
	}
	res, err := s.svc.Edit(r.Context(), r.PathValue("id"), req.details(), req.Repeat, scope)
	respond(w, r, log.OpUpdate, http.StatusOK, res, err)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r, "")
	if err != nil {
		respond(w, r, log.OpDelete, 0, nil, err)
		return
	}
	res, err := s.svc.Delete(r.Context(), r.PathValue("id"), scope)
	respond(w, r, log.OpDelete, http.StatusOK, res, err)
}

func (s *Server) handleSetCleared(w http.ResponseWriter, r *http.Request) {
	var req clearedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond(w, r, log.OpClear, 0, nil, err)
		return
	}
	rows, err := s.svc.SetCleared(r.Context(), req.IDs, req.Cleared)
	respond(w, r, log.OpClear, http.StatusOK, map[string]any{"transactions": nonNil(rows)}, err)
}

// handleDeleteTransactions removes the listed rows one by one; group
// membership of the survivors is not touched.
func (s *Server) handleDeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond(w, r, log.OpDelete, 0, nil, err)
		return
	}
	res, err := s.svc.DeleteMany(r.Context(), req.IDs)
	respond(w, r, log.OpDelete, http.StatusOK, res, err)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	mp, err := ParseMonthParams(r.URL.Query(), time.Now())
	if err != nil {
		respond(w, r, log.OpSummary, 0, nil, err)
		return
	}
	summary, err := s.svc.MonthSummary(r.Context(), mp.Year, mp.Month)
	respond(w, r, log.OpSummary, http.StatusOK, summary, err)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.svc.ListAccounts(r.Context())
	respond(w, r, log.OpList, http.StatusOK, map[string]any{"accounts": nonNil(accounts)}, err)
}

type accountRequest struct {
	Name                    string     `json:"name"`
	InitialBalance          core.Money `json:"initial_balance"`
	IncludeInMonthlySummary bool       `json:"include_in_monthly_summary"`
	Archived                bool       `json:"archived"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond(w, r, log.OpCreate, 0, nil, err)
		return
	}
	acc, err := s.svc.CreateAccount(r.Context(), core.Account{
		Name:                    strings.TrimSpace(sanitizeInput(req.Name)),
		InitialBalance:          req.InitialBalance,
		IncludeInMonthlySummary: req.IncludeInMonthlySummary,
	})
	respond(w, r, log.OpCreate, http.StatusCreated, acc, err)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond(w, r, log.OpUpdate, 0, nil, err)
		return
	}
	acc, err := s.svc.UpdateAccount(r.Context(), core.Account{
		ID:                      r.PathValue("id"),
		Name:                    strings.TrimSpace(sanitizeInput(req.Name)),
		InitialBalance:          req.InitialBalance,
		IncludeInMonthlySummary: req.IncludeInMonthlySummary,
		Archived:                req.Archived,
	})
	respond(w, r, log.OpUpdate, http.StatusOK, acc, err)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	err := s.svc.DeleteAccount(r.Context(), id)
	respond(w, r, log.OpDelete, http.StatusOK, map[string]string{"id": id}, err)
}

// nonNil keeps empty listings as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
