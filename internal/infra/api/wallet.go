package api

import (
	"net/http"
	"strconv"
	"strings"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
)

type creditsRequest struct {
	UserID    string `json:"userId" validate:"omitempty,max=128"`
	Credits   int64  `json:"credits" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"omitempty,max=255"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	wl, err := s.wallets.Balance(r.Context(), actor.UserID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"credits":   wl.Credits,
		"balance":   wl.Balance.StringFixed(2),
		"lastTopup": wl.LastTopup,
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	limit, offset := pageParams(r, 50)
	txs, err := s.wallets.Transactions(r.Context(), actor.UserID, limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]map[string]any, 0, len(txs))
	for _, t := range txs {
		items = append(items, transactionView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
		"limit":   limit,
		"offset":  offset,
	})
}

func transactionView(t *model.WalletTransaction) map[string]any {
	return map[string]any{
		"id":           t.ID,
		"type":         t.Type,
		"credits":      t.Credits,
		"creditsAfter": t.CreditsAfter,
		"reference":    t.Reference,
		"createdAt":    t.CreatedAt,
	}
}

// handleDeduct spends credits. Only admins may name another user's wallet.
func (s *Server) handleDeduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req creditsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	target := strings.TrimSpace(req.UserID)
	if target == "" {
		target = actor.UserID
	}
	if !actor.CanAccess(target) {
		s.fail(w, r, domain.ErrForbidden)
		return
	}
	wl, err := s.wallets.Deduct(r.Context(), target, req.Credits, req.Reference)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "credits": wl.Credits})
}

func (s *Server) handleAddCredits(w http.ResponseWriter, r *http.Request) {
	var req creditsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	target := strings.TrimSpace(req.UserID)
	if target == "" {
		s.fail(w, r, invalid("userId is required"))
		return
	}
	wl, err := s.wallets.Credit(r.Context(), target, req.Credits, req.Reference)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "credits": wl.Credits})
}

func pageParams(r *http.Request, def int) (limit, offset int) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = def
	}
	offset, err = strconv.Atoi(q.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
