package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"psychic-credits/internal/domain/model"
)

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.PaymentFilter{Search: q.Get("search")}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		st, ok := model.ParsePaymentStatus(raw)
		if !ok {
			s.fail(w, r, invalid("unknown status "+raw))
			return
		}
		f.Status = st
	}
	f.Limit, f.Offset = pageParams(r, 50)

	items, total, err := s.payments.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, p := range items {
		out = append(out, paymentView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"items":   out,
		"total":   total,
		"limit":   f.Limit,
		"offset":  f.Offset,
	})
}

func (s *Server) handleAdminGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payment": paymentView(p)})
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.payments.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
