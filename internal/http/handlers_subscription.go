package http

import (
	"net/http"

	"subcal/internal/core"
	"subcal/internal/log"
)

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	user, err := requireUser(r)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	subs, err := s.subs.List(r.Context(), user)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	out := make([]subscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		out = append(out, newSubscriptionResponse(sub))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	sub, err := req.toSubscription()
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	created, err := s.subs.Create(r.Context(), sub)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Subscription created",
		log.NewFields().WithSubscription(created.ID, created.UserID, string(created.Cycle),
			created.Amount.String(), created.Currency).ToSlice()...)
	w.Header().Set("Location", "/api/subscriptions/"+created.ID)
	writeJSON(w, http.StatusCreated, newSubscriptionResponse(created))
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(sub))
}

// handleUpdateSubscription replaces every editable field. The owner in the
// body is ignored.
func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	sub, err := req.toSubscription()
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	sub.ID = r.PathValue("id")

	updated, err := s.subs.Update(r.Context(), sub)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(updated))
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.subs.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	status, err := core.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}

	sub, err := s.subs.SetStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, newSubscriptionResponse(sub))
}
