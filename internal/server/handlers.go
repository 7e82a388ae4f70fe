package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tabsync/tabsync/internal/ledger"
	"github.com/tabsync/tabsync/internal/middleware"
	"github.com/tabsync/tabsync/internal/models"
	"github.com/tabsync/tabsync/internal/service"
)

// authResponse is the register/login payload: the user plus a session
// token for the Authorization header and the websocket handshake.
type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	user, token, err := s.auth.Register(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{User: user, Token: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	user, token, err := s.auth.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var in service.GroupInput
	if err := decodeJSON(r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	group, err := s.groups.CreateGroup(r.Context(), middleware.GetUsername(r.Context()), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.ListGroups(r.Context(), middleware.GetUsername(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	if groups == nil {
		groups = []*models.Group{}
	}
	respondJSON(w, http.StatusOK, groups)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.GetGroup(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleAddMembers(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Usernames []string `json:"usernames"`
	}
	if err := decodeJSON(r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	group, err := s.groups.AddMembers(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"), in.Usernames)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var in service.EventInput
	if err := decodeJSON(r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	event, err := s.ledgers.CreateEvent(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

func (s *Server) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.ledgers.CancelEvent(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID")); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetEvent is the resync endpoint: the authoritative event state
// straight from storage, for clients recovering after a reconnect.
func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := s.ledgers.Resync(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]*models.Event{"event": event})
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	var in service.ExpenseInput
	if err := decodeJSON(r, &in); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	expense, err := s.ledgers.AddExpense(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"), in)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, expense)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var patch ledger.Patch
	if err := decodeJSON(r, &patch); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	changed, err := s.ledgers.UpdateExpense(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"), chi.URLParam(r, "expenseID"), patch)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

func (s *Server) handleRemoveExpense(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ledgers.RemoveExpense(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"), chi.URLParam(r, "expenseID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.ledgers.Balances(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balances)
}

func (s *Server) handlePreviewSettlement(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledgers.PreviewSettlement(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"), chi.URLParam(r, "toUser"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	res, err := s.ledgers.Settle(r.Context(), middleware.GetUsername(r.Context()), chi.URLParam(r, "groupID"), chi.URLParam(r, "toUser"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleWS upgrades to the live propagation channel. The client is
// joined to every group it currently belongs to; membership changes
// after the handshake arrive as join/leave frames from the client.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	username := middleware.GetUsername(r.Context())
	groups, err := s.groups.ListGroups(r.Context(), username)
	if err != nil {
		respondError(w, err)
		return
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	s.gw.HandleWS(w, r, username, ids)
}
