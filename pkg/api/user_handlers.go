package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jobportal/pkg/accounts"
	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/auth"
	"github.com/platinummonkey/jobportal/pkg/authz"
	"github.com/platinummonkey/jobportal/pkg/httputil"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

// UserHandlers serves the current user and user administration
type UserHandlers struct {
	accounts *accounts.Service
}

// NewUserHandlers creates user handlers
func NewUserHandlers(accts *accounts.Service) *UserHandlers {
	return &UserHandlers{accounts: accts}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router, a *authz.Authorizer) {
	router.Handle("/me", route(a, authz.Authenticated, h.me)).Methods(http.MethodGet)
	router.Handle("/users", route(a, authz.Admins, h.listUsers)).Methods(http.MethodGet)
	router.Handle("/users/{id}", route(a, authz.Admins, h.getUser)).Methods(http.MethodGet)
	router.Handle("/users/{id}/status", route(a, authz.Admins, h.setStatus)).Methods(http.MethodPatch)
}

// me handles GET /me
func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.Me(r.Context(), authz.UserFromContext(r.Context()).ID)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "", user)
}

// listUsers handles GET /users
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.QueryPage(r)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	activeOnly, err := httputil.QueryBool(r, "active_only", false)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	filter := accounts.UserFilter{ActiveOnly: activeOnly, Page: page}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, err := auth.ParseRole(raw)
		if err != nil {
			httputil.WriteFailure(w, r, apperr.BadRequest(err.Error()))
			return
		}
		filter.Role = role
	}

	users, total, err := h.accounts.ListUsers(r.Context(), filter)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	writeList(w, users, total, page)
}

// getUser handles GET /users/{id}
func (h *UserHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	user, err := h.accounts.GetUser(r.Context(), id)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "", user)
}

type statusRequest struct {
	IsActive *bool `json:"is_active"`
}

// setStatus handles PATCH /users/{id}/status
func (h *UserHandlers) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	var req statusRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	if req.IsActive == nil {
		httputil.WriteFailure(w, r, apperr.MissingParameter("is_active"))
		return
	}

	user, err := h.accounts.SetActive(r.Context(), authz.UserFromContext(r.Context()), id, *req.IsActive)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	message := "user deactivated"
	if user.IsActive {
		message = "user activated"
	}
	httputil.WriteSuccess(w, message, user)
}

func writeList[T any](w http.ResponseWriter, items []T, total int64, page storage.Page) {
	if items == nil {
		items = []T{}
	}
	httputil.WriteSuccess(w, "", httputil.ListData{
		Items: items,
		Page:  httputil.PageMeta{Total: total, Limit: page.Limit, Offset: page.Offset},
	})
}
