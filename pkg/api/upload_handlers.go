package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/authz"
	"github.com/platinummonkey/jobportal/pkg/httputil"
	"github.com/platinummonkey/jobportal/pkg/upload"
)

// UploadHandlers serves generic authenticated file uploads
type UploadHandlers struct {
	uploader *upload.Uploader
}

// NewUploadHandlers creates upload handlers
func NewUploadHandlers(uploader *upload.Uploader) *UploadHandlers {
	return &UploadHandlers{uploader: uploader}
}

// RegisterRoutes registers upload routes
func (h *UploadHandlers) RegisterRoutes(router *mux.Router, a *authz.Authorizer) {
	router.Handle("/uploads", route(a, authz.Authenticated, h.upload)).Methods(http.MethodPost)
}

// upload handles POST /uploads. Every file field is stored under the caller's prefix.
func (h *UploadHandlers) upload(w http.ResponseWriter, r *http.Request) {
	if !httputil.IsMultipart(r) {
		httputil.WriteFailure(w, r, apperr.BadRequest("multipart/form-data body is required"))
		return
	}
	form, err := h.uploader.ParseForm(r)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	defer form.RemoveAll()

	user := authz.UserFromContext(r.Context())
	results, err := h.uploader.SaveForm(r.Context(), "users/"+strconv.FormatInt(user.ID, 10), form)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	if len(results) == 0 {
		httputil.WriteFailure(w, r, apperr.MissingParameter("file"))
		return
	}
	httputil.WriteCreated(w, "files uploaded", results)
}
