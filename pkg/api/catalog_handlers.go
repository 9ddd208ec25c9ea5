package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/authz"
	"github.com/platinummonkey/jobportal/pkg/catalog"
	"github.com/platinummonkey/jobportal/pkg/httputil"
	"github.com/platinummonkey/jobportal/pkg/upload"
)

// FieldImage is the category image upload field
const FieldImage = "image"

// CatalogHandlers serves categories and job postings
type CatalogHandlers struct {
	catalog  *catalog.Service
	uploader *upload.Uploader
}

// NewCatalogHandlers creates catalog handlers
func NewCatalogHandlers(svc *catalog.Service, uploader *upload.Uploader) *CatalogHandlers {
	return &CatalogHandlers{catalog: svc, uploader: uploader}
}

// RegisterRoutes registers category and job routes
func (h *CatalogHandlers) RegisterRoutes(router *mux.Router, a *authz.Authorizer) {
	router.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)
	router.HandleFunc("/categories/{id}", h.getCategory).Methods(http.MethodGet)
	router.Handle("/categories", route(a, authz.Elevated, h.createCategory)).Methods(http.MethodPost)
	router.Handle("/categories/{id}", route(a, authz.Elevated, h.updateCategory)).Methods(http.MethodPut)
	router.Handle("/categories/{id}", route(a, authz.Elevated, h.deleteCategory)).Methods(http.MethodDelete)

	router.HandleFunc("/jobs", h.listJobs).Methods(http.MethodGet)
	router.HandleFunc("/jobs/{id}", h.getJob).Methods(http.MethodGet)
	router.Handle("/jobs", route(a, authz.JobPosters, h.createJob)).Methods(http.MethodPost)
	router.Handle("/jobs/{id}", route(a, authz.JobPosters, h.updateJob)).Methods(http.MethodPut)
	router.Handle("/jobs/{id}", route(a, authz.JobPosters, h.deleteJob)).Methods(http.MethodDelete)
}

// listCategories handles GET /categories
func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.QueryPage(r)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	activeOnly, err := httputil.QueryBool(r, "active_only", true)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	items, total, err := h.catalog.ListCategories(r.Context(), catalog.CategoryFilter{ActiveOnly: activeOnly, Page: page})
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	writeList(w, items, total, page)
}

// getCategory handles GET /categories/{id}
func (h *CatalogHandlers) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	c, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "", c)
}

// categoryInput reads a JSON or multipart category body. A multipart image is
// stored and returned so the caller can discard it on failure.
func (h *CatalogHandlers) categoryInput(r *http.Request) (*catalog.CategoryInput, []upload.Result, error) {
	in := &catalog.CategoryInput{}
	if !httputil.IsMultipart(r) {
		if err := httputil.ParseJSON(r, in); err != nil {
			return nil, nil, err
		}
		return in, nil, nil
	}

	form, err := h.uploader.ParseForm(r)
	if err != nil {
		return nil, nil, err
	}
	defer form.RemoveAll()

	in.Name = formValue(form, "name")
	if _, ok := form.Value["description"]; ok {
		desc := formValue(form, "description")
		in.Description = &desc
	}
	if raw := formValue(form, "is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, nil, apperr.BadRequest("is_active must be a boolean")
		}
		in.IsActive = &active
	}

	files, err := h.uploader.SaveForm(r.Context(), "categories", form, FieldImage)
	if err != nil {
		return nil, nil, err
	}
	if f, ok := upload.First(files, FieldImage); ok {
		in.ImageURL = f.URL
		in.ImagePreviewURL = f.PreviewURL
	}
	return in, files, nil
}

// createCategory handles POST /categories
func (h *CatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	in, files, err := h.categoryInput(r)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), authz.UserFromContext(r.Context()), in)
	if err != nil {
		h.uploader.Remove(r.Context(), files)
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteCreated(w, "category created", c)
}

// updateCategory handles PUT /categories/{id}
func (h *CatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	in, files, err := h.categoryInput(r)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	c, err := h.catalog.UpdateCategory(r.Context(), authz.UserFromContext(r.Context()), id, in)
	if err != nil {
		h.uploader.Remove(r.Context(), files)
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "category updated", c)
}

// deleteCategory handles DELETE /categories/{id}
func (h *CatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "category deleted", nil)
}

// listJobs handles GET /jobs
func (h *CatalogHandlers) listJobs(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.QueryPage(r)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	filter := catalog.JobFilter{
		Mode:           catalog.JobMode(r.URL.Query().Get("mode")),
		EmploymentType: catalog.EmploymentType(r.URL.Query().Get("employment_type")),
		Page:           page,
	}
	if filter.CategoryID, err = httputil.QueryInt64Ptr(r, "category_id"); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	if filter.EmployerID, err = httputil.QueryInt64Ptr(r, "employer_id"); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	if filter.ActiveOnly, err = httputil.QueryBool(r, "active_only", true); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}

	items, total, err := h.catalog.ListJobs(r.Context(), filter)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	writeList(w, items, total, page)
}

// getJob handles GET /jobs/{id}
func (h *CatalogHandlers) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	j, err := h.catalog.GetJob(r.Context(), id)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "", j)
}

// createJob handles POST /jobs
func (h *CatalogHandlers) createJob(w http.ResponseWriter, r *http.Request) {
	var in catalog.JobInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	j, err := h.catalog.CreateJob(r.Context(), authz.UserFromContext(r.Context()), &in)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteCreated(w, "job created", j)
}

// updateJob handles PUT /jobs/{id}
func (h *CatalogHandlers) updateJob(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	var in catalog.JobInput
	if err := httputil.ParseJSON(r, &in); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	j, err := h.catalog.UpdateJob(r.Context(), authz.UserFromContext(r.Context()), id, &in)
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "job updated", j)
}

// deleteJob handles DELETE /jobs/{id}
func (h *CatalogHandlers) deleteJob(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.PathInt64(r, "id")
	if err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	if err := h.catalog.DeleteJob(r.Context(), authz.UserFromContext(r.Context()), id); err != nil {
		httputil.WriteFailure(w, r, err)
		return
	}
	httputil.WriteSuccess(w, "job deleted", nil)
}
