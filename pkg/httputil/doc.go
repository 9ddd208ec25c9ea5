// Package httputil holds the response envelopes, request parsing helpers and
// HTTP middleware shared by the API.
//
// Every response uses one of two bodies:
//
//	{"status":"success","message":"...","data":{...}}
//	{"status":"failure","error":{"kind":"NOT_FOUND","message":"..."}}
//
// Handlers return *apperr.Error values and call WriteFailure, which maps the
// kind to a status code:
//
//	job, err := h.catalog.GetJob(r.Context(), id)
//	if err != nil {
//		httputil.WriteFailure(w, r, err)
//		return
//	}
//	httputil.WriteSuccess(w, "job fetched", job)
package httputil
