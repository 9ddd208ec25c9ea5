package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jobportal/pkg/apperr"
	"github.com/platinummonkey/jobportal/pkg/storage"
)

// ParseJSON decodes the request body into dest
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return apperr.BadRequest("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.BadRequest("request body is too large")
		case errors.Is(err, io.EOF):
			return apperr.BadRequest("request body is required")
		default:
			return apperr.Wrap(apperr.KindBadRequest, "invalid JSON body", err)
		}
	}
	return nil
}

// IsMultipart reports whether r carries a multipart form
func IsMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// PathInt64 parses a positive integer path parameter
func PathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return 0, apperr.MissingParameter(key)
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val <= 0 {
		return 0, apperr.Newf(apperr.KindBadRequest, "%s must be a positive integer", key)
	}
	return val, nil
}

// QueryInt parses an integer query parameter, returning defaultVal when absent
func QueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperr.Newf(apperr.KindBadRequest, "%s must be an integer", key)
	}
	return val, nil
}

// QueryInt64Ptr parses an optional int64 query parameter
func QueryInt64Ptr(r *http.Request, key string) (*int64, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return nil, nil
	}
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, apperr.Newf(apperr.KindBadRequest, "%s must be an integer", key)
	}
	return &val, nil
}

// QueryBool parses a boolean query parameter, returning defaultVal when absent
func QueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, apperr.Newf(apperr.KindBadRequest, "%s must be a boolean", key)
	}
	return val, nil
}

// QueryPage reads limit and offset query parameters
func QueryPage(r *http.Request) (storage.Page, error) {
	limit, err := QueryInt(r, "limit", storage.DefaultPageSize)
	if err != nil {
		return storage.Page{}, err
	}
	offset, err := QueryInt(r, "offset", 0)
	if err != nil {
		return storage.Page{}, err
	}
	if limit < 0 || offset < 0 {
		return storage.Page{}, apperr.BadRequest("limit and offset must not be negative")
	}
	return storage.Page{Limit: limit, Offset: offset}.Normalize(), nil
}
