// Package validation checks and normalizes request input before any mutation.
//
// Request structs declare their rules with `validate` tags and are checked with
// go-playground/validator. The first violation is reported as an *apperr.Error:
// a missing required field becomes PARAMETER_MISSING and every other rule
// violation becomes BAD_REQUEST.
//
//	type issueRequest struct {
//		Email  string `json:"email" validate:"required,email,min=5,max=254"`
//		Action string `json:"action" validate:"required,oneof=LOGIN REGISTER REGISTER_OR_LOGIN RESET_PASSWORD"`
//	}
//	if err := validation.Default().Struct(&req); err != nil {
//		httputil.WriteFailure(w, err)
//		return
//	}
//
// Normalizers canonicalize emails, codes and category names.
package validation
