// Package api is the jobportal HTTP interface.
//
// Routes live under /api/v1 and answer with a uniform envelope:
//
//	{"status":"success","message":"...","data":{...}}
//	{"status":"failure","error":{"kind":"NOT_FOUND","message":"...","request_id":"..."}}
//
// Protected routes read the session token from X-Auth-Token or an
// Authorization bearer header and are admitted by pkg/authz. Registration of
// employees and employers, category images and /uploads take
// multipart/form-data; everything else is JSON.
package api
