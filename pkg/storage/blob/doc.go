// Package blob stores uploaded files.
//
// S3Store writes to any S3-compatible bucket and returns presigned GET URLs
// as previews. LocalStore writes under a directory and is meant for
// development, where the API serves the directory itself.
package blob
