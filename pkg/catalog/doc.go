// Package catalog manages job categories and job postings.
//
// Category names are stored normalized, uppercase with all whitespace removed,
// and are unique. Jobs belong to the employer who posted them; only the owner
// or an administrator may change or delete one.
package catalog
