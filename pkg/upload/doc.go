// Package upload stores multipart file fields in blob storage.
//
// Files are read into memory up to a per-file limit, sniffed with mimetype
// against an allow list and written concurrently. A failed batch removes the
// files it already wrote.
package upload
