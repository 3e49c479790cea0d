// Package httpapi serves a resource catalog over HTTP.
//
// Every resource is mounted at its path for GET and POST, and at
// /resources/{id}. The catalog is read from a CatalogSource on every
// request, so a reload swaps the whole set of endpoints at once.
package httpapi
