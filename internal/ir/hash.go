package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainResource   = "squealy/resource/v1"
	DomainSnippet    = "squealy/snippet/v1"
	DomainDatasource = "squealy/datasource/v1"
	DomainCatalog    = "squealy/catalog/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ResourceHash computes the content hash of a compiled resource.
// Source is excluded: moving a file does not change identity.
func ResourceHash(spec ResourceSpec) (string, error) {
	spec.Source = ""
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("ResourceHash: %w", err)
	}
	return hashWithDomain(DomainResource, canonical), nil
}

// SnippetHash computes the content hash of a snippet.
func SnippetHash(spec SnippetSpec) (string, error) {
	spec.Source = ""
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("SnippetHash: %w", err)
	}
	return hashWithDomain(DomainSnippet, canonical), nil
}

// DatasourceHash computes the content hash of a datasource.
// The URL is included; callers must not log the result alongside secrets.
func DatasourceHash(spec DatasourceSpec) (string, error) {
	spec.Source = ""
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("DatasourceHash: %w", err)
	}
	return hashWithDomain(DomainDatasource, canonical), nil
}

// CatalogHash identifies a complete definition set. Used as the catalog
// version reported by /readyz and logged on reload.
func CatalogHash(defs Definitions) (string, error) {
	stripped := Definitions{
		Resources:   make([]ResourceSpec, len(defs.Resources)),
		Snippets:    make([]SnippetSpec, len(defs.Snippets)),
		Datasources: make([]DatasourceSpec, len(defs.Datasources)),
	}
	for i, r := range defs.Resources {
		r.Source = ""
		stripped.Resources[i] = r
	}
	for i, s := range defs.Snippets {
		s.Source = ""
		stripped.Snippets[i] = s
	}
	for i, d := range defs.Datasources {
		d.Source = ""
		stripped.Datasources[i] = d
	}
	canonical, err := MarshalCanonical(stripped)
	if err != nil {
		return "", fmt.Errorf("CatalogHash: %w", err)
	}
	return hashWithDomain(DomainCatalog, canonical), nil
}

// MustResourceHash is like ResourceHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustResourceHash(spec ResourceSpec) string {
	h, err := ResourceHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
