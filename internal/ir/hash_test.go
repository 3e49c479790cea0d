package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResource() ResourceSpec {
	return ResourceSpec{
		ID:                     "monthly-sales",
		Path:                   "/monthly-sales",
		Query:                  "SELECT month, sales FROM sales",
		Formatter:              "SimpleFormatter",
		RequiresAuthentication: true,
		Parameters: []ParamSpec{
			{Kind: "String", Name: "month", ValidValues: []string{"jan", "feb"}},
		},
	}
}

func TestResourceHashDeterministic(t *testing.T) {
	a := MustResourceHash(sampleResource())
	b := MustResourceHash(sampleResource())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestResourceHashIgnoresSource(t *testing.T) {
	spec := sampleResource()
	moved := sampleResource()
	moved.Source = "other/dir/sales.yaml"
	assert.Equal(t, MustResourceHash(spec), MustResourceHash(moved))
}

func TestResourceHashChangesWithQuery(t *testing.T) {
	spec := sampleResource()
	changed := sampleResource()
	changed.Query = "SELECT 1"
	assert.NotEqual(t, MustResourceHash(spec), MustResourceHash(changed))
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`{"id":"x"}`)
	assert.NotEqual(t, hashWithDomain(DomainResource, data), hashWithDomain(DomainSnippet, data))
}

func TestCatalogHashDoesNotMutateInput(t *testing.T) {
	defs := Definitions{
		Resources: []ResourceSpec{func() ResourceSpec { r := sampleResource(); r.Source = "a.yaml"; return r }()},
		Snippets:  []SnippetSpec{{ID: "regions", Template: "'north'", Source: "b.yaml"}},
	}
	h, err := CatalogHash(defs)
	require.NoError(t, err)
	assert.NotEmpty(t, h)
	assert.Equal(t, "a.yaml", defs.Resources[0].Source)
	assert.Equal(t, "b.yaml", defs.Snippets[0].Source)
}
