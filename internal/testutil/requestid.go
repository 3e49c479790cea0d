package testutil

// FixedRequestIDGenerator generates the same request id every time.
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with the same FixedRequestIDGenerator produces
// byte-identical responses and logs.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// always returns the same id.
//
// Thread-safety: FixedRequestIDGenerator is stateless and safe for concurrent use.
type FixedRequestIDGenerator struct {
	id string
}

// NewFixedRequestIDGenerator creates a new fixed request id generator.
//
// The id is typically set in the scenario YAML:
//
//	request_id: "test-request-0001"
//
// If id is empty, Generate() returns "test-request-default".
func NewFixedRequestIDGenerator(id string) *FixedRequestIDGenerator {
	if id == "" {
		id = "test-request-default"
	}
	return &FixedRequestIDGenerator{id: id}
}

// Generate returns the fixed request id.
//
// Implements engine.IDGenerator interface.
func (g *FixedRequestIDGenerator) Generate() string {
	return g.id
}
