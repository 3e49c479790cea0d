package store

import (
	"context"
	"fmt"

	"github.com/imgaoyue/squealy/internal/engine"
	"github.com/imgaoyue/squealy/internal/ir"
)

// OpenAll opens every datasource and registers it under its id. On failure
// the stores opened so far are closed.
func OpenAll(ctx context.Context, specs []ir.DatasourceSpec) (*engine.Registry, error) {
	reg := engine.NewRegistry()
	for _, spec := range specs {
		s, err := Open(ctx, spec)
		if err != nil {
			reg.Close()
			return nil, err
		}
		if err := reg.Register(spec.ID, s); err != nil {
			s.Close()
			reg.Close()
			return nil, fmt.Errorf("datasource %q: %w", spec.ID, err)
		}
	}
	return reg, nil
}
