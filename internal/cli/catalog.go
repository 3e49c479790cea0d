package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imgaoyue/squealy/internal/compiler"
	"github.com/imgaoyue/squealy/internal/config"
	"github.com/imgaoyue/squealy/internal/ir"
	"github.com/imgaoyue/squealy/internal/resource"
	"github.com/imgaoyue/squealy/internal/store"
)

// DefinitionsError reports definitions that failed to load or validate.
type DefinitionsError struct {
	Load       []error
	Validation []compiler.ValidationError
}

func (e *DefinitionsError) Error() string {
	var msgs []string
	for _, err := range e.Load {
		msgs = append(msgs, err.Error())
	}
	for _, v := range e.Validation {
		msgs = append(msgs, v.Error())
	}
	return fmt.Sprintf("invalid definitions: %s", strings.Join(msgs, "; "))
}

// LoadValidated loads the definitions in dir, merges the datasources
// declared in cfg (which may be nil) and validates the result.
func LoadValidated(dir string, cfg *config.Config, mode LoadMode) (*ir.Definitions, error) {
	result, loadErrs := LoadDefinitions(dir, mode)
	if len(loadErrs) > 0 {
		return nil, &DefinitionsError{Load: loadErrs}
	}

	defs := result.Definitions
	if cfg != nil {
		if err := cfg.MergeDatasources(&defs); err != nil {
			return nil, &DefinitionsError{Load: []error{&LoadError{Code: ErrCodeConfig, Message: err.Error()}}}
		}
		compiler.SortDefinitions(&defs)
	}

	if verrs := ValidateDefinitions(&defs); len(verrs) > 0 {
		return nil, &DefinitionsError{Validation: verrs}
	}
	return &defs, nil
}

// BuildCatalog opens the datasources in defs and builds a catalog over them.
// The engines are closed again if the catalog cannot be built.
func BuildCatalog(ctx context.Context, defs *ir.Definitions, opts ...resource.Option) (*resource.Catalog, error) {
	if len(defs.Datasources) == 0 {
		return nil, &LoadError{Code: ErrCodeEngine, Message: "no datasources configured"}
	}
	engines, err := store.OpenAll(ctx, defs.Datasources)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeEngine, Message: err.Error()}
	}
	c, err := resource.NewCatalog(*defs, engines, opts...)
	if err != nil {
		engines.Close()
		return nil, err
	}
	return c, nil
}

// OpenCatalog is LoadValidated followed by BuildCatalog.
func OpenCatalog(ctx context.Context, dir string, cfg *config.Config, opts ...resource.Option) (*resource.Catalog, error) {
	defs, err := LoadValidated(dir, cfg, LoadModeCollectAll)
	if err != nil {
		return nil, err
	}
	return BuildCatalog(ctx, defs, opts...)
}

// errorCode picks the CLI error code for err.
func errorCode(err error) string {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	var de *DefinitionsError
	if errors.As(err, &de) {
		if len(de.Load) > 0 {
			return errorCode(de.Load[0])
		}
		if len(de.Validation) > 0 {
			return de.Validation[0].Code
		}
	}
	if errors.Is(err, resource.ErrNotFound) {
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}
