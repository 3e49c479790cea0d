package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/imgaoyue/squealy/internal/compiler"
	"github.com/imgaoyue/squealy/internal/ir"
)

// LoadMode controls how errors are handled during definition loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the definitions loaded from a directory.
type LoadResult struct {
	Definitions ir.Definitions
	Files       []string // definition files, relative to the directory
	FileCount   int
}

// LoadError represents an error that occurred during definition loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDefinitions compiles every YAML and CUE definition under dir.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
// A nil result means the directory itself could not be used.
func LoadDefinitions(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("resources directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing resources directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindDefinitionFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no definition files found in %s", dir)}}
	}

	result := &LoadResult{FileCount: len(files)}
	var errs []error
	fail := func(err error) bool {
		errs = append(errs, err)
		return mode == LoadModeFailFast
	}

	ctx := cuecontext.New()
	hasCUE := false
	for _, path := range files {
		rel, _ := filepath.Rel(dir, path)
		result.Files = append(result.Files, rel)

		if filepath.Ext(path) == ".cue" {
			hasCUE = true
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if fail(&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", rel, err)}) {
				return result, errs
			}
			continue
		}
		docs, err := compiler.ParseYAML(ctx, rel, data)
		if err != nil {
			if fail(convertCompileError(err, rel)) {
				return result, errs
			}
			continue
		}
		for _, doc := range docs {
			if err := compiler.CompileDocument(doc, &result.Definitions); err != nil {
				if fail(convertCompileError(err, fmt.Sprintf("%s:%d", rel, doc.Line))) {
					return result, errs
				}
			}
		}
	}

	if hasCUE {
		defs, err := loadCUE(ctx, dir)
		if err != nil {
			if fail(err) {
				return result, errs
			}
		} else {
			result.Definitions.Resources = append(result.Definitions.Resources, defs.Resources...)
			result.Definitions.Snippets = append(result.Definitions.Snippets, defs.Snippets...)
			result.Definitions.Datasources = append(result.Definitions.Datasources, defs.Datasources...)
		}
	}

	compiler.SortDefinitions(&result.Definitions)

	if len(result.Definitions.Resources) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no resources found in definitions"})
	}

	return result, errs
}

// loadCUE builds the CUE package in dir and extracts its definitions.
func loadCUE(ctx *cue.Context, dir string) (*ir.Definitions, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	defs, err := compiler.CompileDefinitions(value)
	if err != nil {
		return nil, convertCompileError(err, "cue")
	}
	for i := range defs.Resources {
		defs.Resources[i].Source = cueSource(dir, value, ir.KindResource, defs.Resources[i].ID)
	}
	for i := range defs.Snippets {
		defs.Snippets[i].Source = cueSource(dir, value, ir.KindSnippet, defs.Snippets[i].ID)
	}
	for i := range defs.Datasources {
		defs.Datasources[i].Source = cueSource(dir, value, ir.KindDatasource, defs.Datasources[i].ID)
	}
	return defs, nil
}

// cueSource names the file that declares kind.id, relative to dir.
func cueSource(dir string, root cue.Value, kind, id string) string {
	v := root.LookupPath(cue.MakePath(cue.Str(kind), cue.Str(id)))
	pos := v.Pos()
	if !pos.IsValid() || pos.Filename() == "" {
		return "cue"
	}
	if rel, err := filepath.Rel(dir, pos.Filename()); err == nil {
		return rel
	}
	return pos.Filename()
}

// FindDefinitionFiles walks dir and returns every YAML definition file plus
// the .cue files of the directory root, sorted. Hidden entries are skipped.
func FindDefinitionFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(name) {
		case ".yml", ".yaml":
			files = append(files, path)
		case ".cue":
			if filepath.Dir(path) == filepath.Clean(dir) {
				files = append(files, path)
			}
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		msg := compileErr.Message
		if !compileErr.Pos.IsValid() && compileErr.Field != "yaml" && compileErr.Field != "kind" {
			msg = fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message)
		}
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: msg,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric         = "E001" // Generic/unknown error
	ErrCodeScanError       = "E002" // Directory scan error
	ErrCodeNoFiles         = "E003" // No definition files found
	ErrCodeInvalidDocument = "E004" // Malformed YAML or unknown object kind
	ErrCodeNotFound        = "E005" // Path not found
	ErrCodeBuildFailed     = "E006" // CUE build failed
	ErrCodeWriteFailed     = "E007" // File write error
	ErrCodeLoadFailed      = "E008" // File read or CUE load failed
	ErrCodeConfig          = "E009" // Application config error
	ErrCodeEngine          = "E010" // Datasource could not be opened
	ErrCodeTestFailed      = "E011" // One or more scenarios failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "yaml", field == "kind":
		return ErrCodeInvalidDocument
	case field == "cue":
		return ErrCodeBuildFailed
	case field == "id":
		return compiler.ErrIDRequired
	case field == "query":
		return compiler.ErrQueryRequired
	case field == "template":
		return compiler.ErrTemplateRequired
	case field == "driver":
		return compiler.ErrInvalidDriver
	case strings.HasPrefix(field, "authorization"):
		return compiler.ErrInvalidAuthzRule
	case strings.HasPrefix(field, "parameters"), field == "valid_values", field == "value":
		return compiler.ErrInvalidParameter
	default:
		return ErrCodeGeneric
	}
}

// ValidateDefinitions runs schema and cross-reference validation.
func ValidateDefinitions(defs *ir.Definitions) []compiler.ValidationError {
	return compiler.Validate(defs)
}
