// Package schema validates version payloads against CUE definitions.
//
// A registry maps payload kinds to compiled CUE schemas loaded from a
// directory of .cue files, one file per kind. Kinds without a schema
// pass validation unchecked, so adopting schemas is incremental.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

// ValidationError reports a payload that failed its kind's schema.
type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payload invalid for kind %q: %s", e.Kind, e.Message)
}

// Registry holds compiled schemas keyed by kind.
type Registry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
}

// LoadDir compiles every .cue file in dir into the registry. The file
// stem is the kind: order_status.cue validates payloads of kind
// "order_status".
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading schema directory: %w", err)
	}

	r := &Registry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".cue" {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", entry.Name(), err)
		}
		kind := strings.TrimSuffix(entry.Name(), ".cue")
		if err := r.Register(kind, src); err != nil {
			return nil, fmt.Errorf("schema %s: %w", entry.Name(), err)
		}
	}
	return r, nil
}

// NewRegistry returns an empty registry. Schemas are added with Register.
func NewRegistry() *Registry {
	return &Registry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
}

// Register compiles src and installs it as the schema for kind,
// replacing any previous schema.
func (r *Registry) Register(kind string, src []byte) error {
	v := r.ctx.CompileBytes(src, cue.Filename(kind+".cue"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}
	r.schemas[kind] = v
	return nil
}

// Kinds lists the kinds that have a registered schema, sorted.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate checks payload against the schema registered for kind.
// Kinds without a schema always pass.
func (r *Registry) Validate(kind string, payload []byte) error {
	schema, ok := r.schemas[kind]
	if !ok {
		return nil
	}
	if err := cuejson.Validate(payload, schema); err != nil {
		return &ValidationError{Kind: kind, Message: err.Error()}
	}
	return nil
}
