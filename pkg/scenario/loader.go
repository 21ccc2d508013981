package scenario

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/wsmock/pkg/mockserver"
)

// Loader errors.
var (
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrNoScenarios     = errors.New("no scenario files matched")
)

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func scenarioSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("scenario.json", bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add scenario schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("scenario.json")
	})
	return compiledSchema, schemaErr
}

// LoadFile reads and validates one scenario file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Path = path
	return sc, nil
}

// LoadGlob loads every file matching pattern, in lexical order. Patterns
// containing ** match recursively.
func LoadGlob(pattern string) ([]*Scenario, error) {
	matches, err := expandGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding glob pattern: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoScenarios, pattern)
	}
	sort.Strings(matches)

	out := make([]*Scenario, 0, len(matches))
	for _, match := range matches {
		sc, err := LoadFile(match)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

// expandGlob uses doublestar for ** and filepath.Glob otherwise.
func expandGlob(pattern string) ([]string, error) {
	if strings.Contains(pattern, "**") {
		return doublestar.FilepathGlob(pattern)
	}
	return filepath.Glob(pattern)
}

// Parse validates YAML scenario data against the schema and decodes it.
func Parse(data []byte) (*Scenario, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidScenario)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func validateSchema(doc any) error {
	schema, err := scenarioSchema()
	if err != nil {
		return err
	}

	// Round-trip through JSON so the validator sees JSON types.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var instance any
	if err := dec.Decode(&instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	if err := schema.Validate(instance); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("%w: %s", ErrInvalidScenario, strings.Join(schemaMessages(verr, nil), "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	return nil
}

// schemaMessages flattens the leaf causes of a validation error.
func schemaMessages(err *jsonschema.ValidationError, out []string) []string {
	if len(err.Causes) == 0 {
		loc := strings.ReplaceAll(strings.TrimPrefix(err.InstanceLocation, "/"), "/", ".")
		if loc == "" {
			loc = "(root)"
		}
		return append(out, loc+": "+err.Message)
	}
	for _, cause := range err.Causes {
		out = schemaMessages(cause, out)
	}
	return out
}

// Validate checks what the schema cannot: matchers compile and assert
// expressions parse.
func (sc *Scenario) Validate() error {
	var errs []error
	if sc.MockServer != nil {
		if _, err := mockserver.CompileMatchers(sc.MockServer.Matchers); err != nil {
			errs = append(errs, fmt.Errorf("mockServer: %w", err))
		}
	}
	for i, step := range sc.Steps {
		if step.Action != ActionAssert {
			continue
		}
		if _, err := compileAssertion(step.Expect); err != nil {
			errs = append(errs, fmt.Errorf("steps.%d: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidScenario, errors.Join(errs...))
	}
	return nil
}
