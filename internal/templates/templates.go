// Package templates holds the fixed table of content templates and the
// placeholder substitution that turns one into a prompt.
package templates

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Placeholder tokens recognised in a template string.
const (
	PlaceholderTopic    = "{topic}"
	PlaceholderGrade    = "{grade}"
	PlaceholderCount    = "{count}"
	PlaceholderElements = "{elements}"
)

var placeholders = []string{PlaceholderTopic, PlaceholderGrade, PlaceholderCount, PlaceholderElements}

// Grades lists the accepted grade values in display order.
var Grades = []string{"1st", "2nd", "3rd", "4th", "5th"}

// ValidGrade reports whether g is one of Grades.
func ValidGrade(g string) bool {
	for _, v := range Grades {
		if v == g {
			return true
		}
	}
	return false
}

//go:embed templates.yaml
var defaultYAML []byte

//go:embed schema.json
var schemaJSON []byte

// Definition is a named prompt skeleton.
type Definition struct {
	Key      string `yaml:"key" json:"key"`
	Name     string `yaml:"name" json:"name"`
	Template string `yaml:"template" json:"template"`

	// Elements is the value used for {elements} when the caller gives none.
	Elements string `yaml:"elements,omitempty" json:"elements,omitempty"`
}

// Summary is the (key, name) pair shown in a template selector.
type Summary struct {
	Key  string
	Name string
}

// Values are the substitutions for a single prompt.
type Values struct {
	Topic    string
	Grade    string
	Count    int
	Elements string
}

// Build substitutes the first occurrence of each placeholder, in the order
// topic, grade, count, elements. Repeated placeholders after the first are
// left as written. Substitution runs over the text built so far, so a value
// that itself contains a placeholder can take that placeholder's slot: a
// topic of "{grade}" receives the grade and the template's own {grade}
// stays literal.
func (d Definition) Build(v Values) string {
	elements := v.Elements
	if elements == "" {
		elements = d.Elements
	}
	out := d.Template
	out = strings.Replace(out, PlaceholderTopic, v.Topic, 1)
	out = strings.Replace(out, PlaceholderGrade, v.Grade, 1)
	out = strings.Replace(out, PlaceholderCount, strconv.Itoa(v.Count), 1)
	out = strings.Replace(out, PlaceholderElements, elements, 1)
	return out
}

// NotFoundError is returned by Get for a key that is not registered.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template %q not found", e.Key)
}

// Registry is an immutable, insertion-ordered table of definitions.
type Registry struct {
	order []string
	byKey map[string]Definition
}

// Default returns the embedded registry. It panics if the embedded table
// is invalid, which the package tests rule out.
func Default() *Registry {
	r, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded templates: %v", err))
	}
	return r
}

// Load returns the registry from path, or the embedded default when path
// is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

type document struct {
	Templates []Definition `yaml:"templates"`
}

// Parse decodes and validates a YAML template table.
func Parse(data []byte) (*Registry, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}

	r := &Registry{byKey: make(map[string]Definition, len(doc.Templates))}
	for _, d := range doc.Templates {
		if _, dup := r.byKey[d.Key]; dup {
			return nil, fmt.Errorf("duplicate template key %q", d.Key)
		}
		if !HasPlaceholder(d.Template) {
			return nil, fmt.Errorf("template %q has no placeholder", d.Key)
		}
		d.Template = strings.TrimSpace(d.Template)
		r.byKey[d.Key] = d
		r.order = append(r.order, d.Key)
	}
	return r, nil
}

func validateSchema(raw any) error {
	// The validator wants plain JSON values, so round-trip through JSON.
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("templates are not JSON-representable: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("re-read templates: %w", err)
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("parse templates schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("templates.schema.json", schemaDoc); err != nil {
		return fmt.Errorf("add templates schema: %w", err)
	}
	sch, err := c.Compile("templates.schema.json")
	if err != nil {
		return fmt.Errorf("compile templates schema: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid templates: %w", err)
	}
	return nil
}

// HasPlaceholder reports whether s contains at least one recognised placeholder.
func HasPlaceholder(s string) bool {
	for _, p := range placeholders {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// List returns (key, name) pairs in registration order.
func (r *Registry) List() []Summary {
	out := make([]Summary, len(r.order))
	for i, k := range r.order {
		out[i] = Summary{Key: k, Name: r.byKey[k].Name}
	}
	return out
}

// Get returns the definition for key or a *NotFoundError.
func (r *Registry) Get(key string) (Definition, error) {
	d, ok := r.byKey[key]
	if !ok {
		return Definition{}, &NotFoundError{Key: key}
	}
	return d, nil
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return len(r.order)
}
