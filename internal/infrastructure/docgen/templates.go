// Package docgen talks to the external document service: template rendering
// and conversion of office formats to PDF.
package docgen

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

// Template binds a logical name to a template object of the render service.
type Template struct {
	Name   document.TemplateName
	Ref    string
	Format document.Format
	// Fields lists the placeholders the template expects.
	Fields []string
}

type yamlRegistry struct {
	Version   int                     `yaml:"version"`
	Templates map[string]yamlTemplate `yaml:"templates"`
}

type yamlTemplate struct {
	Ref    string   `yaml:"ref"`
	Format string   `yaml:"format"`
	Fields []string `yaml:"fields"`
}

// Registry resolves logical template names.
type Registry struct {
	templates map[document.TemplateName]Template
}

// ParseTemplates reads a registry from YAML.
func ParseTemplates(data []byte) (*Registry, error) {
	var raw yamlRegistry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("docgen: parse templates: %w", err)
	}
	reg := &Registry{templates: make(map[document.TemplateName]Template, len(raw.Templates))}
	for name, t := range raw.Templates {
		if t.Ref == "" {
			return nil, fmt.Errorf("docgen: template %q has no ref", name)
		}
		format := document.Format(t.Format)
		switch format {
		case document.FormatDOCX, document.FormatPPTX, document.FormatODT, document.FormatPDF:
		default:
			return nil, fmt.Errorf("docgen: template %q has unsupported format %q", name, t.Format)
		}
		reg.templates[document.TemplateName(name)] = Template{
			Name:   document.TemplateName(name),
			Ref:    t.Ref,
			Format: format,
			Fields: t.Fields,
		}
	}
	return reg, nil
}

// LoadTemplates reads a registry file, or the built-in registry when path is empty.
func LoadTemplates(path string) (*Registry, error) {
	if path == "" {
		return ParseTemplates(defaultTemplatesYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docgen: read templates %s: %w", path, err)
	}
	return ParseTemplates(data)
}

// Lookup returns the template or ErrTemplateMissing.
func (r *Registry) Lookup(name document.TemplateName) (Template, error) {
	t, ok := r.templates[name]
	if !ok {
		return Template{}, shared.WrapError("document", "Lookup", shared.ErrTemplateMissing,
			fmt.Sprintf("template %q is not registered", name), nil)
	}
	return t, nil
}

// Names lists registered templates in order.
func (r *Registry) Names() []document.TemplateName {
	out := make([]document.TemplateName, 0, len(r.templates))
	for n := range r.templates {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Missing returns the expected placeholders absent from fields.
func (t Template) Missing(fields map[string]string) []string {
	var out []string
	for _, f := range t.Fields {
		if _, ok := fields[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}
