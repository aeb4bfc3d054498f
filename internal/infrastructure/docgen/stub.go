package docgen

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// Stub is an in-process document.Gateway for development and tests.
// Render writes the fields as "key: value" lines; ConvertToPortable wraps
// them in a minimal single-page PDF.
type Stub struct {
	templates *Registry

	mu       sync.Mutex
	renders  int
	converts int
	failWith error
}

// NewStub creates a Stub over the built-in template registry.
func NewStub() *Stub {
	reg, err := LoadTemplates("")
	if err != nil {
		panic(err)
	}
	return &Stub{templates: reg}
}

// FailWith makes every following call return err. Nil restores success.
func (s *Stub) FailWith(err error) {
	s.mu.Lock()
	s.failWith = err
	s.mu.Unlock()
}

// Renders counts Render calls, failed ones included.
func (s *Stub) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

// Converts counts ConvertToPortable calls.
func (s *Stub) Converts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.converts
}

func (s *Stub) Render(_ context.Context, name document.TemplateName, fields map[string]string) (*document.Rendered, error) {
	s.mu.Lock()
	s.renders++
	fail := s.failWith
	s.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	tmpl, err := s.templates.Lookup(name)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", name)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, fields[k])
	}
	return &document.Rendered{Data: []byte(b.String()), Format: tmpl.Format}, nil
}

func (s *Stub) ConvertToPortable(_ context.Context, doc *document.Rendered) ([]byte, error) {
	s.mu.Lock()
	s.converts++
	fail := s.failWith
	s.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	if doc == nil || len(doc.Data) == 0 {
		return nil, shared.NewDomainError("document", "Convert", shared.ErrInvalidArgument, "empty document")
	}
	return minimalPDF(string(doc.Data)), nil
}

// minimalPDF lays out text lines on one page. Offsets in the xref table are
// computed so strict readers accept the file.
func minimalPDF(text string) []byte {
	var content strings.Builder
	content.WriteString("BT /F1 12 Tf 72 760 Td 14 TL\n")
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`)
		fmt.Fprintf(&content, "(%s) Tj T*\n", r.Replace(line))
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var out strings.Builder
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(out.String())
}
