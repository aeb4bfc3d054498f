package docgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/retry"
)

type fakeConverter struct {
	calls int
	err   error
}

func (f *fakeConverter) Convert(_ context.Context, data []byte, from, to document.Format) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("%PDF "+string(from)+"->"+string(to)+" "), data...), nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, conv document.Converter) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	reg, err := LoadTemplates("")
	require.NoError(t, err)

	c := NewClient(DefaultClientConfig(srv.URL), reg, conv, nil)
	c.retrier = retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0))
	return c
}

var contractFields = map[string]string{
	"contract_id": "1", "day": "18", "month": "October", "student_name": "alice", "course_price": "199.90",
}

func TestParseTemplates(t *testing.T) {
	reg, err := LoadTemplates("")
	require.NoError(t, err)
	assert.Equal(t, []document.TemplateName{document.TemplateCertificate, document.TemplateContract}, reg.Names())

	tmpl, err := reg.Lookup(document.TemplateCertificate)
	require.NoError(t, err)
	assert.Equal(t, document.FormatPPTX, tmpl.Format)
	assert.Equal(t, []string{"to_date"}, tmpl.Missing(map[string]string{"student_name": "a", "date": "b"}))

	_, err = reg.Lookup("invoice")
	assert.ErrorIs(t, err, shared.ErrTemplateMissing)
	assert.True(t, shared.IsExternalService(err))

	_, err = ParseTemplates([]byte("templates:\n  x:\n    ref: a\n    format: rtf\n"))
	assert.Error(t, err)
}

func TestClient_RenderAndConvert(t *testing.T) {
	var got renderRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/render", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("DOCX"))
	}, &fakeConverter{})

	doc, err := c.Render(context.Background(), document.TemplateContract, contractFields)
	require.NoError(t, err)
	assert.Equal(t, document.FormatDOCX, doc.Format)
	assert.Equal(t, []byte("DOCX"), doc.Data)
	assert.Equal(t, "templates/contract.docx", got.Template)
	assert.Equal(t, "alice", got.Fields["student_name"])

	pdf, err := c.ConvertToPortable(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF docx->pdf")))
}

func TestClient_RenderRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("DOCX"))
	}, &fakeConverter{})

	_, err := c.Render(context.Background(), document.TemplateContract, contractFields)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_RenderMissingTemplateIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"NOT_FOUND","message":"no such template"}`)
	}, &fakeConverter{})

	_, err := c.Render(context.Background(), document.TemplateContract, contractFields)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrTemplateMissing)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "closed", c.BreakerState().String())
}

func TestClient_RenderRejectsMissingFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must not be sent")
	}, &fakeConverter{})

	_, err := c.Render(context.Background(), document.TemplateCertificate, map[string]string{"student_name": "a"})
	assert.True(t, shared.IsInvalidArgument(err))
}

func TestClient_ConvertFailure(t *testing.T) {
	c := newTestClient(t, func(http.ResponseWriter, *http.Request) {}, &fakeConverter{err: errors.New("soffice crashed")})

	_, err := c.ConvertToPortable(context.Background(), &document.Rendered{Data: []byte("x"), Format: document.FormatPPTX})
	assert.ErrorIs(t, err, shared.ErrConversionFailed)

	pdf, err := c.ConvertToPortable(context.Background(), &document.Rendered{Data: []byte("%PDF"), Format: document.FormatPDF})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), pdf)
}

func TestHTTPConverter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/convert", r.URL.Path)
		assert.Equal(t, "pptx", r.URL.Query().Get("from"))
		assert.Equal(t, "pdf", r.URL.Query().Get("to"))
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(append([]byte("%PDF-"), body...))
	}))
	defer srv.Close()

	conv := NewHTTPConverter(srv.URL, time.Second)
	out, err := conv.Convert(context.Background(), []byte("slides"), document.FormatPPTX, document.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-slides"), out)
}

func TestExecConverter_MissingBinary(t *testing.T) {
	conv := NewExecConverter("coursehub-no-such-binary", time.Second, nil)
	_, err := conv.Convert(context.Background(), []byte("x"), document.FormatDOCX, document.FormatPDF)
	assert.ErrorIs(t, err, shared.ErrConversionFailed)
}

func TestStub(t *testing.T) {
	s := NewStub()
	doc, err := s.Render(context.Background(), document.TemplateCertificate, map[string]string{"student_name": "bob"})
	require.NoError(t, err)
	assert.Contains(t, string(doc.Data), "student_name: bob")

	pdf, err := s.ConvertToPortable(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-1.4")))
	assert.True(t, bytes.HasSuffix(pdf, []byte("%%EOF\n")))
	assert.Equal(t, 1, s.Renders())
	assert.Equal(t, 1, s.Converts())

	s.FailWith(shared.ErrTemplateMissing)
	_, err = s.Render(context.Background(), document.TemplateContract, nil)
	assert.ErrorIs(t, err, shared.ErrTemplateMissing)
}
