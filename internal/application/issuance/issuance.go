// Package issuance produces contract and certificate documents.
// Both issuers are idempotent on the entity: once a reference is recorded
// they return it without calling the document gateway again.
package issuance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/assessment"
	"github.com/coursehub/coursehub-platform/internal/domain/catalog"
	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/enrollment"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
	"github.com/coursehub/coursehub-platform/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// pipeline renders a template, converts it to PDF and stores the result.
type pipeline struct {
	gateway document.Gateway
	store   document.BlobStore
	clock   timeutil.Clock
	log     *logger.Logger
}

func (p pipeline) produce(ctx context.Context, tmpl document.TemplateName, fields map[string]string, name string) error {
	start := time.Now()

	rendered, err := p.gateway.Render(ctx, tmpl, fields)
	if err != nil {
		return fmt.Errorf("render %s: %w", tmpl, err)
	}

	pdf, err := p.gateway.ConvertToPortable(ctx, rendered)
	if err != nil {
		return fmt.Errorf("convert %s: %w", tmpl, err)
	}

	if err := p.store.Put(ctx, name, pdf, document.ContentTypePDF); err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}

	p.log.Info("document generated",
		logger.Template(string(tmpl)),
		logger.Document(name),
		logger.Int("bytes", len(pdf)),
		logger.Latency(time.Since(start)),
	)
	return nil
}

func newPipeline(gateway document.Gateway, store document.BlobStore, clock timeutil.Clock, log *logger.Logger, component string) pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return pipeline{
		gateway: gateway,
		store:   store,
		clock:   clock.OrSystem(),
		log:     log.With(logger.Component(component)),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// ContractIssuer generates the enrollment contract.
type ContractIssuer struct {
	pipeline
}

// NewContractIssuer creates a ContractIssuer.
func NewContractIssuer(gateway document.Gateway, store document.BlobStore, clock timeutil.Clock, log *logger.Logger) *ContractIssuer {
	return &ContractIssuer{pipeline: newPipeline(gateway, store, clock, log, "contract_issuer")}
}

// ContractFields are the placeholders of the contract template.
func ContractFields(e *enrollment.Enrollment, course *catalog.Course, studentName string, at time.Time) map[string]string {
	return map[string]string{
		"contract_id":  strconv.FormatInt(e.ID, 10),
		"day":          strconv.Itoa(timeutil.DayOfMonth(at)),
		"month":        timeutil.MonthName(at),
		"student_name": studentName,
		"course_price": course.Price.String(),
	}
}

// Issue returns the contract reference of e, generating and attaching it on
// first use. e must already have an ID. Any failure is reported as
// ErrContractGenerationFailed and leaves e untouched.
func (i *ContractIssuer) Issue(ctx context.Context, e *enrollment.Enrollment, course *catalog.Course, studentName string) (string, error) {
	if e.HasContract() {
		return e.ContractFile, nil
	}

	name := document.ContractFileName(e.ID)
	fields := ContractFields(e, course, studentName, i.clock())

	if err := i.produce(ctx, document.TemplateContract, fields, name); err != nil {
		i.log.Error("contract generation failed", logger.EnrollmentID(e.ID), logger.Err(err))
		return "", shared.WrapError("enrollment", "IssueContract", shared.ErrContractGenerationFailed,
			"failed to generate contract", err)
	}

	if err := e.AttachContract(name); err != nil {
		return "", err
	}
	return name, nil
}

// Discard removes a contract whose enrollment was never committed. Errors are
// logged only.
func (i *ContractIssuer) Discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := i.store.Delete(ctx, ref); err != nil {
		i.log.Warn("orphan contract not removed", logger.Document(ref), logger.Err(err))
		return
	}
	i.log.Info("orphan contract removed", logger.Document(ref))
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE
// ══════════════════════════════════════════════════════════════════════════════

// Certificate describes an issued certificate.
type Certificate struct {
	File       string
	IssuedOn   time.Time
	ValidUntil time.Time
	// Generated is false when the stored certificate was reused.
	Generated bool
}

// CertificateIssuer generates completion certificates for finished tests.
type CertificateIssuer struct {
	pipeline
}

// NewCertificateIssuer creates a CertificateIssuer.
func NewCertificateIssuer(gateway document.Gateway, store document.BlobStore, clock timeutil.Clock, log *logger.Logger) *CertificateIssuer {
	return &CertificateIssuer{pipeline: newPipeline(gateway, store, clock, log, "certificate_issuer")}
}

// CertificateFields are the placeholders of the certificate template.
func CertificateFields(studentName string, from, to time.Time) map[string]string {
	return map[string]string{
		"student_name": studentName,
		"date":         timeutil.FormatISODate(from),
		"to_date":      timeutil.FormatISODate(to),
	}
}

// Issue returns the certificate of t, generating and attaching it on first use.
// The validity window starts at issuance time.
func (i *CertificateIssuer) Issue(ctx context.Context, t *assessment.TestEnrollment, studentName string) (*Certificate, error) {
	if !t.Finished {
		return nil, shared.WrapError("assessment", "IssueCertificate", shared.ErrInvalidArgument,
			"certificate cannot be generated before the test is completed", shared.ErrInvalidTestTransition)
	}

	if t.HasCertificate() {
		return &Certificate{File: t.CertificateFile}, nil
	}

	from, to := timeutil.ValidityWindow(i.clock())
	name := document.CertificateFileName(t.ID)
	if err := i.produce(ctx, document.TemplateCertificate, CertificateFields(studentName, from, to), name); err != nil {
		i.log.Error("certificate generation failed", logger.TestID(t.ID), logger.Err(err))
		return nil, shared.WrapError("assessment", "IssueCertificate", shared.ErrCertificateGenerationFailed,
			"failed to generate certificate", err)
	}

	if err := t.AttachCertificate(name); err != nil {
		return nil, err
	}
	return &Certificate{File: name, IssuedOn: from, ValidUntil: to, Generated: true}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOWNLOADS
// ══════════════════════════════════════════════════════════════════════════════

// Archive serves stored documents back to clients.
type Archive struct {
	store document.BlobStore
}

// NewArchive creates an Archive over store.
func NewArchive(store document.BlobStore) *Archive {
	return &Archive{store: store}
}

// Open returns the stored bytes of a document reference.
func (a *Archive) Open(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, shared.ErrBlobNotFound
	}
	data, err := a.store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return data, nil
}

// URL returns the client-facing address of ref, or "" for an empty ref.
func (a *Archive) URL(ref string) string {
	if ref == "" {
		return ""
	}
	return a.store.URL(ref)
}
