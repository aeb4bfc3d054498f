package query

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/domain/document"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOWNLOAD DOCUMENT QUERIES
// Отдают байты договора и сертификата владельцу.
// ══════════════════════════════════════════════════════════════════════════════

// DocumentDTO - содержимое сохранённого документа.
type DocumentDTO struct {
	Name        string
	ContentType string
	Data        []byte
}

func (d Deps) open(ctx context.Context, ref string) (*DocumentDTO, error) {
	if d.Archive == nil {
		return nil, shared.ErrBlobNotFound
	}
	data, err := d.Archive.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &DocumentDTO{Name: ref, ContentType: document.ContentTypePDF, Data: data}, nil
}

// DownloadCertificateHandler отдаёт сертификат завершённого теста.
// Сертификат выпускается так же, как при получении результата.
type DownloadCertificateHandler struct {
	deps    Deps
	results *GetTestResultHandler
}

// NewDownloadCertificateHandler создаёт обработчик.
func NewDownloadCertificateHandler(deps Deps, results *GetTestResultHandler) *DownloadCertificateHandler {
	return &DownloadCertificateHandler{deps: deps.withDefaults("download_certificate"), results: results}
}

// Handle выполняет запрос. До завершения теста - ErrCertificateNotReady.
func (h *DownloadCertificateHandler) Handle(ctx context.Context, q GetTestResultQuery) (*DocumentDTO, error) {
	result, err := h.results.Handle(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("download_certificate: %w", err)
	}
	if !result.Finished || result.CertificateFile == "" {
		return nil, fmt.Errorf("download_certificate: %w", shared.ErrCertificateNotReady)
	}

	doc, err := h.deps.open(ctx, result.CertificateFile)
	if err != nil {
		return nil, fmt.Errorf("download_certificate: %w", err)
	}
	return doc, nil
}

// DownloadContractQuery - параметры запроса договора.
type DownloadContractQuery struct {
	Principal    shared.Principal
	EnrollmentID int64
}

// DownloadContractHandler отдаёт договор записи на курс.
type DownloadContractHandler struct {
	deps Deps
}

// NewDownloadContractHandler создаёт обработчик.
func NewDownloadContractHandler(deps Deps) *DownloadContractHandler {
	return &DownloadContractHandler{deps: deps.withDefaults("download_contract")}
}

// Handle выполняет запрос. Чужая запись - ErrEnrollmentNotFound.
func (h *DownloadContractHandler) Handle(ctx context.Context, q DownloadContractQuery) (*DocumentDTO, error) {
	if err := q.Principal.Validate(); err != nil {
		return nil, fmt.Errorf("download_contract: validation failed: %w", err)
	}
	if q.EnrollmentID <= 0 {
		return nil, fmt.Errorf("download_contract: validation failed: %w",
			errInvalid("DownloadContract", "enrollment id is required"))
	}

	e, err := h.deps.UoW.Repositories().Enrollments.GetForUser(ctx, q.EnrollmentID, q.Principal.ID)
	if err != nil {
		return nil, fmt.Errorf("download_contract: %w", err)
	}

	doc, err := h.deps.open(ctx, e.ContractFile)
	if err != nil {
		return nil, fmt.Errorf("download_contract: %w", err)
	}
	return doc, nil
}
