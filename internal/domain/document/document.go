// Package document описывает внешние зависимости генерации документов:
// шлюз рендеринга шаблонов, конвертер форматов и хранилище файлов.
// Рабочий процесс видит их только как синхронные вызовы с успехом или ошибкой.
package document

import (
	"context"
	"fmt"
)

// TemplateName - логическое имя шаблона.
type TemplateName string

const (
	TemplateContract    TemplateName = "contract"
	TemplateCertificate TemplateName = "certificate"
)

// Format - формат документа.
type Format string

const (
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
	FormatODT  Format = "odt"
	FormatPDF  Format = "pdf"
)

// ContentTypePDF - MIME-тип итоговых документов.
const ContentTypePDF = "application/pdf"

// Rendered - промежуточный документ после подстановки полей в шаблон.
type Rendered struct {
	Data   []byte
	Format Format
}

// Gateway - шлюз генерации документов: render, затем convertToPortable.
type Gateway interface {
	// Render подставляет поля в шаблон. Отсутствующий шаблон - ErrTemplateMissing.
	Render(ctx context.Context, template TemplateName, fields map[string]string) (*Rendered, error)

	// ConvertToPortable переводит промежуточный документ в PDF.
	ConvertToPortable(ctx context.Context, doc *Rendered) ([]byte, error)
}

// Converter переводит документ из одного формата в другой.
type Converter interface {
	Convert(ctx context.Context, data []byte, from, to Format) ([]byte, error)
}

// BlobStore хранит документы как непрозрачные байты по имени файла.
type BlobStore interface {
	// Put сохраняет документ (перезаписывая существующий).
	Put(ctx context.Context, name string, data []byte, contentType string) error

	// Get возвращает документ или ErrBlobNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Exists проверяет наличие документа.
	Exists(ctx context.Context, name string) (bool, error)

	// Delete удаляет документ. Отсутствующий документ - не ошибка.
	Delete(ctx context.Context, name string) error

	// URL возвращает адрес, по которому документ доступен клиенту,
	// или пустую строку, если документ отдаётся только через API.
	URL(name string) string
}

// ContractFileName - имя файла договора записи на курс.
func ContractFileName(enrollmentID int64) string {
	return fmt.Sprintf("contract_%d.pdf", enrollmentID)
}

// CertificateFileName - имя файла сертификата попытки теста.
func CertificateFileName(testEnrollmentID int64) string {
	return fmt.Sprintf("certificate_%d.pdf", testEnrollmentID)
}
