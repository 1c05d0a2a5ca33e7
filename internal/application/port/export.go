package port

import "github.com/garyjia/tutoring-backoffice/internal/domain/entity"

// PayrollExporter renders a run into a downloadable register
type PayrollExporter interface {
	// Export returns the file bytes; teachers resolves teacher ids to display rows
	Export(detail *entity.PayrollRunDetail, teachers map[string]*entity.Teacher) ([]byte, error)
	ContentType() string
	Extension() string
}
