package extract

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docqa/internal/domain"
)

// ValidatePDF checks that path holds a readable PDF and returns its page count.
// Validation is relaxed so that slightly malformed files are still accepted.
func ValidatePDF(path string) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUnsupportedDocument, err)
	}
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUnsupportedDocument, err)
	}
	return count, nil
}
