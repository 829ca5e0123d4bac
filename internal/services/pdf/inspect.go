package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Info summarizes a rendered PDF
type Info struct {
	PageCount int   `json:"page_count"`
	FileSize  int64 `json:"file_size"`
	Encrypted bool  `json:"encrypted"`
}

// Inspect validates content as a PDF and reports its page count
func Inspect(content []byte) (*Info, error) {
	conf := model.NewDefaultConfiguration()

	// Validation walks the page tree, which is what fills PageCount
	ctx, err := api.ReadAndValidate(bytes.NewReader(content), conf)
	if err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}
	if ctx.PageCount == 0 {
		if err := ctx.EnsurePageCount(); err != nil {
			return nil, fmt.Errorf("failed to count PDF pages: %w", err)
		}
	}

	return &Info{
		PageCount: ctx.PageCount,
		FileSize:  int64(len(content)),
		Encrypted: ctx.Encrypt != nil,
	}, nil
}
