package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Merge concatenates the input PDFs into outputPath, keeping the page order
// of each input and the order of the input list. All-or-nothing: any
// unreadable input fails the whole merge.
func Merge(inputPaths []string, outputPath string) error {
	if len(inputPaths) == 0 {
		return fmt.Errorf("no input files")
	}
	if err := api.MergeCreateFile(inputPaths, outputPath, false, nil); err != nil {
		return fmt.Errorf("pdf merge failed: %w", err)
	}
	return nil
}

// PageCount reports the number of pages in a PDF file.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
