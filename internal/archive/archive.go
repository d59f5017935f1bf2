package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Entry names a file going into or coming out of a zip archive.
type Entry struct {
	Path string
	Name string
}

// CreateZip writes the given files into a new zip archive at outputPath.
func CreateZip(entries []Entry, outputPath string) error {
	if len(entries) == 0 {
		return fmt.Errorf("no files to archive")
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	w := zip.NewWriter(out)
	for _, entry := range entries {
		if err := addFile(w, entry); err != nil {
			w.Close()
			return fmt.Errorf("failed to add %s: %w", entry.Name, err)
		}
	}
	return w.Close()
}

func addFile(w *zip.Writer, entry Entry) error {
	src, err := os.Open(entry.Path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := w.Create(entry.Name)
	if err != nil {
		return err
	}
	_, err = io.Copy(dst, src)
	return err
}

// ExtractZip unpacks every regular file in the archive into outputDir,
// flattening directories and rejecting entries that escape the target.
func ExtractZip(inputPath, outputDir string) ([]Entry, error) {
	r, err := zip.OpenReader(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	var extracted []Entry
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if name == "." || name == ".." || strings.HasPrefix(name, "__MACOSX") {
			continue
		}

		dest := filepath.Join(outputDir, name)
		if err := extractFile(f, dest); err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		extracted = append(extracted, Entry{Path: dest, Name: name})
	}

	if len(extracted) == 0 {
		return nil, fmt.Errorf("archive contains no files")
	}
	return extracted, nil
}

func extractFile(f *zip.File, dest string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, src)
	return err
}
