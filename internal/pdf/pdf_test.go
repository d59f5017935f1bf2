package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF writes a valid single-page PDF. Offsets in the xref table are
// computed from the actual buffer positions, so the file parses strictly.
func minimalPDF(t *testing.T, path string) {
	t.Helper()

	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = buf.Len()
		buf.WriteString(obj)
	}

	xrefPos := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefPos)

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestPageCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.pdf")
	minimalPDF(t, path)

	count, err := PageCount(path)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMergeCombinesPages(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")
	c := filepath.Join(dir, "c.pdf")
	minimalPDF(t, a)
	minimalPDF(t, b)
	minimalPDF(t, c)

	out := filepath.Join(dir, "merged.pdf")
	require.NoError(t, Merge([]string{a, b, c}, out))

	count, err := PageCount(out)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMergeRejectsEmptyInput(t *testing.T) {
	err := Merge(nil, filepath.Join(t.TempDir(), "out.pdf"))
	require.Error(t, err)
}

func TestMergeFailsOnCorruptInput(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pdf")
	minimalPDF(t, good)
	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a pdf"), 0644))

	err := Merge([]string{good, bad}, filepath.Join(dir, "out.pdf"))
	require.Error(t, err)
}
