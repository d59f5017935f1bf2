package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anyconvert/anyconvert_server/internal/apperr"
	"github.com/anyconvert/anyconvert_server/internal/tempfile"
	"github.com/anyconvert/anyconvert_server/internal/youtube"
)

type memoryBackend struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (b *memoryBackend) Store(ctx context.Context, key string, reader io.Reader, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memoryBackend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memoryBackend) GetURL(ctx context.Context, key string) (string, error) {
	return "https://files.test/" + key, nil
}

func (b *memoryBackend) only(t *testing.T) (string, []byte) {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.objects, 1)
	for key, data := range b.objects {
		return key, data
	}
	return "", nil
}

type mockDocConverter struct {
	err        error
	output     []byte
	configured bool
	calls      int
}

func (m *mockDocConverter) Convert(ctx context.Context, inputPath, outputPath, targetFormat string) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(outputPath, m.output, 0644)
}

func (m *mockDocConverter) Configured() bool { return m.configured }

type mockPDFConverter struct {
	err        error
	configured bool
	calls      int
}

func (m *mockPDFConverter) ConvertToPDF(ctx context.Context, inputPath, outputPath string) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return os.WriteFile(outputPath, []byte("%PDF-1.4 fake"), 0644)
}

func (m *mockPDFConverter) Configured() bool { return m.configured }

type mockScraper struct {
	title    string
	markdown string
	err      error
}

func (m *mockScraper) Fetch(ctx context.Context, pageURL string) (string, string, error) {
	return m.title, m.markdown, m.err
}

type mockDownloader struct {
	result *youtube.Result
	err    error
}

func (m *mockDownloader) Download(ctx context.Context, opts youtube.Options, scope *tempfile.Scope) (*youtube.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	path := scope.Path(m.result.Format)
	if err := os.WriteFile(path, []byte("media bytes"), 0644); err != nil {
		return nil, err
	}
	result := *m.result
	result.FilePath = path
	return &result, nil
}

func newTestService(t *testing.T, backend *memoryBackend, opts ...func(*Service)) *Service {
	t.Helper()
	manager, err := tempfile.NewManager(t.TempDir())
	require.NoError(t, err)
	service := NewService(manager, backend, &mockScraper{}, nil, nil, nil)
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func withDocs(docs DocumentConverter) func(*Service) {
	return func(s *Service) { s.documents = docs }
}

func withPDFFallback(pdf PDFConverter) func(*Service) {
	return func(s *Service) { s.pdfFallback = pdf }
}

func withScraper(scraper PageScraper) func(*Service) {
	return func(s *Service) { s.scraper = scraper }
}

func withDownloader(dl MediaDownloader) func(*Service) {
	return func(s *Service) { s.downloader = dl }
}

func TestConvertImagePNGToJPEG(t *testing.T) {
	backend := newMemoryBackend()
	service := newTestService(t, backend)

	form := buildForm(t,
		map[string]string{"conversionType": "image", "operation": "convert", "targetFormat": "jpg"},
		[]formFile{{"file", "photo.png", pngBytes(t, 4, 4)}})
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	result, err := service.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "photo.jpg", result.FileName)
	assert.Contains(t, result.DownloadURL, "https://files.test/")

	_, data := backend.only(t)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "stored object should be a JPEG")
}

func TestCompressImage(t *testing.T) {
	backend := newMemoryBackend()
	service := newTestService(t, backend)

	form := buildForm(t,
		map[string]string{"conversionType": "image", "operation": "compress"},
		[]formFile{{"file", "photo.png", pngBytes(t, 4, 4)}})
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	result, err := service.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "photo.png", result.FileName)
}

func TestDocumentConversionVendorErrorTranslation(t *testing.T) {
	cases := []struct {
		name      string
		vendorErr string
		want      string
	}{
		{"invalid key", "cloudconvert: Invalid API key provided", "Document conversion service is temporarily unavailable. Please try again later."},
		{"unauthorized", "cloudconvert: 401 Unauthorized", "Document conversion service is temporarily unavailable. Please try again later."},
		{"bad format", "conversion failed: unsupported output format", "This format combination is not supported."},
		{"other", "conversion failed: job timed out", "conversion failed: job timed out"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newMemoryBackend()
			docs := &mockDocConverter{configured: true, err: errors.New(tc.vendorErr)}
			service := newTestService(t, backend, withDocs(docs))

			form := buildForm(t,
				map[string]string{"conversionType": "document", "operation": "convert", "targetFormat": "pdf"},
				[]formFile{{"file", "report.docx", []byte("doc bytes")}})
			req, err := ParseRequest(form, testMaxFileSize)
			require.NoError(t, err)

			_, err = service.Convert(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
		})
	}
}

func TestDocumentConversionSuccess(t *testing.T) {
	backend := newMemoryBackend()
	docs := &mockDocConverter{configured: true, output: []byte("%PDF-1.4 converted")}
	service := newTestService(t, backend, withDocs(docs))

	form := buildForm(t,
		map[string]string{"conversionType": "document", "operation": "convert", "targetFormat": "pdf"},
		[]formFile{{"file", "report.docx", []byte("doc bytes")}})
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	result, err := service.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", result.FileName)
	assert.Equal(t, 1, docs.calls)
}

func TestDocumentConversionFallsBackForPDFTarget(t *testing.T) {
	backend := newMemoryBackend()
	fallback := &mockPDFConverter{configured: true}
	service := newTestService(t, backend, withPDFFallback(fallback))

	form := buildForm(t,
		map[string]string{"conversionType": "document", "operation": "convert", "targetFormat": "pdf"},
		[]formFile{{"file", "report.docx", []byte("doc bytes")}})
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	result, err := service.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", result.FileName)
	assert.Equal(t, 1, fallback.calls)
}

func TestDocumentConversionUnavailable(t *testing.T) {
	backend := newMemoryBackend()
	fallback := &mockPDFConverter{configured: true}
	service := newTestService(t, backend, withPDFFallback(fallback))

	// Fallback only handles PDF targets; docx stays unserved.
	form := buildForm(t,
		map[string]string{"conversionType": "document", "operation": "convert", "targetFormat": "docx"},
		[]formFile{{"file", "report.odt", []byte("doc bytes")}})
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	_, err = service.Convert(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, "Document conversion is temporarily unavailable. Please try again later.", err.Error())
	assert.Equal(t, 503, apperr.StatusOf(err))
	assert.Equal(t, 0, fallback.calls)
}

func TestURLToMarkdown(t *testing.T) {
	backend := newMemoryBackend()
	scraper := &mockScraper{title: "My Great Post!", markdown: "# My Great Post!\n\nbody"}
	service := newTestService(t, backend, withScraper(scraper))

	form := buildForm(t,
		map[string]string{"operation": "url-to-markdown", "webpageUrl": "https://example.com/post"},
		nil)
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	result, err := service.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "my-great-post.md", result.FileName)

	_, data := backend.only(t)
	assert.Equal(t, scraper.markdown, string(data))
}

func TestMediaHandoffEnvelope(t *testing.T) {
	backend := newMemoryBackend()
	service := newTestService(t, backend)

	form := buildForm(t,
		map[string]string{"conversionType": "video", "operation": "convert", "targetFormat": "webm"},
		[]formFile{{"file", "clip.mp4", []byte("fake video bytes")}})
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	result, err := service.Convert(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.True(t, result.ClientSideConversion)
	assert.Contains(t, result.TempFileURL, "https://files.test/")
	assert.Equal(t, "webm", result.TargetFormat)
	assert.Equal(t, "video", result.ConversionType)
	require.NotNil(t, result.OriginalFile)
	assert.Equal(t, "clip.mp4", result.OriginalFile.Name)
	assert.Equal(t, "mp4", result.OriginalFile.Extension)
	require.NotNil(t, result.FFmpegOptions)
	assert.Equal(t, "libvpx-vp9", result.FFmpegOptions.Codec)

	_, data := backend.only(t)
	assert.Equal(t, "fake video bytes", string(data), "original upload is parked unmodified")
}

func TestMediaHandoffUnsupportedTarget(t *testing.T) {
	backend := newMemoryBackend()
	service := newTestService(t, backend)

	form := buildForm(t,
		map[string]string{"conversionType": "audio", "operation": "convert", "targetFormat": "midi"},
		[]formFile{{"file", "song.mp3", []byte("audio")}})
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	_, err = service.Convert(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusOf(err))
}

func TestArchiveCreateAndExtract(t *testing.T) {
	backend := newMemoryBackend()
	service := newTestService(t, backend)

	form := buildForm(t,
		map[string]string{"conversionType": "archive", "operation": "create"},
		[]formFile{
			{"files", "notes.txt", []byte("first")},
			{"files", "todo.txt", []byte("second")},
		})
	req, err := ParseRequest(form, testMaxFileSize)
	require.NoError(t, err)

	result, err := service.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "archive.zip", result.FileName)

	_, zipData := backend.only(t)
	backend.objects = map[string][]byte{}

	extractForm := buildForm(t,
		map[string]string{"conversionType": "archive", "operation": "extract"},
		[]formFile{{"file", "archive.zip", zipData}})
	extractReq, err := ParseRequest(extractForm, testMaxFileSize)
	require.NoError(t, err)

	extractResult, err := service.Convert(context.Background(), extractReq)
	require.NoError(t, err)
	assert.Equal(t, "extracted.zip", extractResult.FileName)
	assert.Greater(t, extractResult.FileSize, int64(0))
}

func TestDownloadShapesEnvelope(t *testing.T) {
	backend := newMemoryBackend()
	downloader := &mockDownloader{result: &youtube.Result{
		Title:     "Never Gonna Give You Up",
		Duration:  212,
		Thumbnail: "https://i.ytimg.test/hq.jpg",
		Format:    "mp3",
	}}
	service := newTestService(t, backend, withDownloader(downloader))

	result, err := service.Download(context.Background(), youtube.Options{
		URL:          "https://youtube.com/watch?v=dQw4w9WgXcQ",
		Track:        youtube.TrackAudio,
		TargetFormat: "mp3",
	})
	require.NoError(t, err)

	assert.Equal(t, "never-gonna-give-you-up.mp3", result.FileName)
	assert.Equal(t, "Never Gonna Give You Up", result.Title)
	assert.Equal(t, 212, result.Duration)
	assert.Equal(t, "mp3", result.Format)
}

func TestDownloadUnavailableWithoutDownloader(t *testing.T) {
	service := newTestService(t, newMemoryBackend())

	_, err := service.Download(context.Background(), youtube.Options{URL: "https://youtube.com/watch?v=x"})
	require.Error(t, err)
	assert.Equal(t, 503, apperr.StatusOf(err))
}

func TestUnsupportedKindRejected(t *testing.T) {
	service := newTestService(t, newMemoryBackend())

	_, err := service.Convert(context.Background(), &Request{Kind: KindUnsupported})
	require.Error(t, err)
	assert.Equal(t, 503, apperr.StatusOf(err))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", slugify("Hello, World!"))
	assert.Equal(t, "download", slugify("???"))
	assert.Equal(t, "a-b-c", slugify("a  b  c"))
}
