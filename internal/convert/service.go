package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/anyconvert/anyconvert_server/internal/apperr"
	"github.com/anyconvert/anyconvert_server/internal/archive"
	"github.com/anyconvert/anyconvert_server/internal/image"
	"github.com/anyconvert/anyconvert_server/internal/media"
	"github.com/anyconvert/anyconvert_server/internal/pdf"
	"github.com/anyconvert/anyconvert_server/internal/storage"
	"github.com/anyconvert/anyconvert_server/internal/tempfile"
	"github.com/anyconvert/anyconvert_server/internal/youtube"
)

// DocumentConverter converts a local document file to the target format.
type DocumentConverter interface {
	Convert(ctx context.Context, inputPath, outputPath, targetFormat string) error
	Configured() bool
}

// PDFConverter converts office/HTML documents to PDF.
type PDFConverter interface {
	ConvertToPDF(ctx context.Context, inputPath, outputPath string) error
	Configured() bool
}

// PageScraper fetches a web page as Markdown-labelled text.
type PageScraper interface {
	Fetch(ctx context.Context, pageURL string) (title, markdown string, err error)
}

// MediaDownloader fetches a remote video/audio track into scratch space.
type MediaDownloader interface {
	Download(ctx context.Context, opts youtube.Options, scope *tempfile.Scope) (*youtube.Result, error)
}

// Service runs one conversion request end to end: dispatch on the request
// kind, run the converter, persist the result and shape the envelope.
type Service struct {
	tempfiles   *tempfile.Manager
	backend     storage.Backend
	scraper     PageScraper
	documents   DocumentConverter
	pdfFallback PDFConverter
	downloader  MediaDownloader
}

func NewService(
	tempfiles *tempfile.Manager,
	backend storage.Backend,
	scraper PageScraper,
	documents DocumentConverter,
	pdfFallback PDFConverter,
	downloader MediaDownloader,
) *Service {
	return &Service{
		tempfiles:   tempfiles,
		backend:     backend,
		scraper:     scraper,
		documents:   documents,
		pdfFallback: pdfFallback,
		downloader:  downloader,
	}
}

// Convert dispatches a parsed request. All scratch files allocated for the
// request are released when it returns, on every path.
func (s *Service) Convert(ctx context.Context, req *Request) (*Result, error) {
	scope := s.tempfiles.NewScope()
	defer scope.Release()

	switch req.Kind {
	case KindImageConvert:
		return s.convertImage(ctx, req)
	case KindImageCompress:
		return s.compressImage(ctx, req)
	case KindPDFMerge:
		return s.mergePDFs(ctx, req, scope)
	case KindDocumentConvert:
		return s.convertDocument(ctx, req, scope)
	case KindURLToMarkdown:
		return s.urlToMarkdown(ctx, req)
	case KindMediaHandoff:
		return s.mediaHandoff(ctx, req)
	case KindArchiveCreate:
		return s.createArchive(ctx, req, scope)
	case KindArchiveExtract:
		return s.extractArchive(ctx, req, scope)
	case KindYouTubeDownload:
		return s.Download(ctx, youtube.Options{
			URL:          req.URL,
			Track:        downloadTrack(req),
			Quality:      req.Quality,
			TargetFormat: req.TargetFormat,
		})
	case KindUnsupported:
		return nil, apperr.Unavailable("This operation is currently unavailable")
	default:
		return nil, apperr.Unavailable("This operation is currently unavailable")
	}
}

func (s *Service) convertImage(ctx context.Context, req *Request) (*Result, error) {
	input, err := readUpload(req.Files[0])
	if err != nil {
		return nil, err
	}

	output, err := image.Convert(input, req.TargetFormat)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	fileName := replaceExt(req.Files[0].Filename, req.TargetFormat)
	return s.storeResult(ctx, fileName, output)
}

func (s *Service) compressImage(ctx context.Context, req *Request) (*Result, error) {
	input, err := readUpload(req.Files[0])
	if err != nil {
		return nil, err
	}

	output, _, err := image.Compress(input)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	return s.storeResult(ctx, req.Files[0].Filename, output)
}

func (s *Service) mergePDFs(ctx context.Context, req *Request, scope *tempfile.Scope) (*Result, error) {
	inputPaths := make([]string, 0, len(req.Files))
	for _, fh := range req.Files {
		path := scope.Path("pdf")
		if err := saveUpload(fh, path); err != nil {
			return nil, err
		}
		inputPaths = append(inputPaths, path)
	}

	outputPath := scope.Path("pdf")
	if err := pdf.Merge(inputPaths, outputPath); err != nil {
		return nil, apperr.Internal(err.Error(), err)
	}

	return s.storeResultFile(ctx, "merged.pdf", outputPath)
}

func (s *Service) convertDocument(ctx context.Context, req *Request, scope *tempfile.Scope) (*Result, error) {
	target := strings.ToLower(strings.TrimPrefix(req.TargetFormat, "."))

	inputPath := scope.Path(uploadExt(req.Files[0].Filename))
	if err := saveUpload(req.Files[0], inputPath); err != nil {
		return nil, err
	}
	outputPath := scope.Path(target)

	switch {
	case s.documents != nil && s.documents.Configured():
		if err := s.documents.Convert(ctx, inputPath, outputPath, target); err != nil {
			log.Error().Err(err).Str("target", target).Msg("Document conversion failed")
			return nil, translateVendorError(err)
		}
	case target == "pdf" && s.pdfFallback != nil && s.pdfFallback.Configured():
		if err := s.pdfFallback.ConvertToPDF(ctx, inputPath, outputPath); err != nil {
			log.Error().Err(err).Msg("Document conversion failed")
			return nil, translateVendorError(err)
		}
	default:
		return nil, apperr.Unavailable("Document conversion is temporarily unavailable. Please try again later.")
	}

	return s.storeResultFile(ctx, replaceExt(req.Files[0].Filename, target), outputPath)
}

func (s *Service) urlToMarkdown(ctx context.Context, req *Request) (*Result, error) {
	title, markdown, err := s.scraper.Fetch(ctx, req.URL)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	fileName := slugify(title) + ".md"
	return s.storeResult(ctx, fileName, []byte(markdown))
}

func (s *Service) mediaHandoff(ctx context.Context, req *Request) (*Result, error) {
	opts, ok := media.OptionsFor(req.ConversionType, req.TargetFormat)
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("Unsupported target format: %s", req.TargetFormat))
	}

	fh := req.Files[0]
	input, err := readUpload(fh)
	if err != nil {
		return nil, err
	}

	// The original upload is parked in storage so the browser can stream it
	// back into the WASM ffmpeg filesystem.
	key := storage.ResultKey(fh.Filename)
	contentType := contentTypeFor(fh.Filename)
	if err := s.backend.Store(ctx, key, bytes.NewReader(input), contentType); err != nil {
		return nil, apperr.Internal("Failed to store file", err)
	}
	tempFileURL, err := s.backend.GetURL(ctx, key)
	if err != nil {
		return nil, apperr.Internal("Failed to build download URL", err)
	}

	return &Result{
		Success:              true,
		ClientSideConversion: true,
		TempFileURL:          tempFileURL,
		OriginalFile: &OriginalFile{
			Name:      fh.Filename,
			Size:      fh.Size,
			Type:      contentType,
			Extension: uploadExt(fh.Filename),
		},
		TargetFormat:   req.TargetFormat,
		ConversionType: req.ConversionType,
		FFmpegOptions:  &opts,
	}, nil
}

func (s *Service) createArchive(ctx context.Context, req *Request, scope *tempfile.Scope) (*Result, error) {
	entries := make([]archive.Entry, 0, len(req.Files))
	for _, fh := range req.Files {
		path := scope.Path(uploadExt(fh.Filename))
		if err := saveUpload(fh, path); err != nil {
			return nil, err
		}
		entries = append(entries, archive.Entry{Path: path, Name: filepath.Base(fh.Filename)})
	}

	outputPath := scope.Path("zip")
	if err := archive.CreateZip(entries, outputPath); err != nil {
		return nil, apperr.Internal(err.Error(), err)
	}

	return s.storeResultFile(ctx, "archive.zip", outputPath)
}

func (s *Service) extractArchive(ctx context.Context, req *Request, scope *tempfile.Scope) (*Result, error) {
	inputPath := scope.Path("zip")
	if err := saveUpload(req.Files[0], inputPath); err != nil {
		return nil, err
	}

	outDir, err := scope.Dir()
	if err != nil {
		return nil, apperr.Internal("Failed to create scratch directory", err)
	}

	entries, err := archive.ExtractZip(inputPath, outDir)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}

	// Extracted entries are flattened back into a single zip for download.
	outputPath := scope.Path("zip")
	if err := archive.CreateZip(entries, outputPath); err != nil {
		return nil, apperr.Internal(err.Error(), err)
	}

	return s.storeResultFile(ctx, "extracted.zip", outputPath)
}

// Download runs the server-side YouTube flow shared by /api/download and
// the download operation of /api/convert.
func (s *Service) Download(ctx context.Context, opts youtube.Options) (*Result, error) {
	if s.downloader == nil {
		return nil, apperr.Unavailable("Video download is currently unavailable")
	}

	scope := s.tempfiles.NewScope()
	defer scope.Release()

	dl, err := s.downloader.Download(ctx, opts, scope)
	if err != nil {
		return nil, apperr.Internal(err.Error(), err)
	}

	fileName := slugify(dl.Title) + "." + dl.Format
	result, err := s.storeResultFile(ctx, fileName, dl.FilePath)
	if err != nil {
		return nil, err
	}

	result.Title = dl.Title
	result.Duration = dl.Duration
	result.Thumbnail = dl.Thumbnail
	result.Format = dl.Format
	return result, nil
}

// storeResult persists data under a fresh key and shapes the envelope.
func (s *Service) storeResult(ctx context.Context, fileName string, data []byte) (*Result, error) {
	key := storage.ResultKey(fileName)
	if err := s.backend.Store(ctx, key, bytes.NewReader(data), contentTypeFor(fileName)); err != nil {
		return nil, apperr.Internal("Failed to store result", err)
	}

	url, err := s.backend.GetURL(ctx, key)
	if err != nil {
		return nil, apperr.Internal("Failed to build download URL", err)
	}

	return &Result{
		Success:     true,
		DownloadURL: url,
		FileName:    fileName,
		FileSize:    int64(len(data)),
	}, nil
}

func (s *Service) storeResultFile(ctx context.Context, fileName, path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperr.Internal("Failed to open result", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, apperr.Internal("Failed to stat result", err)
	}

	key := storage.ResultKey(fileName)
	if err := s.backend.Store(ctx, key, file, contentTypeFor(fileName)); err != nil {
		return nil, apperr.Internal("Failed to store result", err)
	}

	url, err := s.backend.GetURL(ctx, key)
	if err != nil {
		return nil, apperr.Internal("Failed to build download URL", err)
	}

	return &Result{
		Success:     true,
		DownloadURL: url,
		FileName:    fileName,
		FileSize:    info.Size(),
	}, nil
}

// translateVendorError rewrites raw vendor failures into the user-facing
// categories; anything unrecognized keeps the vendor message.
func translateVendorError(err error) error {
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "api key"),
		strings.Contains(message, "unauthorized"),
		strings.Contains(message, "forbidden"),
		strings.Contains(message, "401"),
		strings.Contains(message, "403"):
		return apperr.Internal("Document conversion service is temporarily unavailable. Please try again later.", err)
	case strings.Contains(message, "unsupported"), strings.Contains(message, "format"):
		return apperr.Internal("This format combination is not supported.", err)
	default:
		return apperr.Internal(err.Error(), err)
	}
}

func downloadTrack(req *Request) youtube.Track {
	if req.Track == "audio" || req.ConversionType == "audio" {
		return youtube.TrackAudio
	}
	return youtube.TrackVideo
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	file, err := fh.Open()
	if err != nil {
		return nil, apperr.Internal("Failed to open uploaded file", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.Internal("Failed to read uploaded file", err)
	}
	return data, nil
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return apperr.Internal("Failed to open uploaded file", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return apperr.Internal("Failed to save uploaded file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return apperr.Internal("Failed to save uploaded file", err)
	}
	return nil
}

func uploadExt(fileName string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
}

func replaceExt(fileName, newExt string) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return base + "." + strings.TrimPrefix(newExt, ".")
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "download"
	}
	return out
}

func contentTypeFor(fileName string) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
