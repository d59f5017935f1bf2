package convert

import (
	"fmt"
	"mime/multipart"

	"github.com/anyconvert/anyconvert_server/internal/apperr"
	"github.com/anyconvert/anyconvert_server/internal/scrape"
)

// Kind is the closed set of operations the orchestrator can run. The
// conversionType/operation discriminator pair is resolved into exactly one
// Kind at parse time, so the dispatch switch is exhaustive and inconsistent
// field combinations are rejected up front instead of falling through.
type Kind int

const (
	KindUnsupported Kind = iota
	KindImageConvert
	KindImageCompress
	KindPDFMerge
	KindDocumentConvert
	KindURLToMarkdown
	KindMediaHandoff
	KindArchiveCreate
	KindArchiveExtract
	KindYouTubeDownload
)

func (k Kind) String() string {
	switch k {
	case KindImageConvert:
		return "image-convert"
	case KindImageCompress:
		return "image-compress"
	case KindPDFMerge:
		return "pdf-merge"
	case KindDocumentConvert:
		return "document-convert"
	case KindURLToMarkdown:
		return "url-to-markdown"
	case KindMediaHandoff:
		return "media-handoff"
	case KindArchiveCreate:
		return "archive-create"
	case KindArchiveExtract:
		return "archive-extract"
	case KindYouTubeDownload:
		return "youtube-download"
	default:
		return "unsupported"
	}
}

// Request is a parsed, validated conversion request. Exactly one of Files
// and URL is populated, depending on Kind.
type Request struct {
	Kind           Kind
	ConversionType string
	Operation      string
	TargetFormat   string
	Files          []*multipart.FileHeader
	URL            string
	Quality        string // video quality hint for downloads
	Track          string // "video" or "audio" for downloads
}

// ParseRequest classifies a multipart form into a Request. Size and shape
// validation happens here, before any converter or network call runs.
func ParseRequest(form *multipart.Form, maxFileSize int64) (*Request, error) {
	req := &Request{
		ConversionType: formValue(form, "conversionType"),
		Operation:      formValue(form, "operation"),
		TargetFormat:   formValue(form, "targetFormat"),
		Quality:        formValue(form, "quality"),
		Track:          formValue(form, "format"),
	}

	req.Files = append(req.Files, form.File["file"]...)
	req.Files = append(req.Files, form.File["files"]...)

	videoURL := formValue(form, "videoUrl")
	webpageURL := formValue(form, "webpageUrl")

	for _, fh := range req.Files {
		if fh.Size > maxFileSize {
			return nil, apperr.BadRequest(fmt.Sprintf(
				"File size exceeds the limit. Maximum allowed size: %d MB", maxFileSize/(1024*1024)))
		}
	}

	switch {
	case req.Operation == "download":
		if videoURL == "" {
			return nil, apperr.BadRequest("No URL provided")
		}
		if err := scrape.ValidateURL(videoURL); err != nil {
			return nil, apperr.BadRequest(err.Error())
		}
		if len(req.Files) > 0 {
			return nil, apperr.BadRequest("Download requests must not include a file")
		}
		req.Kind = KindYouTubeDownload
		req.URL = videoURL

	case req.Operation == "url-to-markdown":
		if webpageURL == "" {
			return nil, apperr.BadRequest("No URL provided")
		}
		if err := scrape.ValidateURL(webpageURL); err != nil {
			return nil, apperr.BadRequest(err.Error())
		}
		if len(req.Files) > 0 {
			return nil, apperr.BadRequest("URL conversion must not include a file")
		}
		req.Kind = KindURLToMarkdown
		req.URL = webpageURL

	case req.ConversionType == "image" && req.Operation == "convert":
		if err := requireSingleFile(req); err != nil {
			return nil, err
		}
		if req.TargetFormat == "" {
			return nil, apperr.BadRequest("No target format specified")
		}
		req.Kind = KindImageConvert

	case req.Operation == "merge":
		if len(req.Files) < 2 {
			return nil, apperr.BadRequest("At least 2 files are required to merge")
		}
		req.Kind = KindPDFMerge

	case req.Operation == "compress" && req.ConversionType == "image":
		if err := requireSingleFile(req); err != nil {
			return nil, err
		}
		req.Kind = KindImageCompress

	case req.ConversionType == "document" && req.Operation == "convert":
		if err := requireSingleFile(req); err != nil {
			return nil, err
		}
		if req.TargetFormat == "" {
			return nil, apperr.BadRequest("No target format specified")
		}
		req.Kind = KindDocumentConvert

	case (req.ConversionType == "video" || req.ConversionType == "audio") && req.Operation == "convert":
		if err := requireSingleFile(req); err != nil {
			return nil, err
		}
		if req.TargetFormat == "" {
			return nil, apperr.BadRequest("No target format specified")
		}
		req.Kind = KindMediaHandoff

	case req.ConversionType == "archive" && req.Operation == "create":
		if len(req.Files) == 0 {
			return nil, apperr.BadRequest("No file provided")
		}
		req.Kind = KindArchiveCreate

	case req.ConversionType == "archive" && req.Operation == "extract":
		if err := requireSingleFile(req); err != nil {
			return nil, err
		}
		req.Kind = KindArchiveExtract

	default:
		req.Kind = KindUnsupported
	}

	return req, nil
}

func requireSingleFile(req *Request) error {
	if len(req.Files) == 0 {
		return apperr.BadRequest("No file provided")
	}
	if len(req.Files) > 1 {
		return apperr.BadRequest("Only one file is supported for this operation")
	}
	return nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
