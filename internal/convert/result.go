package convert

import "github.com/anyconvert/anyconvert_server/internal/media"

// OriginalFile describes the upload echoed back in a client-side handoff.
type OriginalFile struct {
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Type      string `json:"type"`
	Extension string `json:"extension"`
}

// Result is the uniform success envelope for /api/convert and /api/download.
type Result struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	FileSize    int64  `json:"fileSize,omitempty"`

	// Video download metadata.
	Title     string `json:"title,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Format    string `json:"format,omitempty"`

	// Client-side conversion handoff: the browser runs ffmpeg.wasm with
	// these parameters against the temp-stored original.
	ClientSideConversion bool                 `json:"clientSideConversion,omitempty"`
	TempFileURL          string               `json:"tempFileUrl,omitempty"`
	OriginalFile         *OriginalFile        `json:"originalFile,omitempty"`
	TargetFormat         string               `json:"targetFormat,omitempty"`
	ConversionType       string               `json:"conversionType,omitempty"`
	FFmpegOptions        *media.FFmpegOptions `json:"ffmpegOptions,omitempty"`
}

// ErrorResult is the uniform failure envelope.
type ErrorResult struct {
	Error string `json:"error"`
}
