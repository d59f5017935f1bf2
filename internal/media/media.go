package media

import "strings"

// FFmpegOptions are the encode parameters the browser feeds into its WASM
// ffmpeg runtime. The server never transcodes audio or video itself; it only
// stores the original upload and computes this table entry.
type FFmpegOptions struct {
	Codec      string `json:"codec,omitempty"`
	Bitrate    string `json:"bitrate,omitempty"`
	Preset     string `json:"preset,omitempty"`
	CRF        int    `json:"crf,omitempty"`
	AudioCodec string `json:"audioCodec,omitempty"`
	Container  string `json:"container,omitempty"`
}

var audioOptions = map[string]FFmpegOptions{
	"mp3":  {Codec: "libmp3lame", Bitrate: "192k"},
	"wav":  {Codec: "pcm_s16le"},
	"ogg":  {Codec: "libvorbis", Bitrate: "192k"},
	"flac": {Codec: "flac"},
	"aac":  {Codec: "aac", Bitrate: "192k"},
	"m4a":  {Codec: "aac", Bitrate: "192k", Container: "ipod"},
	"wma":  {Codec: "wmav2", Bitrate: "192k"},
}

var videoOptions = map[string]FFmpegOptions{
	"mp4":  {Codec: "libx264", Preset: "medium", CRF: 23, AudioCodec: "aac"},
	"webm": {Codec: "libvpx-vp9", CRF: 30, AudioCodec: "libopus"},
	"mkv":  {Codec: "libx264", Preset: "medium", CRF: 23, AudioCodec: "aac", Container: "matroska"},
	"mov":  {Codec: "libx264", Preset: "medium", CRF: 23, AudioCodec: "aac"},
	"avi":  {Codec: "mpeg4", AudioCodec: "libmp3lame"},
	"flv":  {Codec: "flv", AudioCodec: "libmp3lame"},
}

// OptionsFor returns the encode parameters for a target extension.
func OptionsFor(conversionType, targetFormat string) (FFmpegOptions, bool) {
	targetFormat = strings.ToLower(strings.TrimPrefix(targetFormat, "."))
	switch conversionType {
	case "audio":
		opts, ok := audioOptions[targetFormat]
		return opts, ok
	case "video":
		opts, ok := videoOptions[targetFormat]
		return opts, ok
	}
	return FFmpegOptions{}, false
}
