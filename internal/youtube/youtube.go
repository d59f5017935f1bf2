package youtube

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog/log"

	"github.com/anyconvert/anyconvert_server/internal/tempfile"
)

// Track selects which stream of the video is downloaded.
type Track string

const (
	TrackVideo Track = "video"
	TrackAudio Track = "audio"
)

type Options struct {
	URL          string
	Track        Track
	Quality      string // "highest" or "lowest"
	TargetFormat string // container extension, e.g. mp4, mp3
}

type Result struct {
	FilePath  string
	FileSize  int64
	Title     string
	Duration  int // seconds
	Thumbnail string
	Format    string
}

// Downloader fetches a YouTube stream server-side and remuxes it through a
// local ffmpeg binary. Unlike generic audio/video conversion, this runs
// entirely on the server.
type Downloader struct {
	client     youtube.Client
	ffmpegPath string
}

func NewDownloader(ffmpegPath string) *Downloader {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Downloader{ffmpegPath: ffmpegPath}
}

// Download resolves metadata, streams the chosen track into scratch space
// and converts it to the target container. Failures are reported per phase
// so the user can tell an unavailable video from a broken conversion.
func (d *Downloader) Download(ctx context.Context, opts Options, scope *tempfile.Scope) (*Result, error) {
	video, err := d.client.GetVideoContext(ctx, opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to get video info: %w", err)
	}

	format, err := pickFormat(video, opts.Track, opts.Quality)
	if err != nil {
		return nil, err
	}

	sourceExt := extFromMimeType(format.MimeType)
	sourcePath := scope.Path(sourceExt)
	if err := d.fetchStream(ctx, video, format, sourcePath); err != nil {
		return nil, fmt.Errorf("stream download failed: %w", err)
	}

	targetFormat := strings.ToLower(opts.TargetFormat)
	if targetFormat == "" {
		if opts.Track == TrackAudio {
			targetFormat = "m4a"
		} else {
			targetFormat = "mp4"
		}
	}

	outputPath := sourcePath
	if targetFormat != sourceExt {
		outputPath = scope.Path(targetFormat)
		if err := d.transcode(ctx, sourcePath, outputPath, opts.Track); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("output file missing: %w", err)
	}

	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[0].URL
	}

	return &Result{
		FilePath:  outputPath,
		FileSize:  info.Size(),
		Title:     video.Title,
		Duration:  int(video.Duration.Seconds()),
		Thumbnail: thumbnail,
		Format:    targetFormat,
	}, nil
}

func pickFormat(video *youtube.Video, track Track, quality string) (*youtube.Format, error) {
	var candidates youtube.FormatList
	if track == TrackAudio {
		candidates = video.Formats.Type("audio")
	} else {
		candidates = video.Formats.WithAudioChannels().Type("video")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no %s streams available", track)
	}

	candidates.Sort()
	if strings.HasPrefix(quality, "lowest") {
		return &candidates[len(candidates)-1], nil
	}
	return &candidates[0], nil
}

func (d *Downloader) fetchStream(ctx context.Context, video *youtube.Video, format *youtube.Format, outputPath string) error {
	stream, _, err := d.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return err
	}
	defer stream.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, stream); err != nil {
		os.Remove(outputPath)
		return err
	}
	return nil
}

func (d *Downloader) transcode(ctx context.Context, inputPath, outputPath string, track Track) error {
	args := []string{"-y", "-i", inputPath}
	if track == TrackAudio {
		args = append(args, "-vn")
	}
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, d.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().Err(err).Str("stderr", stderr.String()).Msg("ffmpeg failed")
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

// extFromMimeType maps "video/mp4; codecs=..." to "mp4".
func extFromMimeType(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	if idx := strings.Index(mimeType, "/"); idx >= 0 {
		mimeType = mimeType[idx+1:]
	}
	switch mimeType {
	case "webm":
		return "webm"
	case "mp4":
		return "mp4"
	default:
		return strings.TrimSpace(mimeType)
	}
}
