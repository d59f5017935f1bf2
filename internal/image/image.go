package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/disintegration/imaging"

	// webp decoding for uploads; nativewebp covers the encode side.
	_ "golang.org/x/image/webp"
)

// CompressQuality is the fixed JPEG re-encode quality for the compress
// operation. Fixed so identical inputs always produce identical outputs.
const CompressQuality = 80

var targetFormats = map[string]imaging.Format{
	"jpg":  imaging.JPEG,
	"jpeg": imaging.JPEG,
	"png":  imaging.PNG,
	"gif":  imaging.GIF,
	"tif":  imaging.TIFF,
	"tiff": imaging.TIFF,
	"bmp":  imaging.BMP,
}

// SupportedTarget reports whether targetFormat can be encoded.
func SupportedTarget(targetFormat string) bool {
	target := strings.ToLower(targetFormat)
	if target == "webp" {
		return true
	}
	_, ok := targetFormats[target]
	return ok
}

// Convert re-encodes a raster image into targetFormat. No resizing, no
// EXIF handling beyond what the decoder does.
func Convert(input []byte, targetFormat string) ([]byte, error) {
	target := strings.ToLower(targetFormat)
	format, ok := targetFormats[target]
	if !ok && target != "webp" {
		return nil, fmt.Errorf("unsupported image format: %s", targetFormat)
	}

	img, err := imaging.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var out bytes.Buffer
	if target == "webp" {
		if err := nativewebp.Encode(&out, img, nil); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		return out.Bytes(), nil
	}

	var opts []imaging.EncodeOption
	if format == imaging.JPEG {
		opts = append(opts, imaging.JPEGQuality(90))
	}
	if err := imaging.Encode(&out, img, format, opts...); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return out.Bytes(), nil
}

// Compress re-encodes JPEG and PNG images at reduced quality and webp
// losslessly. Formats without a usable re-encoder pass through unchanged,
// matching the convert-or-copy behavior the UI promises.
func Compress(input []byte) ([]byte, string, error) {
	img, detected, err := stdimage.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	var out bytes.Buffer
	switch detected {
	case "jpeg":
		err = imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(CompressQuality))
	case "png":
		err = imaging.Encode(&out, img, imaging.PNG)
	case "webp":
		err = nativewebp.Encode(&out, img, nil)
	default:
		return input, detected, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}

	return out.Bytes(), detected, nil
}
