package service

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"strings"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	AvatarSize        = 512
	AvatarWebPQuality = 80
	maxAvatarBytes    = 5 * 1024 * 1024
	// maxAvatarPixels bounds the decoded bitmap; a small compressed file can
	// declare dimensions that would need gigabytes once decoded.
	maxAvatarPixels = 40_000_000
)

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// normalizeAvatar decodes content, crops the centred square and scales it to
// AvatarSize, returning WebP bytes.
func normalizeAvatar(content []byte) ([]byte, error) {
	if !isAllowedImageMIME(http.DetectContentType(content)) {
		return nil, errUnsupportedImage
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errUnsupportedImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxAvatarPixels {
		return nil, errImageTooLarge
	}
	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, errUnsupportedImage
	}

	square := cropToSquare(decoded)
	scaled := scaleTo(square, AvatarSize, AvatarSize)
	return encodeWebP(scaled, AvatarWebPQuality)
}

var (
	errUnsupportedImage = errors.New("unsupported or corrupt image")
	errImageTooLarge    = errors.New("image dimensions too large")
)

func cropToSquare(src image.Image) image.Image {
	b := src.Bounds()
	side := min(b.Dx(), b.Dy())
	if side <= 0 {
		return src
	}
	x := b.Min.X + (b.Dx()-side)/2
	y := b.Min.Y + (b.Dy()-side)/2
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func scaleTo(src image.Image, width, height int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
