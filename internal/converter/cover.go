package converter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"regexp"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/yuanying/shamela2epub/internal/book"
)

const (
	defaultCoverMinSide     = 300
	defaultCoverMinBytes    = 50 * 1024
	defaultCoverJPEGQuality = 90
)

var (
	// ErrCoverTooSmall is returned when a cover is below the minimum dimensions or size.
	ErrCoverTooSmall = errors.New("cover image too small")
	// ErrUnsupportedCover is returned for covers that are not PNG or JPEG.
	ErrUnsupportedCover = errors.New("unsupported cover image format (only PNG and JPEG)")
	// ErrInvalidSize is returned by ParseSize for anything but "WxH" with positive numbers.
	ErrInvalidSize = errors.New("size must look like WxH with positive numbers")
)

var sizeRe = regexp.MustCompile(`^\s*(\d+)\s*[xX]\s*(\d+)\s*$`)

// CoverOptions controls cover validation and conversion.
type CoverOptions struct {
	MinWidth    int
	MinHeight   int
	MinBytes    int  // Zero disables the byte check
	ConvertPNG  bool // Re-encode PNG covers as JPEG
	MaxWidth    int  // Downscale wider covers; zero keeps the original width
	JPEGQuality int
}

// DefaultCoverOptions returns the thresholds used by the command line tool.
func DefaultCoverOptions() CoverOptions {
	return CoverOptions{
		MinWidth:    defaultCoverMinSide,
		MinHeight:   defaultCoverMinSide,
		MinBytes:    defaultCoverMinBytes,
		JPEGQuality: defaultCoverJPEGQuality,
	}
}

// ParseSize parses "WxH" (e.g. "600x800").
func ParseSize(s string) (width, height int, err error) {
	m := sizeRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	width, _ = strconv.Atoi(m[1])
	height, _ = strconv.Atoi(m[2])
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return width, height, nil
}

// LoadCover reads a local cover image and validates it with DecodeCover.
func LoadCover(path string, opts CoverOptions) (*book.CoverAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cover: %w", err)
	}
	cover, err := DecodeCover(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load cover %s: %w", path, err)
	}
	return cover, nil
}

// DecodeCover validates cover image data. The data is returned untouched
// unless PNG conversion or downscaling was requested and applies.
func DecodeCover(data []byte, opts CoverOptions) (*book.CoverAsset, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCover, err)
	}
	mediaType, ok := coverMediaType(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCover, format)
	}
	if cfg.Width < opts.MinWidth || cfg.Height < opts.MinHeight {
		return nil, fmt.Errorf("%w: %dx%d is below %dx%d", ErrCoverTooSmall, cfg.Width, cfg.Height, opts.MinWidth, opts.MinHeight)
	}
	if opts.MinBytes > 0 && len(data) < opts.MinBytes {
		return nil, fmt.Errorf("%w: %d bytes is below %d", ErrCoverTooSmall, len(data), opts.MinBytes)
	}

	convert := opts.ConvertPNG && mediaType == mediaPNG
	resize := opts.MaxWidth > 0 && cfg.Width > opts.MaxWidth
	if !convert && !resize {
		return &book.CoverAsset{Data: data, MediaType: mediaType}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover: %w", err)
	}
	if resize {
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}

	if mediaType == mediaPNG && !convert {
		out, err := encodePNG(img)
		if err != nil {
			return nil, fmt.Errorf("png encode failed: %w", err)
		}
		return &book.CoverAsset{Data: out, MediaType: mediaPNG}, nil
	}

	quality := opts.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = defaultCoverJPEGQuality
	}
	out, err := encodeJPEG(flatten(img), quality)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return &book.CoverAsset{Data: out, MediaType: mediaJPEG}, nil
}
