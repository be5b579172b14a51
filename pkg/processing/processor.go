package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/watch-reader/pkg/types"
)

// Processor handles image processing operations
type Processor struct {
	minImageSize int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{minImageSize: 1}
}

// NewProcessorWithMinSize creates a processor that rejects stills smaller than minSize on either side
func NewProcessorWithMinSize(minSize int) *Processor {
	return &Processor{minImageSize: minSize}
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := p.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Decode decodes an image from byte data with WebP support
func (p *Processor) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image: empty buffer")
	}

	// Try registered decoders first
	if img, err := imaging.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Try WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// NormalizeRotation maps any multiple of 90 onto 0, 90, 180 or 270
func NormalizeRotation(degrees int) (int, error) {
	d := ((degrees % 360) + 360) % 360
	if d%90 != 0 {
		return 0, fmt.Errorf("unsupported rotation: %d degrees", degrees)
	}
	return d, nil
}

// Rotate turns img clockwise by degrees so that a sensor-oriented frame becomes upright
func (p *Processor) Rotate(img image.Image, degrees int) (image.Image, error) {
	d, err := NormalizeRotation(degrees)
	if err != nil {
		return nil, err
	}

	// imaging rotates counter-clockwise
	switch d {
	case 90:
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return img, nil
	}
}

// Normalize decodes a raw capture and applies its corrective rotation
func (p *Processor) Normalize(raw types.RawCapture) (types.CapturedImage, error) {
	img, err := p.Decode(raw.Data)
	if err != nil {
		return types.CapturedImage{}, fmt.Errorf("failed to decode capture: %w", err)
	}

	img, err = p.Rotate(img, raw.RotationDegrees)
	if err != nil {
		return types.CapturedImage{}, err
	}

	if err := p.ValidateImage(img); err != nil {
		return types.CapturedImage{}, err
	}

	b := img.Bounds()
	return types.CapturedImage{
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: raw.CapturedAt,
	}, nil
}

// ValidateImage checks if an image meets minimum requirements
func (p *Processor) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	if bounds.Dx() < p.minImageSize || bounds.Dy() < p.minImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), p.minImageSize)
	}
	return nil
}

// PrepareImageForModel encodes an image for sending to vision models and returns the bytes with their MIME type
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) ([]byte, string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// Annotate draws the display line into the bottom-left corner of a copy of img
func (p *Processor) Annotate(img image.Image, text string) image.Image {
	nrgba := imaging.Clone(img)
	bounds := nrgba.Bounds()

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  nrgba,
		Src:  image.NewUniform(color.NRGBA{255, 204, 0, 255}),
		Face: face,
	}

	// dark band behind the text for contrast
	band := face.Metrics().Height.Ceil() + 8
	y0 := maxInt(bounds.Max.Y-band, bounds.Min.Y)
	for y := y0; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			nrgba.SetNRGBA(x, y, color.NRGBA{0, 0, 0, 255})
		}
	}

	d.Dot = fixed.P(bounds.Min.X+4, bounds.Max.Y-6)
	d.DrawString(text)

	return nrgba
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
