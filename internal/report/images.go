package report

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/webp"
)

// ErrUnsupportedImage is returned for bytes that decode as no known format.
var ErrUnsupportedImage = errors.New("unsupported image data")

const jpegQuality = 85

// decodeImage decodes png, jpeg and gif through the registry and falls back
// to webp, which has no registered sniffer here.
func decodeImage(raw []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		decoded, webpErr := webp.Decode(bytes.NewReader(raw))
		if webpErr != nil {
			return nil, ErrUnsupportedImage
		}
		img = decoded
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: empty bounds", ErrUnsupportedImage)
	}
	return img, nil
}

// coverCrop returns the largest centred region of src with the aspect ratio
// w:h.
func coverCrop(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	cw, ch := sw, sw*h/w
	if ch > sh {
		ch = sh
		cw = sh * w / h
	}
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	x0 := src.Min.X + (sw-cw)/2
	y0 := src.Min.Y + (sh-ch)/2
	return image.Rect(x0, y0, x0+cw, y0+ch)
}

// normalizePhoto decodes raw, crops it to fill a w×h box and encodes the
// result as JPEG on a white background.
func normalizePhoto(raw []byte, w, h int) ([]byte, error) {
	img, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	stddraw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, stddraw.Src)
	xdraw.CatmullRom.Scale(canvas, canvas.Bounds(), img, coverCrop(img.Bounds(), w, h), xdraw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return out.Bytes(), nil
}

// normalizeLogo re-encodes any supported logo as PNG, keeping its size and
// transparency, and reports its pixel dimensions.
func normalizeLogo(raw []byte) ([]byte, image.Point, error) {
	img, err := decodeImage(raw)
	if err != nil {
		return nil, image.Point{}, err
	}
	// 8-bit NRGBA keeps the PNG embeddable by the PDF writer.
	flat := image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	stddraw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, stddraw.Src)

	var out bytes.Buffer
	if err := png.Encode(&out, flat); err != nil {
		return nil, image.Point{}, fmt.Errorf("encode logo: %w", err)
	}
	return out.Bytes(), flat.Bounds().Size(), nil
}

var (
	placeholderBackground = color.RGBA{R: 0xf8, G: 0xf9, B: 0xfa, A: 0xff}
	placeholderAccent     = color.RGBA{R: 0x28, G: 0xa7, B: 0x45, A: 0xff}
)

const (
	placeholderWidth  = 120
	placeholderHeight = 100
	placeholderBorder = 3
)

// placeholderLogo draws a 120×100 PNG badge carrying label and "LOGO".
func placeholderLogo(label string) ([]byte, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	stddraw.Draw(canvas, canvas.Bounds(), image.NewUniform(placeholderBackground), image.Point{}, stddraw.Src)

	accent := image.NewUniform(placeholderAccent)
	inner := canvas.Bounds().Inset(placeholderBorder)
	frame := inner.Inset(-1)
	for _, edge := range []image.Rectangle{
		image.Rect(frame.Min.X, frame.Min.Y, frame.Max.X, frame.Min.Y+placeholderBorder),
		image.Rect(frame.Min.X, frame.Max.Y-placeholderBorder, frame.Max.X, frame.Max.Y),
		image.Rect(frame.Min.X, frame.Min.Y, frame.Min.X+placeholderBorder, frame.Max.Y),
		image.Rect(frame.Max.X-placeholderBorder, frame.Min.Y, frame.Max.X, frame.Max.Y),
	} {
		stddraw.Draw(canvas, edge, accent, image.Point{}, stddraw.Src)
	}

	lines := strings.Fields(label)
	lines = append(lines, "LOGO")
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil() + 6
	top := (placeholderHeight-lineHeight*len(lines))/2 + face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		width := font.MeasureString(face, line).Ceil()
		d := &font.Drawer{
			Dst:  canvas,
			Src:  accent,
			Face: face,
			Dot:  fixed.P((placeholderWidth-width)/2, top+i*lineHeight),
		}
		d.DrawString(line)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, fmt.Errorf("encode placeholder logo: %w", err)
	}
	return out.Bytes(), nil
}
