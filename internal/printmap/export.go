package printmap

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/go-pdf/fpdf"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported output format")
	ErrEncode            = errors.New("encode print")
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatTIFF Format = "tiff"
	FormatBMP  Format = "bmp"
	FormatWebP Format = "webp"
	FormatGIF  Format = "gif"

	DefaultFormat = FormatPDF
)

var contentTypes = map[Format]string{
	FormatPDF:  "application/pdf",
	FormatPNG:  "image/png",
	FormatJPEG: "image/jpeg",
	FormatTIFF: "image/tiff",
	FormatBMP:  "image/bmp",
	FormatWebP: "image/webp",
	FormatGIF:  "image/gif",
}

// ParseFormat accepts a format name or common extension, case-insensitive.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(s, ".")))
	switch f {
	case "jpg":
		f = FormatJPEG
	case "tif":
		f = FormatTIFF
	case "":
		return DefaultFormat, nil
	}
	if _, ok := contentTypes[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return f, nil
}

func (f Format) ContentType() string { return contentTypes[f] }

func (f Format) Ext() string { return "." + string(f) }

// Artifact is an encoded print on disk. The caller owns the file.
type Artifact struct {
	Path        string
	Format      Format
	ContentType string
	Size        int64
}

func (a *Artifact) Filename() string { return "map" + a.Format.Ext() }

func (a *Artifact) Remove() error {
	if a == nil || a.Path == "" {
		return nil
	}
	return os.Remove(a.Path)
}

// Export encodes img into a new temp file.
func Export(img image.Image, format Format, dpi float64) (*Artifact, error) {
	if _, ok := contentTypes[format]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	f, err := os.CreateTemp("", "geos-print-*"+format.Ext())
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	w := bufio.NewWriter(f)
	encErr := Encode(w, img, format, dpi)
	if encErr == nil {
		encErr = w.Flush()
	}
	closeErr := f.Close()
	if encErr == nil {
		encErr = closeErr
	}
	if encErr != nil {
		_ = os.Remove(path)
		if errors.Is(encErr, ErrEncode) {
			return nil, encErr
		}
		return nil, fmt.Errorf("%w: %w", ErrEncode, encErr)
	}

	st, err := os.Stat(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	return &Artifact{Path: path, Format: format, ContentType: format.ContentType(), Size: st.Size()}, nil
}

// Encode writes img in format. PNG and JPEG carry dpi as pixel density, PDF
// pages are sized so that the image prints at dpi.
func Encode(w io.Writer, img image.Image, format Format, dpi float64) error {
	var err error
	switch format {
	case FormatPDF:
		err = encodePDF(w, img, dpi)
	case FormatPNG:
		err = encodePNG(w, img, dpi)
	case FormatJPEG:
		err = encodeJPEG(w, img, dpi)
	case FormatTIFF:
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatWebP:
		err = webp.Encode(w, img, &webp.Options{Quality: 100})
	case FormatGIF:
		err = gif.Encode(w, img, &gif.Options{NumColors: 256})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, format, err)
	}
	return nil
}

func encodePDF(w io.Writer, img image.Image, dpi float64) error {
	b := img.Bounds()
	dpmm := DotsPerMM(dpi)
	wd, ht := float64(b.Dx())/dpmm, float64(b.Dy())/dpmm

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}

	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: wd, Ht: ht},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("map", opts, &buf)
	doc.ImageOptions("map", 0, 0, wd, ht, false, opts, 0, "")
	return doc.Output(w)
}

func encodePNG(w io.Writer, img image.Image, dpi float64) error {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return err
	}
	_, err := w.Write(withPHYs(buf.Bytes(), dpi))
	return err
}

// withPHYs inserts a pHYs chunk right after IHDR (8 byte signature + 25 byte
// IHDR chunk).
func withPHYs(data []byte, dpi float64) []byte {
	const ihdrEnd = 33
	if dpi <= 0 || len(data) < ihdrEnd {
		return data
	}
	ppm := uint32(math.Round(dpi / 0.0254))

	chunk := make([]byte, 0, 21)
	chunk = binary.BigEndian.AppendUint32(chunk, 9)
	chunk = append(chunk, "pHYs"...)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = binary.BigEndian.AppendUint32(chunk, ppm)
	chunk = append(chunk, 1) // unit: meter
	chunk = binary.BigEndian.AppendUint32(chunk, crc32.ChecksumIEEE(chunk[4:]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, data[ihdrEnd:]...)
}

func encodeJPEG(w io.Writer, img image.Image, dpi float64) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		return err
	}
	_, err := w.Write(withJFIF(buf.Bytes(), dpi))
	return err
}

// withJFIF inserts a JFIF APP0 segment carrying the density after SOI. Go's
// encoder writes no APP0 of its own.
func withJFIF(data []byte, dpi float64) []byte {
	if dpi <= 0 || len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return data
	}
	d := uint16(min(math.Round(dpi), math.MaxUint16))
	seg := []byte{0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0x02, 0x01}
	seg = binary.BigEndian.AppendUint16(seg, d)
	seg = binary.BigEndian.AppendUint16(seg, d)
	seg = append(seg, 0x00, 0x00)

	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)
	return append(out, data[2:]...)
}
