// Package imageproc turns image files into model input tensors.
package imageproc

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
)

// DefaultImageSize is the square input resolution the model expects.
const DefaultImageSize = 224

// Layout is the memory order of the tensor after the batch dimension.
type Layout string

const (
	// LayoutNHWC is [batch, height, width, channel], used by Keras exports.
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW is [batch, channel, height, width], used by PyTorch exports.
	LayoutNCHW Layout = "nchw"
)

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case LayoutNHWC, LayoutNCHW:
		return l, nil
	default:
		return "", fmt.Errorf("unknown tensor layout %q", s)
	}
}

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"lanczos":  resize.Lanczos3,
}

// ParseInterpolation maps an interpolation name to a resize function.
func ParseInterpolation(s string) (resize.InterpolationFunction, error) {
	f, ok := interpolations[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown interpolation %q", s)
	}
	return f, nil
}

// Options controls preprocessing.
type Options struct {
	Size          int
	Layout        Layout
	Interpolation resize.InterpolationFunction
}

// DefaultOptions returns 224x224 NHWC with nearest-neighbour resampling.
func DefaultOptions() Options {
	return Options{
		Size:          DefaultImageSize,
		Layout:        LayoutNHWC,
		Interpolation: resize.NearestNeighbor,
	}
}

// Tensor is a dense float32 tensor with a leading batch dimension of 1.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Len returns the number of elements described by Shape.
func (t *Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}

// DecodeError reports an image that could not be opened or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Preprocess decodes the image at path and converts it to a model input tensor.
func Preprocess(path string, opts Options) (*Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, decodeFailure(path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, decodeFailure(path, err)
	}

	return PreprocessImage(img, opts), nil
}

func decodeFailure(path string, err error) error {
	return errors.New(&DecodeError{Path: path, Err: err}).
		Component("imageproc").
		Category(errors.CategoryImageDecode).
		Build()
}

// scale resizes img to size x size. Nearest-neighbour point-samples the source
// at pixel centres; nfnt's variant averages a window when downscaling.
func scale(img image.Image, size int, interp resize.InterpolationFunction) image.Image {
	if interp == resize.NearestNeighbor {
		dst := image.NewNRGBA(image.Rect(0, 0, size, size))
		draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
		return dst
	}
	return resize.Resize(uint(size), uint(size), img, interp)
}

// PreprocessImage resizes img and scales each RGB channel to [0, 1].
// Alpha is discarded, not premultiplied.
func PreprocessImage(img image.Image, opts Options) *Tensor {
	if opts.Size <= 0 {
		opts.Size = DefaultImageSize
	}
	if opts.Layout == "" {
		opts.Layout = LayoutNHWC
	}

	resized := scale(img, opts.Size, opts.Interpolation)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			r := float32(c.R) / 255.0
			g := float32(c.G) / 255.0
			b := float32(c.B) / 255.0

			pixel := y*width + x
			if opts.Layout == LayoutNCHW {
				data[pixel] = r
				data[plane+pixel] = g
				data[2*plane+pixel] = b
			} else {
				data[3*pixel] = r
				data[3*pixel+1] = g
				data[3*pixel+2] = b
			}
		}
	}

	shape := []int64{1, int64(height), int64(width), 3}
	if opts.Layout == LayoutNCHW {
		shape = []int64{1, 3, int64(height), int64(width)}
	}
	return &Tensor{Shape: shape, Data: data}
}
