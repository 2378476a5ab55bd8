// Package imgcrop trims instrument screenshots down to the plot area.
// PNG, JPEG, BMP and TIFF files are understood, and a cropped file is
// written back in the format it was read in.
package imgcrop

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ScreenBox is the plot area of a 1024x600 Rigol oscilloscope screenshot,
// without the menu bars
var ScreenBox = image.Rect(12, 92, 1024-12, 600-92)

// ErrEmptyCrop is generated when the crop box misses the image
var ErrEmptyCrop = errors.New("crop box does not overlap the image")

type subImager interface {
	SubImage(image.Rectangle) image.Image
}

// Crop returns the part of img inside box.  The result keeps the
// coordinates of img, as SubImage does.
func Crop(img image.Image, box image.Rectangle) (image.Image, error) {
	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return nil, ErrEmptyCrop
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(box), nil
	}
	out := image.NewRGBA(box)
	draw.Draw(out, box, img, box.Min, draw.Src)
	return out, nil
}

// Decode reads an image in any of the supported formats and returns the
// format name
func Decode(r io.Reader) (image.Image, string, error) {
	return image.Decode(r)
}

// Encode writes img in the named format: png, jpeg, bmp or tiff
func Encode(w io.Writer, img image.Image, format string) error {
	switch strings.ToLower(format) {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff", "tif":
		return tiff.Encode(w, img, nil)
	}
	return fmt.Errorf("image format %q is not supported", format)
}

// File crops the image at path in place
func File(path string, box image.Rectangle) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	img, format, err := Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	cropped, err := Crop(img, box)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".crop-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err = Encode(tmp, cropped, format); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Scan lists the regular files in dir with extension ext, sorted by name.
// The comparison ignores case and a missing leading dot.
func Scan(dir, ext string) ([]string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ext) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
