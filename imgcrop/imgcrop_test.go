package imgcrop_test

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/synteira/rflab/imgcrop"
)

var red = color.RGBA{R: 255, A: 255}

func screenshot() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1024, 600))
	draw.Draw(img, img.Bounds(), image.Black, image.Point{}, draw.Src)
	img.Set(12, 92, red)
	return img
}

func writeImage(t *testing.T, path, format string, img image.Image) {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := imgcrop.Encode(buf, img, format); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFileKeepsFormat(t *testing.T) {
	for _, format := range []string{"png", "bmp"} {
		path := filepath.Join(t.TempDir(), "RigolDS0."+format)
		writeImage(t, path, format, screenshot())
		if err := imgcrop.File(path, imgcrop.ScreenBox); err != nil {
			t.Fatal(err)
		}
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		img, got, err := imgcrop.Decode(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if got != format {
			t.Errorf("expected %s got %s", format, got)
		}
		b := img.Bounds()
		if b.Dx() != 1000 || b.Dy() != 416 {
			t.Errorf("%s: expected 1000x416 got %dx%d", format, b.Dx(), b.Dy())
		}
		r, _, _, _ := img.At(b.Min.X, b.Min.Y).RGBA()
		if r != 0xFFFF {
			t.Errorf("%s: expected the top left pixel of the box to be red", format)
		}
	}
}

func TestCropClipsToBounds(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 50))
	out, err := imgcrop.Crop(img, image.Rect(90, 40, 200, 200))
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds() != image.Rect(90, 40, 100, 50) {
		t.Errorf("unexpected bounds %v", out.Bounds())
	}
	if _, err := imgcrop.Crop(img, image.Rect(200, 200, 300, 300)); err != imgcrop.ErrEmptyCrop {
		t.Errorf("expected ErrEmptyCrop got %v", err)
	}
}

func TestEncodeUnknown(t *testing.T) {
	if err := imgcrop.Encode(&bytes.Buffer{}, screenshot(), "gif"); err == nil {
		t.Error("expected gif to be rejected")
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.PNG", "c.jpg"} {
		os.WriteFile(filepath.Join(dir, name), nil, 0o644)
	}
	os.Mkdir(filepath.Join(dir, "d.png"), 0o755)
	got, err := imgcrop.Scan(dir, "png")
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{filepath.Join(dir, "a.PNG"), filepath.Join(dir, "b.png")}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}
}
