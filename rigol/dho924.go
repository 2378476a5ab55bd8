package rigol

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/synteira/rflab/imgcrop"
	"github.com/synteira/rflab/scpi"
	"github.com/synteira/rflab/synth"
)

// ScreenshotPrefix starts the name of every saved screenshot
const ScreenshotPrefix = "RigolDS"

// maxScreenshots bounds the RigolDS<n> numbering
const maxScreenshots = 127

var screenFormats = map[string]string{"png": "PNG", "bmp": "BMP", "jpg": "JPG"}

// DHO924 is an oscilloscope
type DHO924 struct {
	scpi.SCPI
}

// NewDHO924 connects to the scope at addr
func NewDHO924(addr string) (*DHO924, error) {
	s, err := NewSCPI(addr)
	return &DHO924{s}, err
}

// Run starts continuous acquisition
func (o *DHO924) Run() error {
	return o.Write(":RUN")
}

// Stop freezes the display
func (o *DHO924) Stop() error {
	return o.Write(":STOP")
}

// Single arms a single trigger
func (o *DHO924) Single() error {
	return o.Write(":SINGle")
}

// Screenshot returns the display as an image file in format png, bmp or jpg
func (o *DHO924) Screenshot(format string) ([]byte, error) {
	f, ok := screenFormats[strings.ToLower(format)]
	if !ok {
		return nil, &synth.OptionError{Option: "image format", Value: format, Allowed: []string{"png", "bmp", "jpg"}}
	}
	return o.ReadBlock(":DISPlay:DATA?", f)
}

// NextScreenshotName returns the first RigolDS<n> in dir that no file uses
// as its stem, whatever the extension, with ext appended
func NextScreenshotName(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			name := e.Name()
			taken[strings.TrimSuffix(name, filepath.Ext(name))] = true
		}
	}
	for n := 0; n < maxScreenshots; n++ {
		stem := ScreenshotPrefix + strconv.Itoa(n)
		if !taken[stem] {
			return filepath.Join(dir, stem+"."+strings.ToLower(ext)), nil
		}
	}
	return "", fmt.Errorf("%s already holds %d screenshots", dir, maxScreenshots)
}

// SaveScreenshot captures the display into the next free name in dir and
// returns the path.  When crop is true the menus are cut away.
func (o *DHO924) SaveScreenshot(dir, format string, crop bool) (string, error) {
	img, err := o.Screenshot(format)
	if err != nil {
		return "", err
	}
	path, err := NextScreenshotName(dir, format)
	if err != nil {
		return "", err
	}
	if err = os.WriteFile(path, img, 0o644); err != nil {
		return "", err
	}
	if crop {
		err = imgcrop.File(path, imgcrop.ScreenBox)
	}
	return path, err
}
