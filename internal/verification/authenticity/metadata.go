package authenticity

import (
	"bytes"
	"regexp"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

const maxExif = 25

const (
	exifMissingJPEG     = 15
	exifUnreadable      = 10
	exifGeneratorMarker = 25
	exifNoCamera        = 10
)

// generatorKeywords matches names of image generators and related terms.
// The short tokens only count as whole words.
var generatorKeywords = regexp.MustCompile(`(?i)midjourney|dall-e|dalle|stable diffusion|\bai\b|generated|synthetic|deepfake|\bgan\b|diffusion|neural|automatic1111|invoke`)

var jpegMagic = []byte{0xFF, 0xD8, 0xFF}

func scoreMetadata(in *sample) int {
	isJPEG := in.format == "jpeg" || bytes.HasPrefix(in.data, jpegMagic)

	x, err := exif.Decode(bytes.NewReader(in.data))
	if err != nil {
		score := exifUnreadable
		if isJPEG {
			score = exifMissingJPEG
		}
		if bytes.HasPrefix(in.data, pngMagic) && textChunksMention(in.data, generatorKeywords) {
			score += exifGeneratorMarker
		}
		return score
	}

	score := 0
	w := &markerWalker{}
	_ = x.Walk(w)
	if w.found {
		score += exifGeneratorMarker
	}

	_, makeErr := x.Get(exif.Make)
	_, modelErr := x.Get(exif.Model)
	if makeErr != nil && modelErr != nil {
		score += exifNoCamera
	}
	return score
}

// markerWalker looks for a generator keyword in any string tag
type markerWalker struct {
	found bool
}

func (w *markerWalker) Walk(_ exif.FieldName, tag *tiff.Tag) error {
	if w.found || tag == nil || tag.Format() != tiff.StringVal {
		return nil
	}
	if v, err := tag.StringVal(); err == nil && generatorKeywords.MatchString(v) {
		w.found = true
	}
	return nil
}
