package processor

import (
	"bytes"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// Metadata is what the EXIF block of a source image says about it. Encoded
// output never carries any of it.
type Metadata struct {
	Orientation  int
	HasGPS       bool
	GPSTags      int
	Camera       string
	HasTimestamp bool
	SerialTags   int
}

// Identifying reports whether the source leaks location or device details.
func (m Metadata) Identifying() bool {
	return m.HasGPS || m.Camera != "" || m.SerialTags > 0
}

// ReadMetadata scans payload for EXIF tags. Payloads without EXIF, or with an
// unreadable block, yield the zero report with Orientation 1.
func ReadMetadata(payload []byte) Metadata {
	md := Metadata{Orientation: 1}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(bytes.NewReader(payload), nil, true)
	if err != nil {
		return md
	}

	orientationSeen := false
	for _, tag := range tags {
		name := tag.TagName

		switch {
		case name == "Orientation":
			// IFD1 holds the embedded thumbnail; only the primary image counts.
			if orientationSeen || strings.HasPrefix(tag.IfdPath, "IFD1") {
				continue
			}
			if o := orientationValue(tag.Value); o > 0 {
				md.Orientation = o
				orientationSeen = true
			}
		case strings.HasPrefix(name, "GPS") || strings.Contains(tag.IfdPath, "GPS"):
			md.HasGPS = true
			md.GPSTags++
		case name == "Model" || name == "CameraModelName":
			if md.Camera == "" {
				md.Camera = strings.TrimSpace(tag.Formatted)
			}
		case name == "DateTimeOriginal" || name == "DateTimeDigitized" || name == "DateTime":
			md.HasTimestamp = true
		case strings.Contains(strings.ToLower(name), "serial"):
			md.SerialTags++
		}
	}
	return md
}

func orientationValue(v any) int {
	switch v := v.(type) {
	case []uint16:
		if len(v) > 0 && v[0] >= 1 && v[0] <= 8 {
			return int(v[0])
		}
	case uint16:
		if v >= 1 && v <= 8 {
			return int(v)
		}
	}
	return 0
}
