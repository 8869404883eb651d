package models

// StudySection is the generated study material for one slide: the rasterized
// page plus the AI summary. Image may be empty when the summary was loaded
// from persisted backend storage and the page has not been captured yet.
type StudySection struct {
	SlideNumber int    `json:"slide_number"`
	Image       []byte `json:"-"`
	Summary     string `json:"summary"`
}

// HasImage reports whether the slide's raster image has been captured.
func (s StudySection) HasImage() bool {
	return len(s.Image) > 0
}
