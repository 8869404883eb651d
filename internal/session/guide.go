package session

import (
	"sort"
	"sync"

	"slidesense/internal/models"
)

// studyGuide holds the per-slide sections keyed by slide number. Insertion
// order carries no meaning; lookups are always by slide number.
type studyGuide struct {
	mu       sync.RWMutex
	sections map[int]models.StudySection
}

func newStudyGuide() *studyGuide {
	return &studyGuide{
		sections: make(map[int]models.StudySection),
	}
}

func (g *studyGuide) has(slideNumber int) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.sections[slideNumber]
	return ok
}

func (g *studyGuide) get(slideNumber int) (models.StudySection, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	sec, ok := g.sections[slideNumber]
	return sec, ok
}

// put stores a section, overwriting any existing entry for the slide number.
func (g *studyGuide) put(sec models.StudySection) {
	if sec.SlideNumber < 1 {
		return
	}
	g.mu.Lock()
	g.sections[sec.SlideNumber] = sec
	g.mu.Unlock()
}

// load replaces the guide contents with a batch of persisted sections,
// the bootstrap path for a previously processed deck.
func (g *studyGuide) load(sections []models.StudySection) {
	g.mu.Lock()
	g.sections = make(map[int]models.StudySection, len(sections))
	for _, sec := range sections {
		if sec.SlideNumber >= 1 {
			g.sections[sec.SlideNumber] = sec
		}
	}
	g.mu.Unlock()
}

// replaceSummary swaps one section's summary text in place, leaving the
// image and every other section untouched.
func (g *studyGuide) replaceSummary(slideNumber int, summary string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	sec, ok := g.sections[slideNumber]
	if !ok {
		return false
	}
	sec.Summary = summary
	g.sections[slideNumber] = sec
	return true
}

// snapshot returns the sections ordered by slide number.
func (g *studyGuide) snapshot() []models.StudySection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.StudySection, 0, len(g.sections))
	for _, sec := range g.sections {
		out = append(out, sec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlideNumber < out[j].SlideNumber })
	return out
}

func (g *studyGuide) reset() {
	g.mu.Lock()
	g.sections = make(map[int]models.StudySection)
	g.mu.Unlock()
}
