// Package vision implements animal detection over captured frames.
package vision

// Species is the closed detection vocabulary.
type Species string

const (
	SpeciesCattle  Species = "cattle"
	SpeciesGoat    Species = "goat"
	SpeciesSheep   Species = "sheep"
	SpeciesPig     Species = "pig"
	SpeciesHorse   Species = "horse"
	SpeciesPoultry Species = "poultry"
	SpeciesOther   Species = "other"
)

// AnimalClasses lists the species the heuristic backend draws from.
var AnimalClasses = []Species{
	SpeciesCattle, SpeciesGoat, SpeciesSheep,
	SpeciesPig, SpeciesHorse, SpeciesPoultry,
}

// Valid reports whether the species is in the closed vocabulary.
func (s Species) Valid() bool {
	switch s {
	case SpeciesCattle, SpeciesGoat, SpeciesSheep, SpeciesPig,
		SpeciesHorse, SpeciesPoultry, SpeciesOther:
		return true
	}
	return false
}

func (s Species) String() string { return string(s) }

// BoundingBox is a normalized rectangle, coordinates in [0,1] relative to
// the image dimensions.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Valid reports whether the box is normalized and non-degenerate.
func (b BoundingBox) Valid() bool {
	inUnit := func(v float64) bool { return v >= 0 && v <= 1 }
	return inUnit(b.X1) && inUnit(b.Y1) && inUnit(b.X2) && inUnit(b.Y2) &&
		b.X1 < b.X2 && b.Y1 < b.Y2
}

// Detection is one detected animal region.
type Detection struct {
	ID         string      `json:"detection_id"`
	Box        BoundingBox `json:"bounding_box"`
	Species    Species     `json:"species"`
	Confidence float64     `json:"confidence"`
}

// Result is the outcome of one detection pass over a frame.
type Result struct {
	Detections       []Detection `json:"detected_animals"`
	TotalDetected    int         `json:"total_detected"`
	ProcessingTimeMs float64     `json:"processing_time_ms"`
	ModelVersion     string      `json:"model_version"`
	UsingRealAI      bool        `json:"using_real_ai"`
}
