// Package identify resolves animal identity from a captured frame via an
// ordered fallback chain of ear-tag OCR, QR decode and muzzle-print match.
package identify

import (
	"context"

	"github.com/herdwatch/herdwatch-go/internal/imagesource"
)

// Method names one identification technique.
type Method string

const (
	MethodOCREarTag   Method = "ocr_ear_tag"
	MethodOCRQRCode   Method = "ocr_qr_code"
	MethodMuzzlePrint Method = "muzzle_print"
	MethodNone        Method = "none"
)

func (m Method) String() string { return string(m) }

// Attempt records the outcome of one method in the chain.
type Attempt struct {
	Method    Method `json:"method"`
	Succeeded bool   `json:"succeeded"`
	Detail    string `json:"detail,omitempty"`
}

// Result is the outcome of one identification pass.
// Identified implies a non-empty TagID and a method other than none.
type Result struct {
	Identified        bool      `json:"identified"`
	Method            Method    `json:"method"`
	TagID             string    `json:"tag_id,omitempty"`
	Confidence        float64   `json:"confidence"`
	NeedsManualReview bool      `json:"needs_manual_review"`
	MethodsTried      []Attempt `json:"methods_tried"`
}

// TagReading is a successful ear-tag OCR extraction.
type TagReading struct {
	Text       string
	Confidence float64
}

// QRPayload is the structured content of a livestock identity QR code.
type QRPayload struct {
	AnimalID         string `json:"animal_id"`
	TagID            string `json:"tag_id"`
	FarmID           string `json:"farm_id"`
	RegistrationDate string `json:"registration_date"`
}

// QRReading is a successful QR decode.
type QRReading struct {
	Payload    QRPayload
	Confidence float64
}

// MuzzleReference is one registered muzzle print available for matching.
type MuzzleReference struct {
	AnimalID uint
	TagID    string
	Hash     string
}

// MuzzleMatch is a successful muzzle-print lookup.
type MuzzleMatch struct {
	Reference  MuzzleReference
	Confidence float64
}

// TagReader extracts ear-tag text from a frame. A frame with no readable
// tag returns (nil, nil); errors are reserved for engine failures.
type TagReader interface {
	ReadEarTag(ctx context.Context, frame *imagesource.Frame) (*TagReading, error)
}

// QRDecoder extracts a QR identity payload from a frame. A frame with no
// QR code returns (nil, nil).
type QRDecoder interface {
	DecodeQR(ctx context.Context, frame *imagesource.Frame) (*QRReading, error)
}

// MuzzleMatcher matches a frame against registered muzzle prints. No
// match returns (nil, nil).
type MuzzleMatcher interface {
	MatchMuzzle(ctx context.Context, frame *imagesource.Frame, refs []MuzzleReference) (*MuzzleMatch, error)
}

// ReferenceStore supplies the registered muzzle prints for matching.
type ReferenceStore interface {
	MuzzleReferences(ctx context.Context) ([]MuzzleReference, error)
}
