package identify

import (
	"context"
	"log/slog"

	"github.com/herdwatch/herdwatch-go/internal/conf"
	"github.com/herdwatch/herdwatch-go/internal/imagesource"
	"github.com/herdwatch/herdwatch-go/internal/logging"
)

// Muzzle matches below this confidence always require manual review.
const muzzleReviewThreshold = 0.8

// Options selects which methods the chain attempts.
type Options struct {
	UseOCR    bool
	UseMuzzle bool
}

// Resolver runs the identification chain: ear-tag OCR, then QR decode,
// then muzzle-print match. The chain short-circuits on the first success;
// a later method is never attempted once an earlier one succeeds, even if
// it would score higher. OCR is cheapest and muzzle matching the most
// expensive, so the ordering is fixed.
type Resolver struct {
	tagReader     TagReader
	qrDecoder     QRDecoder
	muzzleMatcher MuzzleMatcher
	refs          ReferenceStore

	ocrReviewThreshold float64
	log                *slog.Logger
}

// NewResolver wires the capabilities into a resolver. The OCR review
// threshold comes from configuration; refs may be nil when muzzle
// matching is never used.
func NewResolver(settings *conf.Settings, tagReader TagReader, qrDecoder QRDecoder, muzzleMatcher MuzzleMatcher, refs ReferenceStore) *Resolver {
	return &Resolver{
		tagReader:          tagReader,
		qrDecoder:          qrDecoder,
		muzzleMatcher:      muzzleMatcher,
		refs:               refs,
		ocrReviewThreshold: settings.Thresholds.OCRConfidence,
		log:                logging.ForService("identify"),
	}
}

// Identify runs the chain over one frame. Per-method failure is a normal
// outcome, recorded in MethodsTried while the chain proceeds. When every
// attempted method fails the result is a negative identification with
// NeedsManualReview set, not an error.
func (r *Resolver) Identify(ctx context.Context, frame *imagesource.Frame, opts Options) *Result {
	result := &Result{Method: MethodNone}

	if opts.UseOCR && r.tagReader != nil {
		reading, err := r.tagReader.ReadEarTag(ctx, frame)
		switch {
		case err != nil:
			r.log.Warn("ear tag OCR failed", "frame", frame.ID, "error", err)
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodOCREarTag, Detail: err.Error()})
		case reading == nil:
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodOCREarTag, Detail: "no readable tag"})
		default:
			result.Identified = true
			result.Method = MethodOCREarTag
			result.TagID = reading.Text
			result.Confidence = reading.Confidence
			result.NeedsManualReview = reading.Confidence < r.ocrReviewThreshold
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodOCREarTag, Succeeded: true})
			return result
		}
	}

	if opts.UseOCR && r.qrDecoder != nil {
		reading, err := r.qrDecoder.DecodeQR(ctx, frame)
		switch {
		case err != nil:
			r.log.Warn("QR decode failed", "frame", frame.ID, "error", err)
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodOCRQRCode, Detail: err.Error()})
		case reading == nil:
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodOCRQRCode, Detail: "no QR code detected"})
		default:
			// QR decode is treated as unambiguous.
			result.Identified = true
			result.Method = MethodOCRQRCode
			result.TagID = reading.Payload.TagID
			result.Confidence = reading.Confidence
			result.NeedsManualReview = false
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodOCRQRCode, Succeeded: true})
			return result
		}
	}

	if opts.UseMuzzle && r.muzzleMatcher != nil {
		match, err := r.matchMuzzle(ctx, frame)
		switch {
		case err != nil:
			r.log.Warn("muzzle match failed", "frame", frame.ID, "error", err)
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodMuzzlePrint, Detail: err.Error()})
		case match == nil:
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodMuzzlePrint, Detail: "no matching muzzle print"})
		default:
			result.Identified = true
			result.Method = MethodMuzzlePrint
			result.TagID = match.Reference.TagID
			result.Confidence = match.Confidence
			result.NeedsManualReview = match.Confidence < muzzleReviewThreshold
			result.MethodsTried = append(result.MethodsTried,
				Attempt{Method: MethodMuzzlePrint, Succeeded: true})
			return result
		}
	}

	result.NeedsManualReview = true
	result.Confidence = 0.0
	return result
}

func (r *Resolver) matchMuzzle(ctx context.Context, frame *imagesource.Frame) (*MuzzleMatch, error) {
	var refs []MuzzleReference
	if r.refs != nil {
		var err error
		refs, err = r.refs.MuzzleReferences(ctx)
		if err != nil {
			return nil, err
		}
	}
	return r.muzzleMatcher.MatchMuzzle(ctx, frame, refs)
}
