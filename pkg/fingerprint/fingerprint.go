// Package fingerprint derives compact similarity fingerprints from camera
// frames so that near-identical frames collapse onto one cache key.
//
// A fingerprint is a 64-bit average hash: the decoded frame is reduced to
// an 8x8 grid of mean luminance values and each bit records whether its
// cell is brighter than the grid mean. Small sensor noise and compression
// artifacts leave the hash unchanged or within a few bits, while a real
// scene change flips a large share of the bits.
package fingerprint

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math/bits"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrInvalidFrame indicates the frame payload could not be decoded.
// Frames that fail with this error must not be cached or sent upstream.
var ErrInvalidFrame = errors.New("invalid frame")

// Value is a 64-bit perceptual fingerprint of a frame.
type Value uint64

// String renders the fingerprint as fixed-width hex for keys and logs.
func (v Value) String() string {
	return fmt.Sprintf("%016x", uint64(v))
}

// grid is the downsample resolution; one hash bit per cell.
const grid = 8

// MaxDistance is the largest possible distance between two fingerprints.
const MaxDistance = grid * grid

// Distance returns the Hamming distance between two fingerprints, in [0,64].
func Distance(a, b Value) int {
	return bits.OnesCount64(uint64(a) ^ uint64(b))
}

// Engine computes fingerprints and compares them against a configured
// similarity threshold. The zero threshold means only identical hashes
// are treated as the same scene.
type Engine struct {
	threshold int
}

// New creates an Engine. The threshold is the maximum Hamming distance at
// which two fingerprints are still considered the same scene.
func New(threshold int) (*Engine, error) {
	if threshold < 0 || threshold > MaxDistance {
		return nil, fmt.Errorf("similarity threshold must be in [0,%d] (got %d)", MaxDistance, threshold)
	}
	return &Engine{threshold: threshold}, nil
}

// Threshold returns the configured similarity threshold.
func (e *Engine) Threshold() int {
	return e.threshold
}

// Similar reports whether two fingerprints are within the similarity
// threshold of each other.
func (e *Engine) Similar(a, b Value) bool {
	return Distance(a, b) <= e.threshold
}

// Fingerprint computes the fingerprint of an encoded frame. It is pure and
// deterministic: the same pixel content always yields the same value,
// regardless of the container format. Undecodable input fails with
// ErrInvalidFrame.
func (e *Engine) Fingerprint(frame []byte) (Value, error) {
	if len(frame) == 0 {
		return 0, fmt.Errorf("%w: empty payload", ErrInvalidFrame)
	}

	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}

	return hashImage(img), nil
}

// hashImage reduces the image to an 8x8 grid of mean luminance values and
// sets one bit per cell brighter than the grid mean. A uniform frame
// legitimately hashes to zero; it is cached like any other.
func hashImage(img image.Image) Value {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var cells [grid * grid]uint64
	var total uint64

	for gy := 0; gy < grid; gy++ {
		y0, y1 := cellRange(b.Min.Y, h, gy)
		for gx := 0; gx < grid; gx++ {
			x0, x1 := cellRange(b.Min.X, w, gx)

			var sum, count uint64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					sum += luminance(img, x, y)
					count++
				}
			}
			mean := sum / count
			cells[gy*grid+gx] = mean
			total += mean
		}
	}

	mean := total / (grid * grid)

	var v uint64
	for i, cell := range cells {
		if cell > mean {
			v |= 1 << uint(i)
		}
	}
	return Value(v)
}

// cellRange maps grid cell i onto a half-open pixel range. Images smaller
// than the grid reuse pixels across cells so every cell is non-empty.
func cellRange(min, size, i int) (int, int) {
	lo := min + i*size/grid
	hi := min + (i+1)*size/grid
	if hi <= lo {
		hi = lo + 1
	}
	if hi > min+size {
		hi = min + size
		if lo >= hi {
			lo = hi - 1
		}
	}
	return lo, hi
}

// luminance returns the Rec. 601 luma of a pixel in 16-bit range.
func luminance(img image.Image, x, y int) uint64 {
	r, g, b, _ := img.At(x, y).RGBA()
	return (299*uint64(r) + 587*uint64(g) + 114*uint64(b)) / 1000
}
