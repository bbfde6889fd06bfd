package classify

import (
	"math"
	"strings"

	"vigil/internal/analyzer"
)

// Category is a semantic alert class. The set is closed and ordered by
// priority: eye safety dominates posture warnings.
type Category int

const (
	None Category = iota
	EyeClosed
	LateralTilt
	HeadDroop
	TooClose
)

func (c Category) String() string {
	switch c {
	case EyeClosed:
		return "eye_closed"
	case LateralTilt:
		return "lateral_tilt"
	case HeadDroop:
		return "head_droop"
	case TooClose:
		return "too_close"
	default:
		return "none"
	}
}

// Thresholds are the user-configurable classification knobs. They are read
// fresh on every tick from the settings store, never cached at controller
// construction.
type Thresholds struct {
	EyeConfidence float64 // minimum score for a closed-eye detection to count
	RollDeg       float64 // |roll| above this → LateralTilt
	YawDeg        float64 // |yaw| above this → HeadDroop
	PitchDeg      float64 // reserved for pitch-based rules
	Proximity     float64 // face box area fraction above this → TooClose
}

// DefaultThresholds returns the product defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EyeConfidence: 0.6,
		RollDeg:       25,
		YawDeg:        25,
		PitchDeg:      25,
		Proximity:     0.45,
	}
}

// Classify maps one analysis result to at most one alert category. Rules
// are evaluated in priority order and the first match wins.
func Classify(res *analyzer.Result, th Thresholds) Category {
	if res == nil {
		return None
	}

	if hasClosedEye(res, th.EyeConfidence) {
		return EyeClosed
	}

	if res.Position != nil {
		if math.Abs(res.Position.Roll) > th.RollDeg {
			return LateralTilt
		}
		if math.Abs(res.Position.Yaw) > th.YawDeg {
			return HeadDroop
		}
	}

	if th.Proximity > 0 && faceAreaFraction(res) > th.Proximity {
		return TooClose
	}

	return None
}

func hasClosedEye(res *analyzer.Result, minScore float64) bool {
	for _, d := range res.Detections {
		if !strings.EqualFold(d.Label, "eye") {
			continue
		}
		if d.State == analyzer.EyeClosed && float64(d.Score) >= minScore {
			return true
		}
	}
	return false
}

// faceAreaFraction returns the largest face (or eye) box area relative to
// the frame. When the analyzer omits frame dimensions the boxes are treated
// as normalized coordinates.
func faceAreaFraction(res *analyzer.Result) float64 {
	frameArea := float64(res.FrameWidth) * float64(res.FrameHeight)

	var largest float64
	for _, d := range res.Detections {
		label := strings.ToLower(d.Label)
		if label != "face" && label != "eye" {
			continue
		}
		area := float64(d.BBox.Area())
		if frameArea > 0 {
			area /= frameArea
		}
		if area > largest {
			largest = area
		}
	}
	return largest
}
