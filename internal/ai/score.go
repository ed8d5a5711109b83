package ai

import "math"

// NeutralScore is used when no signal is available for a frame.
const NeutralScore = 5.0

// NoFaceScore is the local score of a frame with no detected faces.
const NoFaceScore = 3.0

// Bounds of each vision dimension.
const (
	MinSubScore = 1.0
	MaxSubScore = 10.0
)

// Merge weights applied when both signals exist.
const (
	RemoteWeight = 0.6
	LocalWeight  = 0.4
)

// VisionScore is one image's rating from the remote vision model. Each
// dimension is on a 1-10 scale.
type VisionScore struct {
	ImageIndex  int     `json:"image_index"`
	Energy      float64 `json:"energy"`
	Composition float64 `json:"composition"`
	People      float64 `json:"people"`
	Emotion     float64 `json:"emotion"`
	Description string  `json:"description"`
}

// InRange reports whether every dimension is within the 1-10 scale.
func (v VisionScore) InRange() bool {
	for _, d := range []float64{v.Energy, v.Composition, v.People, v.Emotion} {
		if math.IsNaN(d) || d < MinSubScore || d > MaxSubScore {
			return false
		}
	}
	return true
}

// FaceResult is what the local detector saw in one image.
type FaceResult struct {
	Faces    int
	SmileAvg float64 // 0..1 over detected faces
}

// LocalScore turns a face count and mean smile probability into a 0-10
// score. Faces are weighted 0.4 and smiles 0.6.
func LocalScore(faces int, smileAvg float64) float64 {
	if faces <= 0 {
		return NoFaceScore
	}
	face := math.Min(8, 2+float64(min(faces, 4))*1.5)
	smile := clamp(smileAvg, 0, 1) * 10
	return 0.4*face + 0.6*smile
}

// RemoteScore averages the four vision dimensions.
func RemoteScore(v VisionScore) float64 {
	return (v.Energy + v.Composition + v.People + v.Emotion) / 4
}

// Merge combines the two signals. Either may be nil.
func Merge(remote, local *float64) float64 {
	switch {
	case remote != nil && local != nil:
		return RemoteWeight*(*remote) + LocalWeight*(*local)
	case remote != nil:
		return *remote
	case local != nil:
		return *local
	default:
		return NeutralScore
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
