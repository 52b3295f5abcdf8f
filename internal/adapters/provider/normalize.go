// Package provider is the boundary to the external vision collaborator
// that turns encoded video frames into per-frame observations.
package provider

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/offsidezero/varcore/internal/domain/calib"
	"github.com/offsidezero/varcore/internal/domain/geometry"
	"github.com/offsidezero/varcore/internal/domain/model"
	"github.com/offsidezero/varcore/internal/domain/types"
)

// Wire shapes as the sidecar reports them. Anything the pipeline does not
// know is dropped here at the boundary.
type wireResponse struct {
	Frames []wireFrame `json:"frames"`
}

type wireFrame struct {
	FrameIndex  *int64         `json:"frame_index"`
	TimestampMs float64        `json:"timestamp_ms"`
	Players     []wirePlayer   `json:"players"`
	Ball        *wireBall      `json:"ball"`
	Landmarks   []wireLandmark `json:"landmarks"`
}

type wirePlayer struct {
	TrackHint  string                    `json:"track_hint"`
	Team       string                    `json:"team"`
	ImagePoint geometry.Point            `json:"image_point"`
	Keypoints  map[string]geometry.Point `json:"keypoints"`
	Confidence float64                   `json:"confidence"`
}

type wireBall struct {
	ImagePoint geometry.Point `json:"image_point"`
	Confidence float64        `json:"confidence"`
}

type wireLandmark struct {
	ID         string         `json:"id"`
	ImagePoint geometry.Point `json:"image_point"`
}

// knownKeypoints lists the body points the evaluators can use. Providers
// may report more; the extras never cross this boundary.
var knownKeypoints = map[types.Keypoint]struct{}{
	types.KeypointHead:     {},
	types.KeypointShoulder: {},
	types.KeypointElbow:    {},
	types.KeypointHand:     {},
	types.KeypointTorso:    {},
	types.KeypointHip:      {},
	types.KeypointFoot:     {},
}

// decodeResponse turns the sidecar's JSON body into canonical observations.
// Any decode failure classifies the whole batch as malformed.
func decodeResponse(body []byte) ([]model.FrameObservation, error) {
	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decoding response: %v: %w", err, ErrProviderMalformed)
	}

	template := calib.PitchTemplate()
	obs := make([]model.FrameObservation, 0, len(wire.Frames))
	for i, frame := range wire.Frames {
		o, err := normalizeFrame(frame, template)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// normalizeFrame maps one wire frame onto the canonical record: unknown
// keypoints and landmarks dropped, confidences clamped onto [0,1], team
// strings mapped with an unknown fallback. A frame without an index
// poisons the batch; observations cannot be placed on the timeline.
func normalizeFrame(w wireFrame, template map[types.LandmarkID]geometry.Point) (model.FrameObservation, error) {
	if w.FrameIndex == nil {
		return model.FrameObservation{}, fmt.Errorf("missing frame_index: %w", ErrProviderMalformed)
	}

	o := model.FrameObservation{
		FrameIndex: *w.FrameIndex,
		Timestamp:  time.Duration(w.TimestampMs * float64(time.Millisecond)),
	}

	for _, p := range w.Players {
		o.Players = append(o.Players, normalizePlayer(p))
	}

	if w.Ball != nil {
		o.Ball = &model.BallDetection{
			ImagePoint: w.Ball.ImagePoint,
			Confidence: clampConfidence(w.Ball.Confidence),
		}
	}

	for _, l := range w.Landmarks {
		id := types.LandmarkID(l.ID)
		if _, ok := template[id]; !ok {
			continue
		}
		o.Landmarks = append(o.Landmarks, model.PitchLandmark{
			ID:         id,
			ImagePoint: l.ImagePoint,
		})
	}

	return o, nil
}

func normalizePlayer(w wirePlayer) model.PlayerDetection {
	d := model.PlayerDetection{
		TrackHint:  w.TrackHint,
		Team:       mapTeam(w.Team),
		ImagePoint: w.ImagePoint,
		Confidence: clampConfidence(w.Confidence),
	}
	for name, pt := range w.Keypoints {
		kp := types.Keypoint(name)
		if _, ok := knownKeypoints[kp]; !ok {
			continue
		}
		if d.Keypoints == nil {
			d.Keypoints = make(map[types.Keypoint]geometry.Point, len(w.Keypoints))
		}
		d.Keypoints[kp] = pt
	}
	return d
}

func mapTeam(s string) types.Team {
	switch types.Team(s) {
	case types.TeamAttacking:
		return types.TeamAttacking
	case types.TeamDefending:
		return types.TeamDefending
	default:
		return types.TeamUnknown
	}
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
