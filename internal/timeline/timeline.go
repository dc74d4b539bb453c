package timeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"splice/internal/scene"
)

// Clip is a placed playlist entry.
type Clip struct {
	Producer string `json:"producer"`
	In       int    `json:"in"`
	Out      int    `json:"out"`
	Position int    `json:"position"`
}

// Length is the clip duration in frames.
func (c Clip) Length() int {
	return c.Out - c.In + 1
}

// Track is one timeline track.
type Track struct {
	ID     string `json:"id"`
	Audio  bool   `json:"audio"`
	Hide   string `json:"hide,omitempty"`
	Clips  []Clip `json:"clips"`
	Length int    `json:"length"`
}

// Timeline is the live editable structure built from a graph.
type Timeline struct {
	UUID    uuid.UUID
	Profile scene.Profile
	Tracks  []*Track

	mu       sync.Mutex
	graph    *scene.Graph
	released bool
}

// Graph returns the scene graph backing the timeline, or nil once released.
func (t *Timeline) Graph() *scene.Graph {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.graph
}

// Release drops the graph reference. Further Graph calls return nil.
func (t *Timeline) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.graph = nil
	t.released = true
}

// Released reports whether Release was called.
func (t *Timeline) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// TrackCount returns the number of tracks.
func (t *Timeline) TrackCount() int {
	return len(t.Tracks)
}

// Duration is the length of the longest track.
func (t *Timeline) Duration() int {
	d := 0
	for _, tr := range t.Tracks {
		d = max(d, tr.Length)
	}
	return d
}

// ThumbKeys returns, per producer, the sorted distinct in-points used on the
// timeline. These are the frames whose thumbnails the cache keeps.
func (t *Timeline) ThumbKeys() map[string][]int {
	keys := make(map[string][]int)
	for _, tr := range t.Tracks {
		if tr.Audio {
			continue
		}
		for _, c := range tr.Clips {
			keys[c.Producer] = append(keys[c.Producer], c.In)
		}
	}
	for id, frames := range keys {
		slices.Sort(frames)
		keys[id] = slices.Compact(frames)
	}
	return keys
}

// Hash is a hex sha256 over the canonical JSON of the track layout.
func (t *Timeline) Hash() (string, error) {
	raw, err := json.Marshal(struct {
		FPSNum int      `json:"fps_num"`
		FPSDen int      `json:"fps_den"`
		Tracks []*Track `json:"tracks"`
	}{t.Profile.FrameRateNum, t.Profile.FrameRateDen, t.Tracks})
	if err != nil {
		return "", fmt.Errorf("encode timeline: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize timeline: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
