package timeline

import (
	"log/slog"

	"github.com/google/uuid"

	"splice/internal/logging"
	"splice/internal/scene"
)

// ProgressFunc receives load progress as (current, total) tracks.
type ProgressFunc func(current, total int)

// Builder constructs timelines.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder returns a Builder that logs through logger.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{logger: logging.NewComponentLogger(logger, "timeline")}
}

// Build materializes g. A zero-value profile falls back to the one embedded
// in the graph. The graph is owned by the returned timeline.
func (b *Builder) Build(g *scene.Graph, profile scene.Profile, progress ProgressFunc) (*Timeline, error) {
	if g == nil {
		return nil, &StructuralError{Reason: "no scene"}
	}
	if profile == (scene.Profile{}) {
		profile = g.Profile
	}
	if err := profile.Validate(); err != nil {
		return nil, &StructuralError{Reason: err.Error(), Element: "profile"}
	}
	main := g.Main()
	if main == nil {
		return nil, &StructuralError{Reason: "no main tractor"}
	}

	var refs []scene.Track
	for _, tr := range main.Tracks {
		if tr.Producer == "" {
			return nil, &StructuralError{Reason: "track without producer", Element: main.ID}
		}
		if !g.Has(tr.Producer) {
			return nil, &StructuralError{Reason: "track references unknown element " + tr.Producer, Element: main.ID}
		}
		if g.Producer(tr.Producer) != nil {
			continue // background fill
		}
		refs = append(refs, tr)
	}
	if len(refs) == 0 {
		return nil, &StructuralError{Reason: "timeline has no tracks", Element: main.ID}
	}

	t := &Timeline{UUID: uuid.New(), Profile: profile, graph: g}
	for i, ref := range refs {
		track, err := buildTrack(g, ref)
		if err != nil {
			return nil, err
		}
		t.Tracks = append(t.Tracks, track)
		if progress != nil {
			progress(i+1, len(refs))
		}
	}
	b.logger.Debug("timeline built",
		logging.Int("tracks", len(t.Tracks)),
		logging.Int("duration", t.Duration()),
	)
	return t, nil
}

func buildTrack(g *scene.Graph, ref scene.Track) (*Track, error) {
	if nested := g.Tractor(ref.Producer); nested != nil {
		// Compound track: its length spans the nested tractor.
		length := 0
		if nested.Out >= nested.In {
			length = nested.Out - nested.In + 1
		}
		return &Track{ID: nested.ID, Hide: ref.Hide, Length: length}, nil
	}
	pl := g.Playlist(ref.Producer)
	track := &Track{ID: pl.ID, Audio: pl.IsAudio() || ref.Hide == "video", Hide: ref.Hide, Clips: []Clip{}}
	pos := 0
	for _, e := range pl.Entries {
		if e.Producer == "" {
			if e.Blank < 0 {
				return nil, &StructuralError{Reason: "negative blank", Element: pl.ID}
			}
			pos += e.Blank
			continue
		}
		if !g.Has(e.Producer) {
			return nil, &StructuralError{Reason: "entry references unknown producer " + e.Producer, Element: pl.ID}
		}
		if e.In < 0 || e.Out < e.In {
			return nil, &StructuralError{Reason: "invalid clip bounds for " + e.Producer, Element: pl.ID}
		}
		c := Clip{Producer: e.Producer, In: e.In, Out: e.Out, Position: pos}
		track.Clips = append(track.Clips, c)
		pos += c.Length()
	}
	track.Length = pos
	return track, nil
}
