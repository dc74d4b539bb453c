package scene

import (
	"fmt"
	"strconv"
)

const (
	// BinID is the id of the playlist that carries document properties.
	BinID = "main_bin"
	// BackgroundID is the producer that fills the bottom track of new projects.
	BackgroundID = "black_track"
	// DocPropertyPrefix prefixes document properties stored on the bin.
	DocPropertyPrefix = "splice:docproperties."
	// DocMetadataPrefix prefixes document metadata stored on the bin.
	DocMetadataPrefix = "splice:docmetadata."
	// AudioTrackProperty marks a playlist as an audio track.
	AudioTrackProperty = "splice:audio_track"
	// CurrentVersion is the scene format version written by Serialize.
	CurrentVersion = "1.1"
	// TrackMarker is present in every serialized scene that has at least one track.
	TrackMarker = "<track "
)

// Profile is the format descriptor embedded in scene text.
type Profile struct {
	Description      string
	Width            int
	Height           int
	Progressive      bool
	SampleAspectNum  int
	SampleAspectDen  int
	DisplayAspectNum int
	DisplayAspectDen int
	FrameRateNum     int
	FrameRateDen     int
	Colorspace       int
}

// FPS returns the frame rate, or 0 when the profile is unset.
func (p Profile) FPS() float64 {
	if p.FrameRateDen == 0 {
		return 0
	}
	return float64(p.FrameRateNum) / float64(p.FrameRateDen)
}

// Validate reports profiles that cannot drive a timeline.
func (p Profile) Validate() error {
	switch {
	case p.FrameRateNum <= 0 || p.FrameRateDen <= 0:
		return fmt.Errorf("invalid frame rate %d/%d", p.FrameRateNum, p.FrameRateDen)
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("invalid frame size %dx%d", p.Width, p.Height)
	}
	return nil
}

// Producer is a media source. Chains are stored as producers with Element "chain".
type Producer struct {
	Element    string
	ID         string
	In         int
	Out        int
	Properties *Properties
	Extra      []*Node
}

// Service returns the mlt_service property.
func (p *Producer) Service() string {
	return p.Properties.Value("mlt_service")
}

// Length returns the numeric length property when present and valid.
func (p *Producer) Length() (int, bool) {
	v, ok := p.Properties.Get("length")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Entry is a playlist item. Producer is empty for blanks.
type Entry struct {
	Producer string
	In       int
	Out      int
	Blank    int
}

// Playlist is an ordered list of clip entries.
type Playlist struct {
	ID         string
	Properties *Properties
	Entries    []Entry
	Extra      []*Node
}

// IsAudio reports whether the playlist is flagged as an audio track.
func (p *Playlist) IsAudio() bool {
	return p.Properties.Value(AudioTrackProperty) == "1"
}

// Track references a playlist, producer or tractor from a tractor.
type Track struct {
	Producer string
	Hide     string
}

// Tractor stacks tracks. The last tractor in a scene is the main timeline.
type Tractor struct {
	ID         string
	In         int
	Out        int
	Properties *Properties
	Tracks     []Track
	Extra      []*Node
}

// Graph is the parsed form of scene text.
type Graph struct {
	// Root is the base folder relative resources were resolved against.
	Root      string
	Profile   Profile
	Producers []*Producer
	Bin       *Playlist
	Playlists []*Playlist
	Tractors  []*Tractor
	Extra     []*Node

	// Version is the format version found in the text.
	Version string
	// Upgraded is set when the text used an older format version.
	Upgraded bool
	// Repaired is set when a lenient parse changed content to make it usable.
	Repaired bool
}

// Main returns the main tractor or nil.
func (g *Graph) Main() *Tractor {
	if g == nil || len(g.Tractors) == 0 {
		return nil
	}
	return g.Tractors[len(g.Tractors)-1]
}

// Producer looks up a producer by id.
func (g *Graph) Producer(id string) *Producer {
	for _, p := range g.Producers {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Playlist looks up a playlist by id, including the bin.
func (g *Graph) Playlist(id string) *Playlist {
	if g.Bin != nil && g.Bin.ID == id {
		return g.Bin
	}
	for _, p := range g.Playlists {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Tractor looks up a tractor by id.
func (g *Graph) Tractor(id string) *Tractor {
	for _, t := range g.Tractors {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Has reports whether any element is registered under id.
func (g *Graph) Has(id string) bool {
	return g.Producer(id) != nil || g.Playlist(id) != nil || g.Tractor(id) != nil
}

// TrackCount returns the number of main tractor tracks that reference playlists
// or tractors. The background producer is not a track.
func (g *Graph) TrackCount() int {
	main := g.Main()
	if main == nil {
		return 0
	}
	n := 0
	for _, t := range main.Tracks {
		if g.Playlist(t.Producer) != nil || g.Tractor(t.Producer) != nil {
			n++
		}
	}
	return n
}

// EnsureBin returns the bin playlist, creating it if needed.
func (g *Graph) EnsureBin() *Playlist {
	if g.Bin == nil {
		g.Bin = &Playlist{ID: BinID, Properties: &Properties{}}
	}
	if g.Bin.Properties == nil {
		g.Bin.Properties = &Properties{}
	}
	return g.Bin
}

// NewGraph builds an empty timeline: a black background producer, the
// requested audio playlists below the video playlists, and the main tractor.
func NewGraph(profile Profile, videoTracks, audioTracks int) *Graph {
	g := &Graph{Profile: profile, Version: CurrentVersion}
	g.EnsureBin().Properties.Set(DocPropertyPrefix+"version", CurrentVersion)
	g.Producers = append(g.Producers, &Producer{
		Element: "producer",
		ID:      BackgroundID,
		In:      0,
		Out:     0,
		Properties: NewProperties(
			Property{Name: "length", Value: "2147483647"},
			Property{Name: "eof", Value: "continue"},
			Property{Name: "resource", Value: "black"},
			Property{Name: "mlt_service", Value: "color"},
			Property{Name: "set.test_audio", Value: "0"},
		),
	})

	main := &Tractor{ID: "maintractor", Properties: &Properties{}}
	main.Tracks = append(main.Tracks, Track{Producer: BackgroundID})
	index := 0
	for i := 0; i < audioTracks; i++ {
		pl := &Playlist{ID: "playlist" + strconv.Itoa(index), Properties: NewProperties(Property{Name: AudioTrackProperty, Value: "1"})}
		g.Playlists = append(g.Playlists, pl)
		main.Tracks = append(main.Tracks, Track{Producer: pl.ID, Hide: "video"})
		index++
	}
	for i := 0; i < videoTracks; i++ {
		pl := &Playlist{ID: "playlist" + strconv.Itoa(index), Properties: &Properties{}}
		g.Playlists = append(g.Playlists, pl)
		main.Tracks = append(main.Tracks, Track{Producer: pl.ID})
		index++
	}
	g.Tractors = append(g.Tractors, main)
	return g
}
