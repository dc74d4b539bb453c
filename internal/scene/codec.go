package scene

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// Overlay carries document state merged into the bin on Serialize.
type Overlay struct {
	Properties *Properties
	Metadata   *Properties
}

// Serialize renders g as scene text. File references inside baseDir are
// written relative to it and baseDir is recorded on the root element. The
// overlay replaces any document properties and metadata already on the bin,
// and the format version is always stamped. g is not modified.
func Serialize(g *Graph, baseDir string, overlay *Overlay) (string, error) {
	if g == nil {
		return "", errors.New("scene: serialize nil graph")
	}
	if baseDir != "" && !filepath.IsAbs(baseDir) {
		return "", fmt.Errorf("scene: base folder %q is not absolute", baseDir)
	}

	root := NewNode("mlt", Attr{Name: "LC_NUMERIC", Value: "C"}, Attr{Name: "producer", Value: BinID}, Attr{Name: "version", Value: "7.0.0"})
	if baseDir != "" {
		root.SetAttr("root", filepath.Clean(baseDir))
	}
	root.Append(profileNode(g.Profile))

	for _, p := range g.Producers {
		root.Append(producerNode(p, baseDir))
	}
	root.Append(playlistNode(binWithOverlay(g, overlay)))
	for _, pl := range g.Playlists {
		root.Append(playlistNode(pl))
	}
	for _, t := range g.Tractors {
		root.Append(tractorNode(t))
	}
	root.Append(g.Extra...)
	return EncodeTree(root), nil
}

func binWithOverlay(g *Graph, overlay *Overlay) *Playlist {
	bin := &Playlist{ID: BinID, Properties: &Properties{}}
	if g.Bin != nil {
		bin.Entries = g.Bin.Entries
		bin.Extra = g.Bin.Extra
		bin.Properties = g.Bin.Properties.Clone()
	}
	defer bin.Properties.Set(DocPropertyPrefix+"version", CurrentVersion)
	if overlay == nil {
		return bin
	}
	if overlay.Properties != nil {
		dropPrefixed(bin.Properties, DocPropertyPrefix)
		for _, p := range overlay.Properties.All() {
			bin.Properties.Set(DocPropertyPrefix+p.Name, p.Value)
		}
	}
	if overlay.Metadata != nil {
		dropPrefixed(bin.Properties, DocMetadataPrefix)
		for _, p := range overlay.Metadata.All() {
			bin.Properties.Set(DocMetadataPrefix+p.Name, p.Value)
		}
	}
	return bin
}

func dropPrefixed(props *Properties, prefix string) {
	for _, p := range props.All() {
		if strings.HasPrefix(p.Name, prefix) {
			props.Delete(p.Name)
		}
	}
}

func profileNode(p Profile) *Node {
	return NewNode("profile",
		Attr{Name: "description", Value: p.Description},
		Attr{Name: "width", Value: strconv.Itoa(p.Width)},
		Attr{Name: "height", Value: strconv.Itoa(p.Height)},
		Attr{Name: "progressive", Value: boolDigit(p.Progressive)},
		Attr{Name: "sample_aspect_num", Value: strconv.Itoa(p.SampleAspectNum)},
		Attr{Name: "sample_aspect_den", Value: strconv.Itoa(p.SampleAspectDen)},
		Attr{Name: "display_aspect_num", Value: strconv.Itoa(p.DisplayAspectNum)},
		Attr{Name: "display_aspect_den", Value: strconv.Itoa(p.DisplayAspectDen)},
		Attr{Name: "frame_rate_num", Value: strconv.Itoa(p.FrameRateNum)},
		Attr{Name: "frame_rate_den", Value: strconv.Itoa(p.FrameRateDen)},
		Attr{Name: "colorspace", Value: strconv.Itoa(p.Colorspace)},
	)
}

func boolDigit(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func producerNode(p *Producer, baseDir string) *Node {
	element := p.Element
	if element == "" {
		element = "producer"
	}
	n := NewNode(element, Attr{Name: "id", Value: p.ID}, Attr{Name: "in", Value: strconv.Itoa(p.In)}, Attr{Name: "out", Value: strconv.Itoa(p.Out)})
	for _, prop := range p.Properties.All() {
		value := prop.Value
		if isPathProperty(p, prop.Name, value) {
			value = relativize(baseDir, value)
		}
		n.SetProperty(prop.Name, value)
	}
	return n.Append(p.Extra...)
}

func playlistNode(pl *Playlist) *Node {
	n := NewNode("playlist", Attr{Name: "id", Value: pl.ID})
	for _, prop := range pl.Properties.All() {
		n.SetProperty(prop.Name, prop.Value)
	}
	for _, e := range pl.Entries {
		if e.Producer == "" {
			n.Append(NewNode("blank", Attr{Name: "length", Value: strconv.Itoa(e.Blank)}))
			continue
		}
		n.Append(NewNode("entry",
			Attr{Name: "producer", Value: e.Producer},
			Attr{Name: "in", Value: strconv.Itoa(e.In)},
			Attr{Name: "out", Value: strconv.Itoa(e.Out)},
		))
	}
	return n.Append(pl.Extra...)
}

func tractorNode(t *Tractor) *Node {
	n := NewNode("tractor", Attr{Name: "id", Value: t.ID}, Attr{Name: "in", Value: strconv.Itoa(t.In)}, Attr{Name: "out", Value: strconv.Itoa(t.Out)})
	for _, prop := range t.Properties.All() {
		n.SetProperty(prop.Name, prop.Value)
	}
	for _, tr := range t.Tracks {
		track := NewNode("track", Attr{Name: "producer", Value: tr.Producer})
		if tr.Hide != "" {
			track.SetAttr("hide", tr.Hide)
		}
		n.Append(track)
	}
	return n.Append(t.Extra...)
}

// Parse builds a Graph from scene text. A strict parse rejects any damage
// with a *ParseError. A lenient parse repairs what it can (HTML entities,
// unclosed or truncated elements, decimal commas in numbers, references to
// elements that do not exist) and sets Graph.Repaired when it changed
// anything.
func Parse(text string, lenient bool) (*Graph, []Warning, error) {
	root, warnings, err := DecodeTree(text, lenient)
	if err != nil {
		return nil, nil, err
	}
	p := &parser{lenient: lenient, warnings: warnings}
	if len(warnings) > 0 {
		p.repaired = true
	}
	g, err := p.graph(root)
	if err != nil {
		return nil, nil, err
	}
	g.Repaired = p.repaired
	return g, p.warnings, nil
}

type parser struct {
	lenient  bool
	repaired bool
	warnings []Warning
	anon     int
}

func (p *parser) warn(format string, args ...any) {
	p.warnings = append(p.warnings, Warning{Message: fmt.Sprintf(format, args...)})
}

func (p *parser) repair(format string, args ...any) {
	p.repaired = true
	p.warn(format, args...)
}

func (p *parser) graph(root *Node) (*Graph, error) {
	if root.Name != "mlt" {
		return nil, &ParseError{Msg: fmt.Sprintf("root element is <%s>, want <mlt>", root.Name)}
	}
	g := &Graph{}
	g.Root, _ = root.Attr("root")

	sawProfile := false
	for _, child := range root.Children {
		switch child.Name {
		case "profile":
			if sawProfile {
				p.warn("ignoring extra <profile>")
				continue
			}
			sawProfile = true
			profile, err := p.profile(child)
			if err != nil {
				return nil, err
			}
			g.Profile = profile
		case "producer", "chain":
			prod, err := p.producer(child)
			if err != nil {
				return nil, err
			}
			g.Producers = append(g.Producers, prod)
		case "playlist":
			pl, err := p.playlist(child)
			if err != nil {
				return nil, err
			}
			if pl.ID == BinID {
				g.Bin = pl
			} else {
				g.Playlists = append(g.Playlists, pl)
			}
		case "tractor":
			t, err := p.tractor(child)
			if err != nil {
				return nil, err
			}
			g.Tractors = append(g.Tractors, t)
		default:
			g.Extra = append(g.Extra, child)
		}
	}
	if !sawProfile {
		if !p.lenient {
			return nil, &ParseError{Msg: "missing <profile>"}
		}
		p.repair("missing <profile>, timeline profile will be used")
	}

	if err := p.checkReferences(g); err != nil {
		return nil, err
	}
	p.version(g)
	resolveResources(g)
	return g, nil
}

func (p *parser) number(n *Node, attr string, fallback int) (int, error) {
	raw, ok := n.Attr(attr)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return p.parseInt(n.Name+" "+attr, raw)
}

func (p *parser) parseInt(what, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	if !p.lenient {
		return 0, &ParseError{Msg: fmt.Sprintf("%s: %q is not an integer", what, raw)}
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil {
		p.repair("%s: dropping unreadable value %q", what, raw)
		return 0, nil
	}
	p.repair("%s: rounding %q", what, raw)
	return int(math.Round(f)), nil
}

func (p *parser) profile(n *Node) (Profile, error) {
	var prof Profile
	prof.Description, _ = n.Attr("description")
	fields := []struct {
		name string
		dst  *int
	}{
		{"width", &prof.Width},
		{"height", &prof.Height},
		{"sample_aspect_num", &prof.SampleAspectNum},
		{"sample_aspect_den", &prof.SampleAspectDen},
		{"display_aspect_num", &prof.DisplayAspectNum},
		{"display_aspect_den", &prof.DisplayAspectDen},
		{"frame_rate_num", &prof.FrameRateNum},
		{"frame_rate_den", &prof.FrameRateDen},
		{"colorspace", &prof.Colorspace},
	}
	for _, f := range fields {
		v, err := p.number(n, f.name, 0)
		if err != nil {
			return Profile{}, err
		}
		*f.dst = v
	}
	progressive, err := p.number(n, "progressive", 0)
	if err != nil {
		return Profile{}, err
	}
	prof.Progressive = progressive != 0
	return prof, nil
}

func (p *parser) id(n *Node) (string, error) {
	id, _ := n.Attr("id")
	if strings.TrimSpace(id) != "" {
		return id, nil
	}
	if !p.lenient {
		return "", &ParseError{Msg: fmt.Sprintf("<%s> without id", n.Name)}
	}
	p.anon++
	id = fmt.Sprintf("recovered%d", p.anon)
	p.repair("<%s> without id named %s", n.Name, id)
	return id, nil
}

func (p *parser) producer(n *Node) (*Producer, error) {
	id, err := p.id(n)
	if err != nil {
		return nil, err
	}
	prod := &Producer{Element: n.Name, ID: id, Properties: &Properties{}}
	if prod.In, err = p.number(n, "in", 0); err != nil {
		return nil, err
	}
	if prod.Out, err = p.number(n, "out", 0); err != nil {
		return nil, err
	}
	for _, c := range n.Children {
		if c.Name == "property" {
			name, _ := c.Attr("name")
			prod.Properties.Set(name, c.Text)
			continue
		}
		prod.Extra = append(prod.Extra, c)
	}
	return prod, nil
}

func (p *parser) playlist(n *Node) (*Playlist, error) {
	id, err := p.id(n)
	if err != nil {
		return nil, err
	}
	pl := &Playlist{ID: id, Properties: &Properties{}}
	for _, c := range n.Children {
		switch c.Name {
		case "property":
			name, _ := c.Attr("name")
			pl.Properties.Set(name, c.Text)
		case "entry":
			e := Entry{}
			e.Producer, _ = c.Attr("producer")
			if e.In, err = p.number(c, "in", 0); err != nil {
				return nil, err
			}
			if e.Out, err = p.number(c, "out", 0); err != nil {
				return nil, err
			}
			pl.Entries = append(pl.Entries, e)
		case "blank":
			length, err := p.number(c, "length", 0)
			if err != nil {
				return nil, err
			}
			pl.Entries = append(pl.Entries, Entry{Blank: length})
		default:
			pl.Extra = append(pl.Extra, c)
		}
	}
	return pl, nil
}

func (p *parser) tractor(n *Node) (*Tractor, error) {
	id, err := p.id(n)
	if err != nil {
		return nil, err
	}
	t := &Tractor{ID: id, Properties: &Properties{}}
	if t.In, err = p.number(n, "in", 0); err != nil {
		return nil, err
	}
	if t.Out, err = p.number(n, "out", 0); err != nil {
		return nil, err
	}
	var addTracks func(*Node)
	addTracks = func(parent *Node) {
		for _, c := range parent.Children {
			switch c.Name {
			case "property":
				if parent == n {
					name, _ := c.Attr("name")
					t.Properties.Set(name, c.Text)
				}
			case "track":
				tr := Track{}
				tr.Producer, _ = c.Attr("producer")
				tr.Hide, _ = c.Attr("hide")
				t.Tracks = append(t.Tracks, tr)
			case "multitrack":
				addTracks(c)
			default:
				if parent == n {
					t.Extra = append(t.Extra, c)
				}
			}
		}
	}
	addTracks(n)
	return t, nil
}

// checkReferences validates playlist entries in every mode and, in lenient
// mode only, drops tracks that point at nothing. Strict parses leave dangling
// tracks for the timeline builder to reject as structural damage.
func (p *parser) checkReferences(g *Graph) error {
	lists := append([]*Playlist{}, g.Playlists...)
	if g.Bin != nil {
		lists = append(lists, g.Bin)
	}
	for _, pl := range lists {
		kept := pl.Entries[:0]
		for _, e := range pl.Entries {
			if e.Producer == "" || g.Has(e.Producer) {
				kept = append(kept, e)
				continue
			}
			if !p.lenient {
				return &ParseError{Msg: fmt.Sprintf("playlist %s references unknown producer %q", pl.ID, e.Producer)}
			}
			p.repair("playlist %s: dropping entry for unknown producer %q", pl.ID, e.Producer)
		}
		pl.Entries = kept
	}
	if !p.lenient {
		return nil
	}
	for _, t := range g.Tractors {
		kept := t.Tracks[:0]
		for _, tr := range t.Tracks {
			if g.Has(tr.Producer) {
				kept = append(kept, tr)
				continue
			}
			p.repair("tractor %s: dropping track for unknown producer %q", t.ID, tr.Producer)
		}
		t.Tracks = kept
	}
	return nil
}

func (p *parser) version(g *Graph) {
	bin := g.EnsureBin()
	raw, ok := bin.Properties.Get(DocPropertyPrefix + "version")
	g.Version = strings.TrimSpace(raw)
	current, _ := strconv.ParseFloat(CurrentVersion, 64)
	found, err := strconv.ParseFloat(strings.ReplaceAll(g.Version, ",", "."), 64)
	switch {
	case !ok || err != nil || found < current:
		g.Upgraded = true
		bin.Properties.Set(DocPropertyPrefix+"version", CurrentVersion)
	case found > current:
		p.warn("scene written by a newer format version %s", g.Version)
	}
}
