package profiles

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"splice/internal/scene"
)

type entry struct {
	name        string
	description string
	width       int
	height      int
	progressive bool
	dar         [2]int // display aspect num/den
	fps         [2]int // frame rate num/den
	colorspace  int
}

var catalog = []entry{
	{"atsc_1080p_2398", "HD 1080p 23.98 fps", 1920, 1080, true, [2]int{16, 9}, [2]int{24000, 1001}, 709},
	{"atsc_1080p_24", "HD 1080p 24 fps", 1920, 1080, true, [2]int{16, 9}, [2]int{24, 1}, 709},
	{"atsc_1080p_25", "HD 1080p 25 fps", 1920, 1080, true, [2]int{16, 9}, [2]int{25, 1}, 709},
	{"atsc_1080p_2997", "HD 1080p 29.97 fps", 1920, 1080, true, [2]int{16, 9}, [2]int{30000, 1001}, 709},
	{"atsc_1080p_30", "HD 1080p 30 fps", 1920, 1080, true, [2]int{16, 9}, [2]int{30, 1}, 709},
	{"atsc_1080p_50", "HD 1080p 50 fps", 1920, 1080, true, [2]int{16, 9}, [2]int{50, 1}, 709},
	{"atsc_1080p_5994", "HD 1080p 59.94 fps", 1920, 1080, true, [2]int{16, 9}, [2]int{60000, 1001}, 709},
	{"atsc_1080p_60", "HD 1080p 60 fps", 1920, 1080, true, [2]int{16, 9}, [2]int{60, 1}, 709},
	{"atsc_720p_25", "HD 720p 25 fps", 1280, 720, true, [2]int{16, 9}, [2]int{25, 1}, 709},
	{"atsc_720p_2997", "HD 720p 29.97 fps", 1280, 720, true, [2]int{16, 9}, [2]int{30000, 1001}, 709},
	{"atsc_720p_50", "HD 720p 50 fps", 1280, 720, true, [2]int{16, 9}, [2]int{50, 1}, 709},
	{"uhd_2160p_25", "4K UHD 2160p 25 fps", 3840, 2160, true, [2]int{16, 9}, [2]int{25, 1}, 709},
	{"uhd_2160p_2997", "4K UHD 2160p 29.97 fps", 3840, 2160, true, [2]int{16, 9}, [2]int{30000, 1001}, 709},
	{"uhd_2160p_50", "4K UHD 2160p 50 fps", 3840, 2160, true, [2]int{16, 9}, [2]int{50, 1}, 709},
	{"uhd_2160p_60", "4K UHD 2160p 60 fps", 3840, 2160, true, [2]int{16, 9}, [2]int{60, 1}, 709},
	{"dv_pal", "DV/DVD PAL", 720, 576, false, [2]int{4, 3}, [2]int{25, 1}, 601},
	{"dv_ntsc", "DV/DVD NTSC", 720, 480, false, [2]int{4, 3}, [2]int{30000, 1001}, 601},
	{"vertical_hd_30", "Vertical HD 30 fps", 1080, 1920, true, [2]int{9, 16}, [2]int{30, 1}, 709},
}

var byName map[string]*entry

func init() {
	byName = make(map[string]*entry, len(catalog))
	for i := range catalog {
		byName[catalog[i].name] = &catalog[i]
	}
}

// First-run defaults.
const (
	Default25   = "atsc_1080p_25"
	Default2997 = "atsc_1080p_2997"
)

func lookup(name string) *entry {
	return byName[strings.ToLower(strings.TrimSpace(name))]
}

// Lookup returns the named profile.
func Lookup(name string) (scene.Profile, bool) {
	e := lookup(name)
	if e == nil {
		return scene.Profile{}, false
	}
	return e.profile(), true
}

// MustLookup is Lookup for names known to be in the catalog.
func MustLookup(name string) scene.Profile {
	p, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("profiles: unknown profile %q", name))
	}
	return p
}

// Names returns every catalog name in sorted order.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, e.name)
	}
	sort.Strings(out)
	return out
}

// Describe returns the human-readable description of a named profile.
func Describe(name string) string {
	if e := lookup(name); e != nil {
		return e.description
	}
	return ""
}

// Match returns the catalog name whose frame size, scan mode and frame rate
// equal p.
func Match(p scene.Profile) (string, bool) {
	for _, e := range catalog {
		if e.width == p.Width && e.height == p.Height && e.progressive == p.Progressive &&
			e.fps[0] == p.FrameRateNum && e.fps[1] == p.FrameRateDen {
			return e.name, true
		}
	}
	return "", false
}

func (e *entry) profile() scene.Profile {
	sarNum, sarDen := sampleAspect(e.width, e.height, e.dar)
	return scene.Profile{
		Description:      e.description,
		Width:            e.width,
		Height:           e.height,
		Progressive:      e.progressive,
		SampleAspectNum:  sarNum,
		SampleAspectDen:  sarDen,
		DisplayAspectNum: e.dar[0],
		DisplayAspectDen: e.dar[1],
		FrameRateNum:     e.fps[0],
		FrameRateDen:     e.fps[1],
		Colorspace:       e.colorspace,
	}
}

// sampleAspect derives the pixel aspect ratio from frame size and display aspect.
func sampleAspect(width, height int, dar [2]int) (int, int) {
	num := dar[0] * height
	den := dar[1] * width
	g := gcd(num, den)
	if g == 0 {
		return 1, 1
	}
	return num / g, den / g
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// FPSSuffix renders a frame rate the way converted project names carry it:
// fps*100 truncated, e.g. 2997 for 29.97.
func FPSSuffix(fps float64) string {
	return fmt.Sprintf("%d", int(math.Floor(fps*100+1e-6)))
}

// ntscZones lists time zones of regions that broadcast at 29.97 fps.
var ntscZones = map[string]bool{
	"America/Toronto": true, "America/Vancouver": true, "America/Montreal": true, "America/Edmonton": true,
	"America/Winnipeg": true, "America/Halifax": true, "America/St_Johns": true, "America/Regina": true,
	"America/Santiago": true, "America/Costa_Rica": true, "America/Havana": true,
	"America/Santo_Domingo": true, "America/Guayaquil": true, "Asia/Tokyo": true,
	"America/Mexico_City": true, "America/Cancun": true, "America/Tijuana": true, "America/Monterrey": true,
	"America/Managua": true, "America/Panama": true, "America/Lima": true, "Asia/Manila": true,
	"America/Puerto_Rico": true, "Asia/Seoul": true, "Asia/Taipei": true,
	"America/New_York": true, "America/Chicago": true, "America/Denver": true, "America/Los_Angeles": true,
	"America/Phoenix": true, "America/Anchorage": true, "America/Detroit": true, "Pacific/Honolulu": true,
	"America/Boise": true, "America/Indiana/Indianapolis": true,
	"US/Eastern": true, "US/Central": true, "US/Mountain": true, "US/Pacific": true, "US/Alaska": true, "US/Hawaii": true,
	"Canada/Eastern": true, "Canada/Pacific": true, "Japan": true, "ROK": true, "ROC": true, "Cuba": true,
}

// DefaultForZone returns the first-run profile for an IANA zone name.
func DefaultForZone(zone string) string {
	if ntscZones[strings.TrimSpace(zone)] {
		return Default2997
	}
	return Default25
}

// DefaultForLocal resolves the default from the process time zone.
func DefaultForLocal() string {
	return DefaultForZone(time.Local.String())
}
