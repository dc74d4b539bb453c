package profiles

import "testing"

func TestLookup(t *testing.T) {
	p, ok := Lookup(" ATSC_1080p_25 ")
	if !ok {
		t.Fatal("expected atsc_1080p_25 in catalog")
	}
	if p.Width != 1920 || p.Height != 1080 || p.FPS() != 25 {
		t.Fatalf("unexpected profile %+v", p)
	}
	if p.SampleAspectNum != 1 || p.SampleAspectDen != 1 {
		t.Fatalf("square pixels expected, got %d/%d", p.SampleAspectNum, p.SampleAspectDen)
	}
	if _, ok := Lookup("nope"); ok {
		t.Fatal("unknown profile should not resolve")
	}
	pal := MustLookup("dv_pal")
	if pal.SampleAspectNum != 16 || pal.SampleAspectDen != 15 {
		t.Fatalf("dv_pal sample aspect = %d/%d, want 16/15", pal.SampleAspectNum, pal.SampleAspectDen)
	}
	if Describe("atsc_1080p_2997") != "HD 1080p 29.97 fps" {
		t.Fatalf("Describe = %q", Describe("atsc_1080p_2997"))
	}
}

func TestMatch(t *testing.T) {
	name, ok := Match(MustLookup("atsc_720p_50"))
	if !ok || name != "atsc_720p_50" {
		t.Fatalf("Match = %q %v", name, ok)
	}
}

func TestDefaultForZone(t *testing.T) {
	tests := []struct {
		zone string
		want string
	}{
		{"America/New_York", Default2997},
		{"Asia/Tokyo", Default2997},
		{"Europe/Paris", Default25},
		{"Australia/Sydney", Default25},
		{"", Default25},
	}
	for _, tt := range tests {
		if got := DefaultForZone(tt.zone); got != tt.want {
			t.Errorf("DefaultForZone(%q) = %q, want %q", tt.zone, got, tt.want)
		}
	}
}

func TestFPSSuffix(t *testing.T) {
	tests := []struct {
		fps  float64
		want string
	}{
		{25, "2500"},
		{50, "5000"},
		{30000.0 / 1001.0, "2997"},
		{24000.0 / 1001.0, "2397"},
	}
	for _, tt := range tests {
		if got := FPSSuffix(tt.fps); got != tt.want {
			t.Errorf("FPSSuffix(%v) = %q, want %q", tt.fps, got, tt.want)
		}
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	if len(names) != len(catalog) {
		t.Fatalf("got %d names, want %d", len(names), len(catalog))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}
