package document

import (
	"encoding/json"
	"fmt"
	"math"
)

// Guide is a timeline marker stored in the "guides" property.
type Guide struct {
	Pos     int    `json:"pos"`
	Comment string `json:"comment"`
	Type    int    `json:"type"`
}

// ParseGuides decodes guide JSON. Entries that are not objects or lack a
// position are skipped and counted.
func ParseGuides(raw string) ([]Guide, int, error) {
	if raw == "" {
		return nil, 0, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, 0, fmt.Errorf("decode guides: %w", err)
	}
	guides := make([]Guide, 0, len(items))
	skipped := 0
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			skipped++
			continue
		}
		if _, ok := fields["pos"]; !ok {
			skipped++
			continue
		}
		var g Guide
		if err := json.Unmarshal(item, &g); err != nil {
			skipped++
			continue
		}
		guides = append(guides, g)
	}
	return guides, skipped, nil
}

// EncodeGuides renders guides as the JSON array stored in the document.
func EncodeGuides(guides []Guide) (string, error) {
	if guides == nil {
		guides = []Guide{}
	}
	data, err := json.Marshal(guides)
	if err != nil {
		return "", fmt.Errorf("encode guides: %w", err)
	}
	return string(data), nil
}

// RescaleGuides moves every guide by ratio, rounding half away from zero.
func RescaleGuides(guides []Guide, ratio float64) []Guide {
	out := make([]Guide, len(guides))
	for i, g := range guides {
		g.Pos = int(math.Round(float64(g.Pos) * ratio))
		out[i] = g
	}
	return out
}
