package scene

import (
	"path/filepath"
	"strings"
)

var pathPropertyNames = map[string]bool{
	"resource":           true,
	"splice:proxy":       true,
	"splice:originalurl": true,
	"warp_resource":      true,
}

var generatorServices = map[string]bool{
	"color":             true,
	"colour":            true,
	"tone":              true,
	"noise":             true,
	"count":             true,
	"blipflash":         true,
	"frei0r.test_pat_B": true,
}

func isPathProperty(p *Producer, name, value string) bool {
	if !pathPropertyNames[name] {
		return false
	}
	if value == "" || value == "-" || strings.HasPrefix(value, "#") || strings.HasPrefix(value, "<") || strings.Contains(value, "://") {
		return false
	}
	return !generatorServices[p.Service()]
}

func relativize(baseDir, value string) string {
	if baseDir == "" || !filepath.IsAbs(value) {
		return value
	}
	rel, err := filepath.Rel(baseDir, value)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return value
	}
	return rel
}

// resolveResources turns relative file references into absolute paths under
// the recorded root so the in-memory graph never depends on the working dir.
func resolveResources(g *Graph) {
	if g.Root == "" || !filepath.IsAbs(g.Root) {
		return
	}
	for _, prod := range g.Producers {
		for _, prop := range prod.Properties.All() {
			if !isPathProperty(prod, prop.Name, prop.Value) || filepath.IsAbs(prop.Value) {
				continue
			}
			prod.Properties.Set(prop.Name, filepath.Join(g.Root, prop.Value))
		}
	}
}
