package relocation

import (
	"path/filepath"
	"strings"
)

// Pattern is a literal substring rewrite.
type Pattern struct {
	From string
	To   string
}

// Patterns is an ordered set of rewrites applied to serialized scene text.
type Patterns []Pattern

// Empty reports whether there is nothing to apply.
func (p Patterns) Empty() bool {
	return len(p) == 0
}

// Apply rewrites text in order.
func (p Patterns) Apply(text string) string {
	for _, r := range p {
		if r.From == "" {
			continue
		}
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	return text
}

// BuildPatterns returns the rewrites for proxy references after the data
// folder of document id moved from oldBase to newBase. When oldBase lies
// inside projectDir the scene stores those references relative to the
// project, so the relative forms are rewritten; otherwise the absolute old
// proxy path is.
func BuildPatterns(projectDir, oldBase, newBase, id string) Patterns {
	newProxy := filepath.Join(newBase, id) + "/proxy/"
	oldData := filepath.Join(oldBase, id)
	if within(projectDir, oldBase) {
		var out Patterns
		if rel, err := filepath.Rel(projectDir, oldData); err == nil && rel != "." {
			out = append(out, Pattern{From: ">" + filepath.ToSlash(rel) + "/proxy/", To: ">" + newProxy})
		}
		return append(out, Pattern{From: ">proxy/", To: ">" + newProxy})
	}
	return Patterns{{From: oldData + "/proxy/", To: newProxy}}
}

func within(dir, path string) bool {
	if dir == "" || path == "" {
		return false
	}
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
