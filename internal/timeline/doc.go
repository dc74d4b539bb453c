// Package timeline materializes a parsed scene graph into the live timeline.
//
// Build is all-or-nothing: it either returns a complete Timeline or a
// *StructuralError describing why the graph cannot be edited (no main
// tractor, zero tracks, dangling references, invalid clip bounds). Callers
// treat a structural error like a parse error and never keep a partial
// result.
package timeline
