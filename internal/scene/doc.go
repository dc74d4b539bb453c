// Package scene converts project scene text to and from an in-memory graph.
//
// Scene text is MLT-style XML: a root <mlt> element holding one <profile>,
// producers, playlists (including the "main_bin" playlist that carries the
// document properties and metadata) and tractors whose <track> children form
// the timeline. Parse builds a Graph from that text, optionally in a lenient
// mode that repairs known legacy damage; Serialize writes a Graph back out
// with file references made relative to a base folder.
//
// The generic Node tree is exported as well so callers that must rewrite
// elements the Graph does not model (profile conversion, for example) can work
// on the text structure directly.
package scene
