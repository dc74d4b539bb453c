// Package main hosts the splice CLI entrypoint and command graph.
//
// Each command drives one session controller for the lifetime of the
// process: it opens or creates a project, runs the requested operation and
// shuts the controller down again. Prompts go through huh when stdin is a
// terminal and fall back to flag-driven answers otherwise.
//
// Project behavior belongs in internal/session and its collaborators; this
// package only wires configuration, logging and storage together and renders
// results.
package main
