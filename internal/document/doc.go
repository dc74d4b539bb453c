// Package document models the single active project.
//
// A Document carries the project identity, the bound project path, the
// modified flag, the temp-data folder, and two ordered string maps: the
// document properties (recognized keys are listed in properties.go) and the
// free-form metadata. Typed values are parsed at the edges through the Int
// and Bool helpers; everything is stored as text so unknown keys survive a
// load/save cycle untouched.
//
// Documents are owned by the session controller. Nothing in this package
// synchronizes access.
package document
