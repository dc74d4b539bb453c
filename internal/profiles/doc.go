// Package profiles holds the catalog of video profiles a project can use.
//
// Profiles are looked up by name (for example "atsc_1080p_25") and converted
// into the scene.Profile descriptor embedded in project files. DefaultForZone
// picks a first-run default from the local time zone: NTSC regions get 29.97
// fps, everyone else 25 fps.
package profiles
