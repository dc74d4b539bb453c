// Package archive detects and unpacks archived projects.
//
// A project archive is a zip or a gzip-compressed tar holding one project
// file plus its media. Detect sniffs content with mimetype rather than
// trusting the extension; Extract unpacks into a folder and returns the
// project file found at the shallowest level.
package archive
