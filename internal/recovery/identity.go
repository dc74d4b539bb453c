package recovery

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// DataExtension is the extension of companion data files.
	DataExtension = ".splice"
	// LockExtension is the extension of companion lock files.
	LockExtension = ".lock"
)

// Identity returns the companion identity for a project path: the hex md5 of
// its NFC-normalized file name.
func Identity(target string) string {
	name := norm.NFC.String(filepath.Base(target))
	sum := md5.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}

// stem is "<identity>-<instance>", shared by the data and lock files.
func stem(identity, instance string) string {
	return identity + "-" + instance
}

// parseStem splits a companion file name into identity and instance.
func parseStem(name string) (identity, instance string, ok bool) {
	base := strings.TrimSuffix(strings.TrimSuffix(name, DataExtension), LockExtension)
	if base == name {
		return "", "", false
	}
	identity, instance, ok = strings.Cut(base, "-")
	if !ok || len(identity) != md5.Size*2 || instance == "" {
		return "", "", false
	}
	return identity, instance, true
}
