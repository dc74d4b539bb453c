package document

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"splice/internal/recovery"
	"splice/internal/scene"
)

// CacheFolderName is the data folder created beside the project file when
// the same-folder storage policy is active.
const CacheFolderName = "cachefiles"

// Document is the active project.
type Document struct {
	// ID is the generation-time identity, also the name of the data folder.
	ID string
	// UUID keys the live timeline and the thumbnail cache.
	UUID uuid.UUID
	// URL is the bound project path; empty while unsaved.
	URL      string
	Modified bool
	// TempFolder is the base folder; project data lives in TempFolder/ID.
	TempFolder string
	Properties *scene.Properties
	Metadata   *scene.Properties
	Companion  *recovery.Companion
	// LoadedModTime is the project file mtime at load.
	LoadedModTime time.Time
	// BackupRequested asks the next explicit save to keep a safety copy.
	BackupRequested   bool
	SameProjectFolder bool
}

// NewID returns a millisecond epoch identity.
func NewID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10)
}

// ValidateID accepts only the numeric identities NewID produces.
func ValidateID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("document id is empty")
	}
	if filepath.Clean(id) != id || strings.ContainsRune(id, filepath.Separator) {
		return fmt.Errorf("invalid document id %q", id)
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

// New builds a document with the given identity and property set. The
// documentid property is kept in sync with id.
func New(id string, props, metadata *scene.Properties) *Document {
	if props == nil {
		props = &scene.Properties{}
	}
	if metadata == nil {
		metadata = &scene.Properties{}
	}
	props.Set(KeyDocumentID, id)
	return &Document{
		ID:         id,
		UUID:       uuid.New(),
		Properties: props,
		Metadata:   metadata,
	}
}

// FromGraph builds a document from the properties stored on a parsed scene.
// A missing documentid is generated from now.
func FromGraph(g *scene.Graph, now time.Time) *Document {
	props := &scene.Properties{}
	metadata := &scene.Properties{}
	if g != nil && g.Bin != nil {
		for _, p := range g.Bin.Properties.All() {
			switch {
			case strings.HasPrefix(p.Name, scene.DocPropertyPrefix):
				props.Set(strings.TrimPrefix(p.Name, scene.DocPropertyPrefix), p.Value)
			case strings.HasPrefix(p.Name, scene.DocMetadataPrefix):
				metadata.Set(strings.TrimPrefix(p.Name, scene.DocMetadataPrefix), p.Value)
			}
		}
	}
	id := props.Value(KeyDocumentID)
	if ValidateID(id) != nil {
		id = NewID(now)
	}
	return New(id, props, metadata)
}

// Overlay returns the properties and metadata to merge into serialized text.
func (d *Document) Overlay() *scene.Overlay {
	return &scene.Overlay{Properties: d.Properties.Clone(), Metadata: d.Metadata.Clone()}
}

// Property returns the named property or "".
func (d *Document) Property(key string) string {
	return d.Properties.Value(key)
}

// SetProperty stores a property. Setting documentid is refused.
func (d *Document) SetProperty(key, value string) error {
	if key == KeyDocumentID {
		return errors.New("documentid is read-only")
	}
	d.Properties.Set(key, value)
	return nil
}

// Int parses an integer property, returning fallback when absent or invalid.
func (d *Document) Int(key string, fallback int) int {
	v, ok := d.Properties.Get(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

// Bool parses a 0/1 style property.
func (d *Document) Bool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(d.Properties.Value(key))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// DataFolder is the folder holding this document's proxies, thumbnails and previews.
func (d *Document) DataFolder() string {
	if d.TempFolder == "" {
		return ""
	}
	return filepath.Join(d.TempFolder, d.ID)
}

// ProxyFolder is the proxy subfolder of DataFolder.
func (d *Document) ProxyFolder() string {
	if d.TempFolder == "" {
		return ""
	}
	return filepath.Join(d.DataFolder(), "proxy")
}

// ProjectDir is the folder holding the project file, or "" when unsaved.
func (d *Document) ProjectDir() string {
	if d.URL == "" {
		return ""
	}
	return filepath.Dir(d.URL)
}

// Description is the display name of the document.
func (d *Document) Description() string {
	if d.URL == "" {
		return "Untitled"
	}
	return filepath.Base(d.URL)
}

// Guides decodes the guides property.
func (d *Document) Guides() ([]Guide, error) {
	guides, _, err := ParseGuides(d.Properties.Value(KeyGuides))
	return guides, err
}

// Snapshot is a read-only copy of document state.
type Snapshot struct {
	ID              string
	UUID            uuid.UUID
	URL             string
	Modified        bool
	TempFolder      string
	DataFolder      string
	CompanionPath   string
	Properties      []scene.Property
	Metadata        []scene.Property
	BackupRequested bool
}

// Snapshot copies the current state for callers outside the controller.
func (d *Document) Snapshot() Snapshot {
	s := Snapshot{
		ID:              d.ID,
		UUID:            d.UUID,
		URL:             d.URL,
		Modified:        d.Modified,
		TempFolder:      d.TempFolder,
		DataFolder:      d.DataFolder(),
		Properties:      d.Properties.All(),
		Metadata:        d.Metadata.All(),
		BackupRequested: d.BackupRequested,
	}
	if d.Companion != nil {
		s.CompanionPath = d.Companion.Path()
	}
	return s
}

// StableProperties returns the properties without transient keys.
func (s Snapshot) StableProperties() []scene.Property {
	out := make([]scene.Property, 0, len(s.Properties))
	for _, p := range s.Properties {
		if !IsTransient(p.Name) {
			out = append(out, p)
		}
	}
	return out
}

// FolderPolicy decides where a document keeps its temp data.
type FolderPolicy struct {
	// SameProjectFolder stores data in a cachefiles folder beside the project file.
	SameProjectFolder bool
	// CustomFolder, when set, is used for every project.
	CustomFolder string
	// CacheDir is the fallback location.
	CacheDir string
}

// Resolve returns the base folder for a project bound to projectPath.
func (p FolderPolicy) Resolve(projectPath string) string {
	switch {
	case p.SameProjectFolder && projectPath != "":
		return filepath.Join(filepath.Dir(projectPath), CacheFolderName)
	case p.CustomFolder != "":
		return p.CustomFolder
	default:
		return p.CacheDir
	}
}
