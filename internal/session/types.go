package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"splice/internal/archive"
	"splice/internal/document"
	"splice/internal/history"
	"splice/internal/scene"
	"splice/internal/services"
	"splice/internal/timeline"
)

// State is the controller's lifecycle state.
type State int

const (
	NoDocument State = iota
	Loading
	Active
	Saving
	Closing
	RecoveryPrompt
	// Relocating is Active with a folder move running in the background.
	Relocating
)

func (s State) String() string {
	switch s {
	case NoDocument:
		return "no_document"
	case Loading:
		return "loading"
	case Active:
		return "active"
	case Saving:
		return "saving"
	case Closing:
		return "closing"
	case RecoveryPrompt:
		return "recovery_prompt"
	case Relocating:
		return "relocating"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy rejects an operation while another one holds the controller.
	ErrBusy = services.ErrBusy
	// ErrNoDocument is returned by operations that need an active document.
	ErrNoDocument = errors.New("no active document")
	// ErrNoPath is returned when saving or reverting a document that was never saved.
	ErrNoPath = errors.New("document has no project path")
	// ErrCanceled reports that a prompt was declined.
	ErrCanceled = errors.New("operation canceled")
)

// CloseChoice answers the unsaved-changes prompt.
type CloseChoice int

const (
	CloseCancel CloseChoice = iota
	CloseSave
	CloseDiscard
)

// OpenAction is the answer to an open failure.
type OpenAction int

const (
	OpenDecline OpenAction = iota
	OpenRecover
	OpenFromBackup
)

// OpenChoice selects how to continue after a failed open.
type OpenChoice struct {
	Action OpenAction
	// BackupPath is the file to load for OpenFromBackup.
	BackupPath string
}

// OpenFailure describes a failed parse or build.
type OpenFailure struct {
	Path    string
	Err     error
	Backups []history.Backup
	// LenientTried is set once a lenient parse has already failed.
	LenientTried bool
}

// RecoveryOffer describes a stale companion newer than the project file.
type RecoveryOffer struct {
	Target    string
	Companion string
	ModTime   time.Time
}

// Prompter is the user-facing side of the controller. Implementations must
// not call back into the Controller.
type Prompter interface {
	ConfirmClose(doc document.Snapshot) CloseChoice
	// SavePath asks where to save an untitled document.
	SavePath(doc document.Snapshot) (string, bool)
	OfferRecovery(offer RecoveryOffer) bool
	OpenFailed(failure OpenFailure) OpenChoice
	ChooseBackup(projectPath string, backups []history.Backup) (string, bool)
	ConfirmOverwrite(path string) bool
	ConfirmRelocation(from, to string) bool
	ConfirmRevert(doc document.Snapshot) bool
}

// Settings are the values a new project starts from.
type Settings struct {
	Profile       string
	VideoTracks   int
	AudioTracks   int
	AudioChannels int
	EnableProxy   bool
	Metadata      map[string]string
}

// SettingsNegotiator lets the user adjust new-project settings. Returning
// false cancels the new project.
type SettingsNegotiator interface {
	Negotiate(ctx context.Context, defaults Settings) (Settings, bool, error)
}

// Builder materializes scenes. *timeline.Builder satisfies it.
type Builder interface {
	Build(g *scene.Graph, profile scene.Profile, progress timeline.ProgressFunc) (*timeline.Timeline, error)
}

// Unpacker detects and extracts project archives. archive.Unpacker satisfies it.
type Unpacker interface {
	Detect(path string) (archive.Kind, error)
	Extract(ctx context.Context, path, dest, projectExt string) (string, error)
}

// History records opened projects. *history.Store satisfies it.
type History interface {
	RecordOpened(ctx context.Context, p history.Project) error
	Last(ctx context.Context) (history.Project, bool, error)
}

// Backups keeps copies of project files. *backup.Manager satisfies it.
type Backups interface {
	Create(ctx context.Context, projectPath, documentID string) (history.Backup, bool, error)
	List(ctx context.Context, projectPath string) ([]history.Backup, error)
}

// Thumbnails is the thumbnail cache. *thumbcache.Cache satisfies it.
type Thumbnails interface {
	Clear(doc uuid.UUID) error
	Retain(doc uuid.UUID, keep []string) (int, error)
}

// NewOptions configures New.
type NewOptions struct {
	// Profile names the video profile. Empty uses the configured default.
	Profile string
	// Interactive runs the SettingsNegotiator before creating the document.
	Interactive bool
}

// CloseOptions configures Close.
type CloseOptions struct {
	// ConfirmSave asks the Prompter before discarding unsaved changes.
	ConfirmSave bool
	// Quitting marks a close during process shutdown.
	Quitting bool
	// SessionSave keeps the document and its companion data for session
	// restore. Only honored together with Quitting.
	SessionSave bool
}
