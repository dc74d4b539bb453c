package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"splice/internal/document"
	"splice/internal/history"
	"splice/internal/profiles"
	"splice/internal/session"
)

// terminalPrompter asks the session questions with huh forms. A prompt that
// fails or is aborted gets the conservative answer.
type terminalPrompter struct {
	ctx context.Context
}

func newTerminalPrompter(ctx context.Context) *terminalPrompter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &terminalPrompter{ctx: ctx}
}

func (p *terminalPrompter) run(fields ...huh.Field) bool {
	err := huh.NewForm(huh.NewGroup(fields...)).RunWithContext(p.ctx)
	return err == nil
}

func (p *terminalPrompter) confirm(title, description string) bool {
	var ok bool
	field := huh.NewConfirm().Title(title).Affirmative("Yes").Negative("No").Value(&ok)
	if description != "" {
		field.Description(description)
	}
	return p.run(field) && ok
}

func displayName(doc document.Snapshot) string {
	if doc.URL == "" {
		return "Untitled"
	}
	return filepath.Base(doc.URL)
}

func (p *terminalPrompter) ConfirmClose(doc document.Snapshot) session.CloseChoice {
	choice := session.CloseCancel
	field := huh.NewSelect[session.CloseChoice]().
		Title(fmt.Sprintf("Save changes to %s?", displayName(doc))).
		Options(
			huh.NewOption("Save", session.CloseSave),
			huh.NewOption("Discard changes", session.CloseDiscard),
			huh.NewOption("Cancel", session.CloseCancel),
		).
		Value(&choice)
	if !p.run(field) {
		return session.CloseCancel
	}
	return choice
}

func (p *terminalPrompter) SavePath(doc document.Snapshot) (string, bool) {
	var path string
	field := huh.NewInput().
		Title("Save project as").
		Placeholder("project.splice").
		Value(&path).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("a file name is required")
			}
			return nil
		})
	if !p.run(field) {
		return "", false
	}
	return strings.TrimSpace(path), true
}

func (p *terminalPrompter) OfferRecovery(offer session.RecoveryOffer) bool {
	return p.confirm(
		"Recover unsaved changes?",
		fmt.Sprintf("Autosaved data for %s from %s is newer than the project file.",
			filepath.Base(offer.Target), offer.ModTime.Local().Format("2006-01-02 15:04")),
	)
}

func (p *terminalPrompter) OpenFailed(f session.OpenFailure) session.OpenChoice {
	const recoverKey = "\x00recover"
	const declineKey = "\x00decline"
	var options []huh.Option[string]
	if !f.LenientTried {
		options = append(options, huh.NewOption("Try to recover the project", recoverKey))
	}
	for _, b := range f.Backups {
		options = append(options, huh.NewOption("Open backup from "+backupLabel(b), b.BackupPath))
	}
	options = append(options, huh.NewOption("Give up", declineKey))

	choice := declineKey
	field := huh.NewSelect[string]().
		Title("Could not open " + filepath.Base(f.Path)).
		Description(f.Err.Error()).
		Options(options...).
		Value(&choice)
	if !p.run(field) {
		return session.OpenChoice{Action: session.OpenDecline}
	}
	switch choice {
	case recoverKey:
		return session.OpenChoice{Action: session.OpenRecover}
	case declineKey:
		return session.OpenChoice{Action: session.OpenDecline}
	default:
		return session.OpenChoice{Action: session.OpenFromBackup, BackupPath: choice}
	}
}

func (p *terminalPrompter) ChooseBackup(projectPath string, backups []history.Backup) (string, bool) {
	if len(backups) == 0 {
		return "", false
	}
	options := make([]huh.Option[string], 0, len(backups))
	for _, b := range backups {
		options = append(options, huh.NewOption(backupLabel(b), b.BackupPath))
	}
	choice := backups[0].BackupPath
	field := huh.NewSelect[string]().
		Title("Restore a backup of " + filepath.Base(projectPath)).
		Options(options...).
		Value(&choice)
	if !p.run(field) {
		return "", false
	}
	return choice, true
}

func backupLabel(b history.Backup) string {
	return fmt.Sprintf("%s (%s)", b.CreatedAt.Local().Format("2006-01-02 15:04:05"), humanBytes(b.SizeBytes))
}

func (p *terminalPrompter) ConfirmOverwrite(path string) bool {
	return p.confirm(filepath.Base(path)+" already exists. Overwrite it?", path)
}

func (p *terminalPrompter) ConfirmRelocation(from, to string) bool {
	return p.confirm("Move project data next to the project file?", fmt.Sprintf("%s -> %s", from, to))
}

func (p *terminalPrompter) ConfirmRevert(doc document.Snapshot) bool {
	return p.confirm("Discard all changes to "+displayName(doc)+"?", "")
}

// Negotiate lets the user adjust the settings of a new project.
func (p *terminalPrompter) Negotiate(ctx context.Context, defaults session.Settings) (session.Settings, bool, error) {
	s := defaults
	names := profiles.Names()
	profileOptions := make([]huh.Option[string], 0, len(names))
	for _, name := range names {
		profileOptions = append(profileOptions, huh.NewOption(profiles.Describe(name), name))
	}
	video := strconv.Itoa(s.VideoTracks)
	audio := strconv.Itoa(s.AudioTracks)
	channels := s.AudioChannels

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Video profile").Options(profileOptions...).Value(&s.Profile),
			huh.NewInput().Title("Video tracks").Value(&video).Validate(trackCount),
			huh.NewInput().Title("Audio tracks").Value(&audio).Validate(trackCount),
			huh.NewSelect[int]().Title("Audio channels").Options(
				huh.NewOption("Stereo", 2),
				huh.NewOption("4 channels", 4),
				huh.NewOption("6 channels", 6),
			).Value(&channels),
			huh.NewConfirm().Title("Use proxy clips").Value(&s.EnableProxy),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return defaults, false, nil
		}
		return defaults, false, fmt.Errorf("project settings: %w", err)
	}
	s.VideoTracks, _ = strconv.Atoi(strings.TrimSpace(video))
	s.AudioTracks, _ = strconv.Atoi(strings.TrimSpace(audio))
	s.AudioChannels = channels
	return s, true, nil
}

func trackCount(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 || n > 99 {
		return errors.New("enter a number between 0 and 99")
	}
	return nil
}
