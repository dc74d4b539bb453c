package session

import (
	"fmt"
	"math"
	"strings"

	"splice/internal/document"
	"splice/internal/profiles"
)

// MarkModified is the edit-tracking hook: it flags the document modified and
// restarts the autosave timer. It waits for a running operation to finish.
func (c *Controller) MarkModified() {
	_ = c.edit(func(*document.Document) (bool, error) { return true, nil })
}

// SetProperty stores a document property and marks the document modified.
func (c *Controller) SetProperty(key, value string) error {
	return c.edit(func(doc *document.Document) (bool, error) {
		if err := doc.SetProperty(key, value); err != nil {
			return false, err
		}
		return true, nil
	})
}

// SetNotes replaces the project notes.
func (c *Controller) SetNotes(notes string) error {
	return c.edit(func(doc *document.Document) (bool, error) {
		if doc.Property(document.KeyNotes) == notes {
			return false, nil
		}
		doc.Properties.Set(document.KeyNotes, notes)
		return true, nil
	})
}

// AddNote appends a line to the project notes.
func (c *Controller) AddNote(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return c.edit(func(doc *document.Document) (bool, error) {
		appendNote(doc, text)
		return true, nil
	})
}

// AddPositionNote appends a note anchored at the current timeline position,
// formatted as a timecode in the project's frame rate.
func (c *Controller) AddPositionNote(text string) error {
	return c.edit(func(doc *document.Document) (bool, error) {
		tc := timecode(doc.Int(document.KeyPosition, 0), projectFPS(doc))
		appendNote(doc, strings.TrimSpace("["+tc+"] "+strings.TrimSpace(text)))
		return true, nil
	})
}

// SetBinEffectsDisabled toggles every effect applied to bin clips.
func (c *Controller) SetBinEffectsDisabled(disabled bool) error {
	return c.setFlag(document.KeyDisableBin, disabled)
}

// SetTimelineEffectsDisabled toggles every effect applied on the timeline.
func (c *Controller) SetTimelineEffectsDisabled(disabled bool) error {
	return c.setFlag(document.KeyDisableTimeline, disabled)
}

func (c *Controller) setFlag(key string, on bool) error {
	return c.edit(func(doc *document.Document) (bool, error) {
		if doc.Bool(key) == on {
			return false, nil
		}
		doc.Properties.Set(key, boolProperty(on))
		return true, nil
	})
}

// edit runs fn on the active document and marks it modified when fn reports
// a change. The autosave timer is touched after the lock is released so a
// forced autosave never finds the controller busy with the edit itself.
func (c *Controller) edit(fn func(doc *document.Document) (bool, error)) error {
	c.mu.Lock()
	if c.doc == nil {
		c.release()
		return ErrNoDocument
	}
	changed, err := fn(c.doc)
	if changed {
		c.doc.Modified = true
	}
	c.release()
	if err != nil {
		return err
	}
	if changed && c.scheduler != nil {
		c.scheduler.Touch()
	}
	return nil
}

func appendNote(doc *document.Document, line string) {
	notes := doc.Property(document.KeyNotes)
	if notes != "" && !strings.HasSuffix(notes, "\n") {
		notes += "\n"
	}
	doc.Properties.Set(document.KeyNotes, notes+line)
}

func projectFPS(doc *document.Document) float64 {
	if p, ok := profiles.Lookup(doc.Property(document.KeyProfile)); ok && p.FPS() > 0 {
		return p.FPS()
	}
	return 25
}

// timecode renders frames as HH:MM:SS:FF.
func timecode(frames int, fps float64) string {
	if frames < 0 {
		frames = 0
	}
	base := int(math.Round(fps))
	if base <= 0 {
		base = 25
	}
	ff := frames % base
	secs := frames / base
	return fmt.Sprintf("%02d:%02d:%02d:%02d", secs/3600, secs/60%60, secs%60, ff)
}
