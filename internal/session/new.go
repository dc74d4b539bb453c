package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"splice/internal/document"
	"splice/internal/logging"
	"splice/internal/notifications"
	"splice/internal/profiles"
	"splice/internal/recovery"
	"splice/internal/scene"
	"splice/internal/services"
)

// New closes the current document and starts a blank, untitled one.
func (c *Controller) New(ctx context.Context, opts NewOptions) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	return c.newLocked(ctx, opts, true)
}

func (c *Controller) newLocked(ctx context.Context, opts NewOptions, confirm bool) error {
	ctx = services.WithOperation(ctx, "new")
	settings := c.defaultSettings(opts.Profile)
	if opts.Interactive && c.settings != nil {
		chosen, ok, err := c.settings.Negotiate(ctx, settings)
		if err != nil {
			return fmt.Errorf("negotiate project settings: %w", err)
		}
		if !ok {
			return ErrCanceled
		}
		settings = chosen
	}
	if _, ok := profiles.Lookup(settings.Profile); !ok {
		return services.Wrap(services.ErrValidation, "session", "new", fmt.Sprintf("unknown profile %q", settings.Profile), nil)
	}
	proceed, err := c.closeLocked(ctx, CloseOptions{ConfirmSave: confirm})
	if err != nil {
		return err
	}
	if !proceed {
		return ErrCanceled
	}
	return c.newDocumentLocked(ctx, settings)
}

func (c *Controller) defaultSettings(profile string) Settings {
	if profile == "" {
		profile = c.cfg.Project.DefaultProfile
	}
	if profile == "" {
		profile = profiles.DefaultForLocal()
	}
	return Settings{
		Profile:       profile,
		VideoTracks:   c.cfg.Project.VideoTracks,
		AudioTracks:   c.cfg.Project.AudioTracks,
		AudioChannels: c.cfg.AudioChannelCount(),
		EnableProxy:   c.cfg.Project.EnableProxy,
	}
}

// newDocumentLocked builds the blank document. The caller has closed the
// previous one.
func (c *Controller) newDocumentLocked(ctx context.Context, s Settings) error {
	profile, ok := profiles.Lookup(s.Profile)
	if !ok {
		return services.Wrap(services.ErrValidation, "session", "new", fmt.Sprintf("unknown profile %q", s.Profile), nil)
	}
	c.setState(Loading)

	props := scene.NewProperties(
		scene.Property{Name: document.KeyProfile, Value: s.Profile},
		scene.Property{Name: document.KeyVideoTracks, Value: strconv.Itoa(s.VideoTracks)},
		scene.Property{Name: document.KeyAudioTracks, Value: strconv.Itoa(s.AudioTracks)},
		scene.Property{Name: document.KeyAudioChannels, Value: strconv.Itoa(s.AudioChannels)},
	)
	c.proxyProperties(props, s.EnableProxy)
	meta := &scene.Properties{}
	for _, k := range slices.Sorted(maps.Keys(s.Metadata)) {
		meta.Set(k, s.Metadata[k])
	}

	doc := document.New(document.NewID(c.clock.Now()), props, meta)
	doc.TempFolder = c.folderPolicy().Resolve("")
	doc.SameProjectFolder = c.cfg.Project.SameProjectFolder
	ctx = services.WithDocumentID(ctx, doc.ID)

	tl, err := c.builder.Build(scene.NewGraph(profile, s.VideoTracks, s.AudioTracks), profile, c.progress(ctx))
	if err != nil {
		c.setState(NoDocument)
		return fmt.Errorf("build blank timeline: %w", err)
	}

	comp, err := recovery.Create(c.cfg.Paths.StaleDir, c.cfg.UntitledPath())
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "autosave companion unavailable", "companion_create_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "unsaved changes will not be recoverable after a crash"),
			logging.String(logging.FieldErrorHint, "check permissions of the stale directory"),
		)
	}
	doc.Companion = comp
	c.activate(ctx, doc, tl)
	return nil
}

func (c *Controller) proxyProperties(props *scene.Properties, enable bool) {
	p := c.cfg.Project
	props.Set(document.KeyEnableProxy, boolProperty(enable))
	props.Set(document.KeyGenerateProxy, boolProperty(p.GenerateProxy))
	props.Set(document.KeyProxyMinSize, strconv.Itoa(p.ProxyMinSize))
	if p.ProxyParams != "" {
		props.Set(document.KeyProxyParams, p.ProxyParams)
	}
	if p.ProxyExtension != "" {
		props.Set(document.KeyProxyExtension, p.ProxyExtension)
	}
	props.Set(document.KeyProxyResize, strconv.Itoa(p.ProxyResize))
	props.Set(document.KeyGenerateImageProxy, boolProperty(p.GenerateImageProxy))
	props.Set(document.KeyProxyImageMinSize, strconv.Itoa(p.ProxyImageMinSize))
}

func boolProperty(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (c *Controller) advise(ctx context.Context, message string) {
	c.publish(ctx, notifications.EventAdvisory, notifications.Payload{"message": message})
}
