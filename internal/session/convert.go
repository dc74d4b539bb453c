package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"splice/internal/config"
	"splice/internal/document"
	"splice/internal/fileutil"
	"splice/internal/logging"
	"splice/internal/profiles"
	"splice/internal/scene"
	"splice/internal/services"
)

// ConvertProfile writes a copy of the active project converted to the named
// profile, then opens it. A modified project is first saved or, when the
// user chooses not to save, converted with its edits in memory. Guide positions and clip lengths are rescaled by
// the frame rate ratio. The returned path is the converted project.
func (c *Controller) ConvertProfile(ctx context.Context, name string) (string, error) {
	if err := c.begin(); err != nil {
		return "", err
	}
	defer c.release()
	doc := c.doc
	if doc == nil || c.tl == nil {
		return "", ErrNoDocument
	}
	ctx = services.WithDocumentID(services.WithOperation(ctx, "convert"), doc.ID)
	target, ok := profiles.Lookup(name)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "session", "convert", fmt.Sprintf("unknown profile %q", name), nil)
	}
	current := c.tl.Profile
	if current.FPS() <= 0 {
		return "", services.Wrap(services.ErrValidation, "session", "convert", "current profile has no frame rate", nil)
	}
	ratio := target.FPS() / current.FPS()

	// Unsaved edits are either saved first or carried into the converted
	// copy only; the project file itself stays as it is on disk.
	if doc.Modified {
		proceed, err := c.resolveUnsavedLocked(ctx, doc)
		if err != nil {
			return "", err
		}
		if !proceed {
			return "", ErrCanceled
		}
		if doc = c.doc; doc == nil {
			return "", ErrNoDocument
		}
	}

	dir := doc.ProjectDir()
	base := "untitled"
	if doc.URL != "" {
		base = strings.TrimSuffix(filepath.Base(doc.URL), filepath.Ext(doc.URL))
	} else {
		dir = c.cfg.Paths.ProjectDir
	}
	output := filepath.Join(dir, base+"-"+profiles.FPSSuffix(target.FPS())+config.ProjectExtension)
	if output == doc.URL {
		return "", services.Wrap(services.ErrValidation, "session", "convert", "project already uses this frame rate", nil)
	}

	overlay, _ := c.saveOverlay(ctx, doc, output)
	text, err := c.serializeWith(overlay, dir)
	if err != nil {
		return "", fmt.Errorf("serialize project: %w", err)
	}
	root, _, err := scene.DecodeTree(text, false)
	if err != nil {
		return "", err
	}
	rewriteProfile(root, strings.ToLower(strings.TrimSpace(name)), target)
	if err := rescaleGuides(root, ratio); err != nil {
		logging.WithContext(ctx, c.logger).Warn("guides not converted", logging.Error(err))
	}
	rescaled := rescaleLengths(root, ratio)

	if !c.confirmOverwrite(output) {
		return "", ErrCanceled
	}
	if err := fileutil.WriteFileAtomic(output, []byte(scene.EncodeTree(root)), 0o644); err != nil {
		return "", services.Wrap(services.ErrIO, "session", "convert", output, err)
	}
	if doc.URL != "" {
		c.copySidecar(doc.URL+".srt", output+".srt")
	}
	logging.WithContext(ctx, c.logger).Info("project converted",
		logging.String("profile", name),
		logging.Float64("fps_ratio", ratio),
		logging.Int("producers_rescaled", rescaled),
		logging.String(logging.FieldPath, output),
	)
	if err := c.openLocked(ctx, output, openOptions{}); err != nil {
		return output, err
	}
	c.advise(ctx, "Project profile changed to "+target.Description+".")
	return output, nil
}

func rewriteProfile(root *scene.Node, name string, p scene.Profile) {
	if n := root.Child("profile"); n != nil {
		n.SetAttr("frame_rate_num", strconv.Itoa(p.FrameRateNum))
		n.SetAttr("frame_rate_den", strconv.Itoa(p.FrameRateDen))
		n.SetAttr("display_aspect_num", strconv.Itoa(p.DisplayAspectNum))
		n.SetAttr("display_aspect_den", strconv.Itoa(p.DisplayAspectDen))
		n.SetAttr("sample_aspect_num", strconv.Itoa(p.SampleAspectNum))
		n.SetAttr("sample_aspect_den", strconv.Itoa(p.SampleAspectDen))
		n.SetAttr("colorspace", strconv.Itoa(p.Colorspace))
		n.SetAttr("progressive", boolProperty(p.Progressive))
		n.SetAttr("description", p.Description)
		n.SetAttr("width", strconv.Itoa(p.Width))
		n.SetAttr("height", strconv.Itoa(p.Height))
	}
	if bin := binNode(root); bin != nil {
		bin.SetProperty(scene.DocPropertyPrefix+document.KeyProfile, name)
	}
}

func binNode(root *scene.Node) *scene.Node {
	for _, pl := range root.Descendants("playlist") {
		if id, _ := pl.Attr("id"); id == scene.BinID {
			return pl
		}
	}
	return nil
}

func rescaleGuides(root *scene.Node, ratio float64) error {
	bin := binNode(root)
	if bin == nil {
		return nil
	}
	key := scene.DocPropertyPrefix + document.KeyGuides
	raw, ok := bin.Property(key)
	if !ok || raw == "" {
		return nil
	}
	guides, _, err := document.ParseGuides(raw)
	if err != nil {
		return err
	}
	encoded, err := document.EncodeGuides(document.RescaleGuides(guides, ratio))
	if err != nil {
		return err
	}
	bin.SetProperty(key, encoded)
	return nil
}

// rescaleLengths converts producer lengths to the new frame rate. Slideshows
// compute their length from the frame rate, so it is reset instead.
func rescaleLengths(root *scene.Node, ratio float64) int {
	nodes := append(root.Descendants("producer"), root.Descendants("chain")...)
	n := 0
	for _, e := range nodes {
		if id, _ := e.Attr("id"); id == scene.BackgroundID {
			continue
		}
		service, _ := e.Property("mlt_service")
		if _, ttl := e.Property("ttl"); service == "qimage" && ttl {
			e.SetProperty("length", "0")
			e.RemoveProperty("splice:duration")
			e.SetAttr("out", "-1")
			n++
			continue
		}
		raw, ok := e.Property("length")
		if !ok {
			continue
		}
		length, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || length <= 0 || length >= math.MaxInt32 {
			continue
		}
		e.SetProperty("length", strconv.Itoa(int(math.Round(float64(length)*ratio))))
		n++
	}
	return n
}

func (c *Controller) copySidecar(src, dst string) {
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err := fileutil.CopyFile(src, dst); err != nil {
		c.logger.Warn("subtitle file not copied", logging.String("source", src), logging.Error(err))
	}
}
