package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"splice/internal/config"
	"splice/internal/document"
)

func projectArg(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("project path is required")
	}
	return config.ExpandPath(arg)
}

func humanBytes(v int64) string {
	const unit = 1024
	if v < unit {
		return fmt.Sprintf("%d B", v)
	}
	div := int64(unit)
	exp := 0
	for n := v / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(v) / float64(div)
	return fmt.Sprintf("%.1f %ciB", value, "KMGTPEZY"[exp])
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// projectSummary is the JSON shape of a project snapshot.
type projectSummary struct {
	ID            string            `json:"id"`
	Path          string            `json:"path,omitempty"`
	Modified      bool              `json:"modified"`
	DataFolder    string            `json:"data_folder"`
	Companion     string            `json:"companion,omitempty"`
	NeedsBackup   bool              `json:"needs_backup,omitempty"`
	Properties    map[string]string `json:"properties"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	TimelineState string            `json:"state"`
}

func summarize(doc document.Snapshot, state string) projectSummary {
	s := projectSummary{
		ID:            doc.ID,
		Path:          doc.URL,
		Modified:      doc.Modified,
		DataFolder:    doc.DataFolder,
		Companion:     doc.CompanionPath,
		NeedsBackup:   doc.BackupRequested,
		Properties:    make(map[string]string),
		TimelineState: state,
	}
	for _, p := range doc.StableProperties() {
		s.Properties[p.Name] = p.Value
	}
	if len(doc.Metadata) > 0 {
		s.Metadata = make(map[string]string, len(doc.Metadata))
		for _, p := range doc.Metadata {
			s.Metadata[p.Name] = p.Value
		}
	}
	return s
}

func printSummary(out io.Writer, doc document.Snapshot, state string) {
	path := doc.URL
	if path == "" {
		path = "(untitled)"
	}
	fmt.Fprintf(out, "Project:     %s\n", path)
	fmt.Fprintf(out, "Document ID: %s\n", doc.ID)
	fmt.Fprintf(out, "State:       %s\n", state)
	fmt.Fprintf(out, "Modified:    %s\n", yesNo(doc.Modified))
	fmt.Fprintf(out, "Data folder: %s\n", doc.DataFolder)
	props := doc.StableProperties()
	if len(props) == 0 {
		return
	}
	rows := make([][]string, 0, len(props))
	for _, p := range props {
		rows = append(rows, []string{p.Name, p.Value})
	}
	fmt.Fprintln(out, renderTable([]column{left("Property"), left("Value")}, rows))
}
