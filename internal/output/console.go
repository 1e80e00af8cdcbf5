package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

type ConsoleSink struct {
	writer io.Writer
	format string // "text", "json"
	mu     sync.Mutex
}

func NewConsoleSink(w io.Writer, format string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}
	return &ConsoleSink{writer: w, format: format}
}

func (s *ConsoleSink) Write(r SaveResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json":
		encoder := json.NewEncoder(s.writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(r); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	case "text":
		if err := s.writeText(r); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) writeText(r SaveResult) error {
	target := fmt.Sprintf("%s/%s:%s", r.Owner, r.Repo, r.Path)
	if r.Branch != "" {
		target += "@" + r.Branch
	}
	if _, err := statusColor(r.Status).Fprintf(s.writer, "[%s]", r.Status); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.writer, " %s", target); err != nil {
		return err
	}

	switch {
	case r.Status == StatusSaved && r.Sha != "":
		if _, err := fmt.Fprintf(s.writer, " sha=%s", r.Sha); err != nil {
			return err
		}
	case r.Message != "":
		if _, err := fmt.Fprintf(s.writer, " - %s", r.Message); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(s.writer); err != nil {
		return err
	}

	for _, e := range r.Errors {
		line := fmt.Sprintf("  %s: %s", e.Field, e.Code)
		if e.Message != "" {
			line += " (" + e.Message + ")"
		}
		if _, err := fmt.Fprintln(s.writer, line); err != nil {
			return err
		}
	}
	return nil
}

func statusColor(st Status) *color.Color {
	switch st {
	case StatusSaved:
		return color.New(color.FgGreen, color.Bold)
	case StatusRejected:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
