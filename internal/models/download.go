package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
)

// DefaultBaseURL hosts the whisper.cpp ggml conversions.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// Model is a downloadable whisper ggml model.
type Model struct {
	Name   string // short name, e.g. "base.en"
	File   string
	SizeMB int
}

var catalog = map[string]Model{
	"tiny.en":        {Name: "tiny.en", File: "ggml-tiny.en.bin", SizeMB: 75},
	"base.en":        {Name: "base.en", File: "ggml-base.en.bin", SizeMB: 142},
	"small.en":       {Name: "small.en", File: "ggml-small.en.bin", SizeMB: 466},
	"medium.en":      {Name: "medium.en", File: "ggml-medium.en.bin", SizeMB: 1500},
	"large-v3-turbo": {Name: "large-v3-turbo", File: "ggml-large-v3-turbo.bin", SizeMB: 1600},
}

// Catalog returns the known models, smallest first.
func Catalog() []Model {
	out := make([]Model, 0, len(catalog))
	for _, m := range catalog {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SizeMB < out[j].SizeMB })
	return out
}

// Lookup returns the model with the given short name.
func Lookup(name string) (Model, error) {
	m, ok := catalog[name]
	if !ok {
		return Model{}, fmt.Errorf("models: unknown model %q", name)
	}
	return m, nil
}

// PathFor returns where m lives inside dir.
func PathFor(dir string, m Model) string {
	return filepath.Join(dir, m.File)
}

// Installed returns the catalog models present in dir, smallest first.
func Installed(dir string) []Model {
	var out []Model
	for _, m := range Catalog() {
		if info, err := os.Stat(PathFor(dir, m)); err == nil && info.Size() > 0 {
			out = append(out, m)
		}
	}
	return out
}

// Downloader fetches models over HTTP.
type Downloader struct {
	BaseURL string
	Client  *http.Client
	// Progress receives a carriage-return progress line. nil disables it.
	Progress io.Writer
}

// Download fetches the named model into dir and returns its path. An
// existing non-empty file is left alone.
func (d *Downloader) Download(ctx context.Context, name, dir string) (string, error) {
	m, err := Lookup(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("models: creating models dir: %w", err)
	}

	destPath := PathFor(dir, m)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		return destPath, nil
	}

	base := d.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+m.File, nil)
	if err != nil {
		return "", fmt.Errorf("models: building request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("models: downloading %s: %w", m.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("models: download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("models: creating temp file: %w", err)
	}

	var w io.Writer = f
	if d.Progress != nil {
		w = &progressWriter{writer: f, out: d.Progress, total: resp.ContentLength, label: m.File}
	}

	_, err = io.Copy(w, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("models: writing model file: %w", err)
	}
	if d.Progress != nil {
		fmt.Fprintln(d.Progress)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("models: moving model file: %w", err)
	}
	return destPath, nil
}

// progressWriter wraps an io.Writer and reports download progress to out.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
