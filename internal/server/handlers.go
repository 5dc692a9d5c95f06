package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/conneroisu/tagforge/internal/build"
	"github.com/conneroisu/tagforge/internal/errors"
	"github.com/conneroisu/tagforge/internal/validation"
	"github.com/conneroisu/tagforge/internal/version"
)

// maxRenderBody bounds the markup accepted by /api/render.
const maxRenderBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleDocument serves the source tree. Documents matching the build
// patterns are expanded and get the live reload script; anything else is
// served as is.
func (s *PreviewServer) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	rel := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if rel == "" {
		rel = "."
	}
	if err := validation.ValidateRelativePath(rel); err != nil {
		http.Error(w, "Invalid path", http.StatusBadRequest)

		return
	}

	full := filepath.Join(s.src, filepath.FromSlash(rel))
	if inside(full, s.components) {
		http.NotFound(w, r)

		return
	}

	info, err := os.Stat(full)
	if err == nil && info.IsDir() {
		index := filepath.Join(full, "index.html")
		if _, err := os.Stat(index); err != nil {
			if rel == "." {
				s.handleIndex(w, r)
			} else {
				http.NotFound(w, r)
			}

			return
		}
		full = index
		rel = path.Join(rel, "index.html")
	} else if err != nil {
		http.NotFound(w, r)

		return
	}

	if !build.MatchPatterns(s.config.Build.Patterns, rel) {
		http.ServeFile(w, r, full)

		return
	}

	content, err := os.ReadFile(full)
	if err != nil {
		http.Error(w, "Failed to read document", http.StatusInternalServerError)

		return
	}

	out, err := s.engine.ProcessMarkup(string(content))
	s.recordError(rel, err)
	if err != nil {
		s.logger.Error(r.Context(), err, "expansion failed", "file", rel)
		s.broadcastError(rel, err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, errorPage(rel, err))

		return
	}

	w.Header().Set("Content-Type", contentType(rel))
	_, _ = io.WriteString(w, injectReloadScript(out))
}

func (s *PreviewServer) broadcastError(rel string, err error) {
	collector := errors.NewErrorCollector()
	collector.Add(errors.NewBuildErrorFromError(rel, err))

	go s.broadcastMessage(UpdateMessage{
		Type:      MessageError,
		Target:    rel,
		Content:   collector.ErrorOverlay(),
		Timestamp: time.Now(),
	})
}

func contentType(rel string) string {
	switch strings.ToLower(path.Ext(rel)) {
	case ".xml", ".svg":
		return "application/xml; charset=utf-8"
	default:
		return "text/html; charset=utf-8"
	}
}

func inside(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)

	return err == nil && filepath.IsLocal(rel)
}

func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	documents, err := s.processor.Match(s.config.Build.Patterns, s.src, s.config.Build.Dest)
	if err != nil {
		s.logger.Warn(r.Context(), err, "listing documents")
	}
	names, err := s.engine.BuildTagVocabulary()
	if err != nil {
		s.logger.Warn(r.Context(), err, "listing components")
	}

	page, err := indexPage(documents, names)
	if err != nil {
		http.Error(w, "Failed to render index", http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, injectReloadScript(page))
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	status := "healthy"
	if len(s.LastErrors()) > 0 {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"components": s.engine.Registry().Count(),
		"clients":    s.ClientCount(),
		"errors":     len(s.LastErrors()),
	})
}

type componentJSON struct {
	Name     string    `json:"name"`
	File     string    `json:"file,omitempty"`
	Variants []string  `json:"variants,omitempty"`
	LastMod  time.Time `json:"last_mod"`
	Hash     string    `json:"hash"`
}

func (s *PreviewServer) handleComponents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	if _, err := s.engine.BuildTagVocabulary(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})

		return
	}

	components := s.engine.Registry().GetAll()
	out := make([]componentJSON, 0, len(components))
	for _, c := range components {
		out = append(out, componentJSON{
			Name:     c.Name,
			File:     c.FilePath,
			Variants: c.Variants,
			LastMod:  c.LastMod,
			Hash:     c.Hash,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	writeJSON(w, http.StatusOK, out)
}

func (s *PreviewServer) handleErrors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	list := s.LastErrors()
	type errorJSON struct {
		File    string `json:"file"`
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
	out := make([]errorJSON, 0, len(list))
	for _, be := range list {
		out = append(out, errorJSON{File: be.File, Tag: be.Tag, Message: be.Message})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"errors": out,
		"count":  len(out),
	})
}

// handleRender expands the markup in the request body.
func (s *PreviewServer) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)

		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRenderBody))
	if err != nil {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)

		return
	}

	out, err := s.engine.ProcessMarkup(string(body))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})

		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

func sortBuildErrors(list []errors.BuildError) {
	sort.Slice(list, func(i, j int) bool { return list[i].File < list[j].File })
}
