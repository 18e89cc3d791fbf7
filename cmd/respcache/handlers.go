package main

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/jonwraymond/respcache/auth"
	"github.com/jonwraymond/respcache/observe"
)

type subjectList struct {
	mu    sync.RWMutex
	names []string
}

func newSubjectList(names ...string) *subjectList {
	return &subjectList{names: names}
}

func (l *subjectList) all() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.names)
}

// add reports false when name is already present.
func (l *subjectList) add(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slices.Contains(l.names, name) {
		return false
	}
	l.names = append(l.names, name)
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *app) listSubjects(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "private, max-age=0")
	writeJSON(w, http.StatusOK, map[string]any{
		"subjects":  a.subjects.all(),
		"principal": auth.PrincipalFromContext(r.Context()),
	})
}

// createSubject adds a subject and clears the response cache, since every
// cached list is now out of date.
func (a *app) createSubject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_body"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name_required"})
		return
	}
	if !a.subjects.add(name) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "exists"})
		return
	}

	removed := a.store.Clear(r.Context())
	a.logger.Info(r.Context(), "subject created",
		observe.F("subject", name),
		observe.F("invalidated", removed),
	)
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

func (a *app) googleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"client_id": a.cfg.Auth.GoogleClientID,
		"issuer":    a.cfg.Auth.Issuer,
		"enabled":   a.cfg.Auth.GoogleClientID != "",
	})
}

func (a *app) clearCache(w http.ResponseWriter, r *http.Request) {
	removed := a.store.Clear(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}
