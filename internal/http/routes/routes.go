// Package routes is the thin HTTP dispatch layer in front of the cache
// coordinator. Handlers translate headers and query strings, map errors
// to status codes, and nothing else.
package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/umnovI/poke-project/internal/content"
	"github.com/umnovI/poke-project/internal/fingerprint"
	"github.com/umnovI/poke-project/internal/httpcond"
	"github.com/umnovI/poke-project/internal/upstream"
)

type Server struct {
	Router  *chi.Mux
	Content *content.Service
	Client  *upstream.Client
	Hosts   upstream.Hosts
	Log     zerolog.Logger
}

type ServerOptions struct {
	Content *content.Service
	Client  *upstream.Client
	Hosts   upstream.Hosts
	Log     zerolog.Logger
}

// New wires the router. Producers referenced by routes must already be
// registered: missing wiring is a startup failure, not a request-time
// surprise.
func New(opts ServerOptions) (*Server, error) {
	for _, name := range []string{"pokemon-detailed", "search-list"} {
		if !opts.Content.Has(name) {
			return nil, fmt.Errorf("routes: no producer registered for %q", name)
		}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	s := &Server{
		Router:  r,
		Content: opts.Content,
		Client:  opts.Client,
		Hosts:   opts.Hosts,
		Log:     opts.Log,
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/media/", s.handleMedia)
		r.Get("/pokemon-detailed/", s.handlePokemonDetailed)
		r.Get("/search/{subject}/", s.handleSearch)
		r.Get("/pokemon/{idName}/encounters/", s.handleEncounters)
		r.Get("/{endpoint}/", s.handleGroup)
		r.Get("/{endpoint}/{idName}/", s.handleItem)
	})

	return s, nil
}

// noCache reports whether the caller asked to bypass the cache.
func noCache(r *http.Request) bool {
	return r.Header.Get("Cache-Control") == "no-cache"
}

// pagination extracts the limit/offset passthrough query.
func pagination(r *http.Request) (fingerprint.Query, error) {
	q := fingerprint.Query{}
	for _, name := range []string{"limit", "offset"} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("query param %s must be an integer", name)
		}
		q[name] = &v
	}
	return q, nil
}

// notModified writes the 304 short-circuit when the client's validator
// matches, unless the caller asked to bypass caching.
func notModified(w http.ResponseWriter, r *http.Request, headers map[string]string) bool {
	if noCache(r) {
		return false
	}
	if !httpcond.Match(r.Header.Get("If-None-Match"), headers["etag"]) {
		return false
	}
	copyHeaders(w, headers)
	w.WriteHeader(http.StatusNotModified)
	return true
}

func copyHeaders(w http.ResponseWriter, headers map[string]string) {
	for k, v := range headers {
		w.Header().Set(k, v)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, body string, headers map[string]string) {
	copyHeaders(w, headers)
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(body)); err != nil {
		s.Log.Error().Err(err).Msg("write response")
	}
}

// writeError maps coordinator and transport errors onto the status
// codes the caller sees.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var remote *upstream.RemoteError
	switch {
	case errors.As(err, &remote):
		s.detail(w, remote.Status, remote.Message)
	case errors.Is(err, content.ErrBusy):
		s.detail(w, http.StatusServiceUnavailable, "Busy. Please try again later.")
	default:
		s.Log.Error().Err(err).Msg("request failed")
		s.detail(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (s *Server) detail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"detail": msg}); err != nil {
		s.Log.Error().Err(err).Msg("write error response")
	}
}
