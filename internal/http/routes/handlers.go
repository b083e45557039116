package routes

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/umnovI/poke-project/internal/endpoints"
	"github.com/umnovI/poke-project/internal/rewrite"
	"github.com/umnovI/poke-project/internal/upstream"
)

// mediaPathPattern bounds what a decoded media token may point at.
var mediaPathPattern = regexp.MustCompile(`^/PokeAPI/.*?/[a-zA-Z|-]+/[0-9]+\.[a-z]{3}$`)

func (s *Server) handlePokemonDetailed(w http.ResponseWriter, r *http.Request) {
	q, err := pagination(r)
	if err != nil {
		s.detail(w, http.StatusBadRequest, err.Error())
		return
	}

	req := upstream.NewRequest("/pokemon/", q)
	res, err := s.Content.Get(r.Context(), "pokemon-detailed", req, noCache(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if notModified(w, r, res.Headers) {
		return
	}
	s.writeJSON(w, res.Body, res.Headers)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if !endpoints.Valid(subject) {
		s.detail(w, http.StatusNotFound, "Unknown endpoint "+subject)
		return
	}
	term := strings.ToLower(r.URL.Query().Get("q"))
	if term == "" {
		s.detail(w, http.StatusBadRequest, "query param q is required")
		return
	}

	req := upstream.NewRequest("/"+subject+"/", nil)
	res, err := s.Content.Get(r.Context(), "search-list", req, noCache(r))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var snapshot struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal([]byte(res.Body), &snapshot); err != nil {
		s.writeError(w, err)
		return
	}

	found := make([]json.RawMessage, 0)
	for _, raw := range snapshot.Results {
		var entry struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(entry.Name), term) {
			found = append(found, raw)
		}
	}

	out, err := json.Marshal(map[string]any{
		"count":   len(found),
		"results": found,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, string(out), nil)
}

func (s *Server) handleEncounters(w http.ResponseWriter, r *http.Request) {
	idName := chi.URLParam(r, "idName")
	s.relay(w, r, upstream.NewRequest("/pokemon/"+idName+"/encounters/", nil))
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	if !endpoints.Valid(endpoint) {
		s.detail(w, http.StatusNotFound, "Unknown endpoint "+endpoint)
		return
	}
	q, err := pagination(r)
	if err != nil {
		s.detail(w, http.StatusBadRequest, err.Error())
		return
	}
	s.relay(w, r, upstream.NewRequest("/"+endpoint+"/", q))
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	endpoint := chi.URLParam(r, "endpoint")
	if !endpoints.Valid(endpoint) {
		s.detail(w, http.StatusNotFound, "Unknown endpoint "+endpoint)
		return
	}
	idName := chi.URLParam(r, "idName")
	s.relay(w, r, upstream.NewRequest("/"+endpoint+"/"+idName+"/", nil))
}

// relay is the pass-through path: fetch, rewrite once, serve.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, req upstream.Request) {
	res, err := s.Content.Relay(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if notModified(w, r, res.Headers) {
		return
	}
	s.writeJSON(w, res.Body, res.Headers)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("f")
	if token == "" {
		s.detail(w, http.StatusBadRequest, "query param f is required")
		return
	}
	path, err := rewrite.DecodeMediaToken(token)
	if err != nil || !mediaPathPattern.MatchString(path) {
		s.detail(w, http.StatusBadRequest, "malformed media token")
		return
	}

	media, err := s.Client.GetMedia(r.Context(), s.Hosts.Media+path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	headers := map[string]string{"etag": media.Etag}
	if notModified(w, r, headers) {
		return
	}
	w.Header().Set("Etag", media.Etag)
	w.Header().Set("Content-Type", media.ContentType)
	if _, err := w.Write(media.Body); err != nil {
		s.Log.Error().Err(err).Msg("write media response")
	}
}
