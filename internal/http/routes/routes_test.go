package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umnovI/poke-project/internal/content"
	"github.com/umnovI/poke-project/internal/fingerprint"
	"github.com/umnovI/poke-project/internal/rewrite"
	"github.com/umnovI/poke-project/internal/store"
	"github.com/umnovI/poke-project/internal/upstream"
)

// neverStale keeps handler tests off the staleness path entirely.
type neverStale struct{}

func (neverStale) IsStale(context.Context, string, string, fingerprint.Query) (bool, error) {
	return false, nil
}

func staticProducer(body string) content.Producer {
	return func(_ context.Context, url string, _ fingerprint.Query) (content.Output, error) {
		return content.NewOutput(body, []string{url}), nil
	}
}

// newTestServer wires a full Server against an httptest upstream that
// serves both data and media paths.
func newTestServer(t *testing.T, upstreamHandler http.Handler, producers map[string]content.Producer) (*Server, *httptest.Server) {
	t.Helper()
	up := httptest.NewServer(upstreamHandler)
	t.Cleanup(up.Close)

	client := upstream.NewClient(&http.Client{Timeout: 3 * time.Second}, time.Minute, zerolog.Nop())
	t.Cleanup(client.Stop)

	hosts := upstream.Hosts{Data: up.URL, Media: up.URL}
	if producers == nil {
		producers = map[string]content.Producer{
			"pokemon-detailed": staticProducer(`{"count":0,"results":[]}`),
			"search-list":      staticProducer(`{"count":0,"results":[]}`),
		}
	}
	svc := content.NewService(content.ServiceOptions{
		Store:     store.NewMemory(),
		Freshness: neverStale{},
		Client:    client,
		Rewriter:  rewrite.New(up.URL, up.URL),
		Hosts:     hosts,
		Producers: producers,
		Log:       zerolog.Nop(),
	})

	srv, err := New(ServerOptions{Content: svc, Client: client, Hosts: hosts, Log: zerolog.Nop()})
	require.NoError(t, err)
	return srv, up
}

func get(t *testing.T, srv *Server, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func detailMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["detail"]
}

func TestNewRequiresProducers(t *testing.T) {
	svc := content.NewService(content.ServiceOptions{
		Store:     store.NewMemory(),
		Freshness: neverStale{},
		Producers: map[string]content.Producer{"pokemon-detailed": staticProducer("{}")},
		Log:       zerolog.Nop(),
	})

	_, err := New(ServerOptions{Content: svc, Log: zerolog.Nop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search-list")
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, http.NotFoundHandler(), nil)

	rec := get(t, srv, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestPokemonDetailedRoute(t *testing.T) {
	srv, _ := newTestServer(t, http.NotFoundHandler(), nil)

	rec := get(t, srv, "/api/pokemon-detailed/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"count":0,"results":[]}`, rec.Body.String())

	etag := rec.Header().Get("Etag")
	require.NotEmpty(t, etag)

	rec = get(t, srv, "/api/pokemon-detailed/", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())

	// Cache bypass ignores the validator and returns a full body.
	rec = get(t, srv, "/api/pokemon-detailed/", map[string]string{
		"If-None-Match": etag,
		"Cache-Control": "no-cache",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestPokemonDetailedBadPagination(t *testing.T) {
	srv, _ := newTestServer(t, http.NotFoundHandler(), nil)

	rec := get(t, srv, "/api/pokemon-detailed/?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detailMessage(t, rec), "limit")
}

func TestBusyMapsTo503(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	first := true
	producers := map[string]content.Producer{
		"pokemon-detailed": func(_ context.Context, url string, _ fingerprint.Query) (content.Output, error) {
			if first {
				first = false
				close(started)
				<-release
			}
			return content.NewOutput("{}", []string{url}), nil
		},
		"search-list": staticProducer("{}"),
	}
	srv, _ := newTestServer(t, http.NotFoundHandler(), producers)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- get(t, srv, "/api/pokemon-detailed/", map[string]string{"Cache-Control": "no-cache"})
	}()
	<-started

	rec := get(t, srv, "/api/pokemon-detailed/", map[string]string{"Cache-Control": "no-cache"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "Busy. Please try again later.", detailMessage(t, rec))

	close(release)
	assert.Equal(t, http.StatusOK, (<-done).Code)
}

func TestSearchRoute(t *testing.T) {
	snapshot := `{"count":3,"results":[` +
		`{"name":"oran-berry","url":"/api/item/132/"},` +
		`{"name":"sitrus-berry","url":"/api/item/133/"},` +
		`{"name":"potion","url":"/api/item/17/"}]}`
	producers := map[string]content.Producer{
		"pokemon-detailed": staticProducer("{}"),
		"search-list":      staticProducer(snapshot),
	}
	srv, _ := newTestServer(t, http.NotFoundHandler(), producers)

	rec := get(t, srv, "/api/search/item/?q=berry", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Count   int `json:"count"`
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 2, out.Count)
	for _, r := range out.Results {
		assert.Contains(t, r.Name, "berry")
	}
}

func TestSearchRouteValidation(t *testing.T) {
	srv, _ := newTestServer(t, http.NotFoundHandler(), nil)

	rec := get(t, srv, "/api/search/item/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv, "/api/search/nonsense/?q=x", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, detailMessage(t, rec), "nonsense")
}

func TestGroupRelay(t *testing.T) {
	var upURL string
	srv, up := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/berry/", r.URL.Path)
		w.Header().Set("Etag", `"e1"`)
		fmt.Fprintf(w, `{"count":64,"next":%q,"results":[]}`, upURL+"/berry/?offset=20")
	}), nil)
	upURL = up.URL

	rec := get(t, srv, "/api/berry/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), up.URL)
	assert.Contains(t, rec.Body.String(), `"/api/berry/?offset=20"`)
	assert.Equal(t, `"e1"`, rec.Header().Get("Etag"))

	// Conditional revisit of the relayed body.
	rec = get(t, srv, "/api/berry/", map[string]string{"If-None-Match": `"e1"`})
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestGroupRelayUnknownEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, http.NotFoundHandler(), nil)

	rec := get(t, srv, "/api/nonsense/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, detailMessage(t, rec), "nonsense")
}

func TestItemRelayRemoteErrorPassthrough(t *testing.T) {
	srv, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), nil)

	rec := get(t, srv, "/api/berry/9999/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, detailMessage(t, rec), "404")
}

func TestEncountersRelay(t *testing.T) {
	srv, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pokemon/25/encounters/", r.URL.Path)
		fmt.Fprint(w, `[]`)
	}), nil)

	rec := get(t, srv, "/api/pokemon/25/encounters/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestMediaRoute(t *testing.T) {
	const path = "/PokeAPI/sprites/master/sprites/items/132.png"
	srv, _ := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, path, r.URL.Path)
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Etag", `"m1"`)
		_, _ = w.Write([]byte("png-bytes"))
	}), nil)

	token := rewrite.EncodeMediaToken(path)
	rec := get(t, srv, "/api/media/?f="+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, `"m1"`, rec.Header().Get("Etag"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	rec = get(t, srv, "/api/media/?f="+token, map[string]string{"If-None-Match": `"m1"`})
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestMediaRouteValidation(t *testing.T) {
	srv, _ := newTestServer(t, http.NotFoundHandler(), nil)

	rec := get(t, srv, "/api/media/", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, srv, "/api/media/?f=not-base64!!", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// A decodable token pointing outside the allowed tree is rejected.
	rec = get(t, srv, "/api/media/?f="+rewrite.EncodeMediaToken("/etc/passwd"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, detailMessage(t, rec), "malformed")
}
