package rewrite

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dataHost  = "https://pokeapi.co/api/v2"
	mediaHost = "https://raw.githubusercontent.com"
)

func TestRewriteStripsDataHost(t *testing.T) {
	rw := New(dataHost, mediaHost)
	body := `{"next":"https://pokeapi.co/api/v2/pokemon/?offset=20&limit=20"}`
	assert.Equal(t, `{"next":"/api/pokemon/?offset=20&limit=20"}`, rw.Rewrite(body))
}

func TestRewriteTokenizesMediaURLs(t *testing.T) {
	rw := New(dataHost, mediaHost)
	body := `{"front_default":"https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/1.png"}`

	got := rw.Rewrite(body)
	assert.NotContains(t, got, mediaHost)
	assert.Contains(t, got, `"/api/media/?f=`)
}

func TestMediaTokenRoundTrip(t *testing.T) {
	rw := New(dataHost, mediaHost)
	const path = "/PokeAPI/sprites/master/sprites/pokemon/25.png"
	body := `{"sprite":"` + mediaHost + path + `"}`

	got := rw.Rewrite(body)
	start := strings.Index(got, "?f=") + len("?f=")
	end := strings.Index(got[start:], `"`) + start
	token := got[start:end]

	decoded, err := DecodeMediaToken(token)
	require.NoError(t, err)
	assert.Equal(t, path, decoded)
}

func TestRewriteIdempotentOnOutput(t *testing.T) {
	rw := New(dataHost, mediaHost)
	body := `{"next":"https://pokeapi.co/api/v2/berry/?offset=20",` +
		`"sprite":"https://raw.githubusercontent.com/PokeAPI/sprites/master/1.png"}`

	once := rw.Rewrite(body)
	assert.Equal(t, once, rw.Rewrite(once))
}

func TestRewriteHostBeforeMedia(t *testing.T) {
	// The media pattern matches the raw media host; a body where both
	// hosts appear must have each handled by its own rule.
	rw := New(dataHost, mediaHost)
	body := `{"url":"https://pokeapi.co/api/v2/pokemon/1/",` +
		`"icon":"https://raw.githubusercontent.com/PokeAPI/sprites/master/icons/1.svg"}`

	got := rw.Rewrite(body)
	assert.Contains(t, got, `"/api/pokemon/1/"`)
	assert.Contains(t, got, `"/api/media/?f=`)
	assert.NotContains(t, got, dataHost)
	assert.NotContains(t, got, mediaHost)
}

func TestDecodeMediaTokenRejectsGarbage(t *testing.T) {
	_, err := DecodeMediaToken("%%%not-a-token")
	require.Error(t, err)
}
