package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/umnovI/poke-project/internal/fingerprint"
	"github.com/umnovI/poke-project/internal/rewrite"
	"github.com/umnovI/poke-project/internal/upstream"
)

// listPage is the upstream's paginated list shape.
type listPage struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  []listEntry `json:"results"`
}

type listEntry struct {
	Name    string          `json:"name"`
	URL     string          `json:"url"`
	Sprites json.RawMessage `json:"sprites,omitempty"`
}

// Fetcher is the transport GET primitive producers build on.
type Fetcher interface {
	Get(ctx context.Context, rawurl string, query fingerprint.Query) (*upstream.Response, error)
}

// NewPokemonDetailed returns the producer for the aggregated pokemon
// list: one list fetch followed by a concurrent detail fetch per entry
// to attach its sprites. Any child failure aborts the whole batch.
func NewPokemonDetailed(client Fetcher, rw *rewrite.Rewriter, hosts upstream.Hosts) Producer {
	return func(ctx context.Context, url string, query fingerprint.Query) (Output, error) {
		source := []string{hosts.Data + sourceRef(url, query)}

		resp, err := client.Get(ctx, hosts.Data+url, query)
		if err != nil {
			return Output{}, err
		}
		var page listPage
		if err := json.Unmarshal([]byte(resp.Body), &page); err != nil {
			return Output{}, fmt.Errorf("parse list page: %w", err)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := range page.Results {
			i := i // per-iteration copy; required while go.mod targets go < 1.22
			source = append(source, page.Results[i].URL)
			g.Go(func() error {
				detail, err := client.Get(gctx, page.Results[i].URL, nil)
				if err != nil {
					return err
				}
				var item struct {
					Sprites json.RawMessage `json:"sprites"`
				}
				if err := json.Unmarshal([]byte(detail.Body), &item); err != nil {
					return fmt.Errorf("parse detail %s: %w", page.Results[i].URL, err)
				}
				page.Results[i].Sprites = item.Sprites
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Output{}, err
		}

		raw, err := marshalJSON(page)
		if err != nil {
			return Output{}, err
		}
		rewritten := rw.Rewrite(raw)

		// Point next/previous at this aggregate endpoint instead of the
		// plain list it was derived from.
		var out listPage
		if err := json.Unmarshal([]byte(rewritten), &out); err != nil {
			return Output{}, fmt.Errorf("parse rewritten page: %w", err)
		}
		if out.Next != nil {
			n := strings.Replace(*out.Next, "/api/pokemon/", "/api/pokemon-detailed/", 1)
			out.Next = &n
		}
		if out.Previous != nil {
			p := strings.Replace(*out.Previous, "/api/pokemon/", "/api/pokemon-detailed/", 1)
			out.Previous = &p
		}
		final, err := marshalJSON(out)
		if err != nil {
			return Output{}, err
		}
		return NewOutput(final, source), nil
	}
}

// NewSearchList returns the producer that snapshots an entire endpoint
// group: a one-item probe to learn the count, then a single fetch of
// everything.
func NewSearchList(client Fetcher, rw *rewrite.Rewriter, hosts upstream.Hosts) Producer {
	return func(ctx context.Context, url string, _ fingerprint.Query) (Output, error) {
		one := 1
		probe, err := client.Get(ctx, hosts.Data+url, fingerprint.Query{"limit": &one})
		if err != nil {
			return Output{}, err
		}
		var head struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal([]byte(probe.Body), &head); err != nil {
			return Output{}, fmt.Errorf("parse count probe: %w", err)
		}

		all := fingerprint.Query{"limit": &head.Count}
		resp, err := client.Get(ctx, hosts.Data+url, all)
		if err != nil {
			return Output{}, err
		}
		return NewOutput(rw.Rewrite(resp.Body), []string{hosts.Data + sourceRef(url, all)}), nil
	}
}

func sourceRef(url string, query fingerprint.Query) string {
	if c := query.Canonical(); c != "" {
		return url + "?" + c
	}
	return url
}

// marshalJSON marshals without HTML escaping so rewritten URLs stay
// matchable as plain text.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal page: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
