package search

import (
	"context"
	"fmt"
	"net/url"

	"github.com/skidoodle/radio-sync/internal/remote"
)

// RemoteProvider uses the search endpoint of the player service.
type RemoteProvider struct {
	client *remote.Client
}

func NewRemoteProvider(client *remote.Client) *RemoteProvider {
	return &RemoteProvider{client: client}
}

func (p *RemoteProvider) Search(ctx context.Context, q Query) ([]Result, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	var out []Result
	params := url.Values{
		"query":  {q.Text},
		"source": {string(q.Source)},
		"type":   {string(q.Type)},
	}
	if err := p.client.GetJSON(ctx, "/search", params, &out); err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}
	for i := range out {
		if out[i].Kind == "" {
			out[i].Kind = kindFor(q.Type)
		}
	}
	return out, nil
}

func kindFor(t Type) ResultKind {
	if t == TypeTrack {
		return KindTrack
	}
	return KindCollection
}
