package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/feiralabs/feira/internal/api"
	"github.com/feiralabs/feira/internal/bus"
	"github.com/feiralabs/feira/internal/config"
	"github.com/feiralabs/feira/internal/model"
	"github.com/feiralabs/feira/internal/search"
)

// UserSearch is the debounced people-search surface.
type UserSearch = search.Controller[model.UserHit]

// NewUserSearch wires the debounced controller to the user lookup
// endpoint. The quiet period comes from config.
func NewUserSearch(c *api.Client, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *UserSearch {
	lookup := func(ctx context.Context, query string) ([]model.UserHit, error) {
		q := url.Values{}
		q.Set("q", query)

		data, err := c.Get(ctx, "/users/search", q)
		if err != nil {
			return nil, err
		}
		var hits []model.UserHit
		if err := json.Unmarshal(data, &hits); err != nil {
			return nil, fmt.Errorf("decode user search: %w", err)
		}
		return hits, nil
	}
	return search.New(cfg.Debounce(), lookup, b, logger)
}
