// Package social binds the generic sync layers to the concrete REST
// endpoints: which lists exist, how each paginates, and which calls
// back each user-triggered toggle.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/feiralabs/feira/internal/api"
	"github.com/feiralabs/feira/internal/bus"
	"github.com/feiralabs/feira/internal/config"
	"github.com/feiralabs/feira/internal/feed"
	"github.com/feiralabs/feira/internal/model"
	"github.com/feiralabs/feira/internal/store"
)

// Feeds bundles the loaders every screen shares. Each list keeps its
// own cursor and pagination scheme; the schemes differ per endpoint.
type Feeds struct {
	Home          *feed.Loader[model.Post]
	Notifications *feed.Loader[model.Notification]
	Chats         *feed.Loader[model.Chat]
	Contacts      *feed.Loader[model.Contact]
}

// NewFeeds creates the standard list set over the gateway.
func NewFeeds(c *api.Client, cfg *config.Config, db *store.DB, b *bus.Bus, logger *zap.Logger) *Feeds {
	size := cfg.Feed.PageSize
	return &Feeds{
		Home:          feed.New("home", feed.ByPage, size, pageSource[model.Post](c, "/feed"), db, b, logger),
		Notifications: feed.New("notifications", feed.ByPage, size, pageSource[model.Notification](c, "/notifications"), db, b, logger),
		Chats:         feed.New("chats", feed.ByOffset, size, pageSource[model.Chat](c, "/chats"), db, b, logger),
		Contacts:      feed.New("contacts", feed.ByOffset, size, pageSource[model.Contact](c, "/contacts"), db, b, logger),
	}
}

// Restore warm-starts every list from its persisted snapshot.
func (f *Feeds) Restore() {
	_ = f.Home.Restore()
	_ = f.Notifications.Restore()
	_ = f.Chats.Restore()
	_ = f.Contacts.Restore()
}

// Reset empties every list (logout).
func (f *Feeds) Reset() {
	f.Home.Reset()
	f.Notifications.Reset()
	f.Chats.Reset()
	f.Contacts.Reset()
}

// pageSource builds a feed.Source fetching one endpoint with the
// loader's pagination scheme encoded as query parameters.
func pageSource[T model.Item](c *api.Client, path string) feed.Source[T] {
	return func(ctx context.Context, req feed.PageRequest) (feed.PageResult[T], error) {
		q := url.Values{}
		if req.Page > 0 {
			q.Set("page", strconv.Itoa(req.Page))
		} else {
			q.Set("offset", strconv.Itoa(req.Offset))
		}
		q.Set("limit", strconv.Itoa(req.Limit))

		data, err := c.Get(ctx, path, q)
		if err != nil {
			return feed.PageResult[T]{}, err
		}
		return decodePage[T](data)
	}
}

// decodePage accepts either a bare JSON array or an object shaped
// {items, has_more}; endpoints are inconsistent about which they send.
func decodePage[T model.Item](data json.RawMessage) (feed.PageResult[T], error) {
	if gjson.ValidBytes(data) && gjson.ParseBytes(data).IsArray() {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return feed.PageResult[T]{}, fmt.Errorf("decode page: %w", err)
		}
		return feed.PageResult[T]{Items: items}, nil
	}

	var page struct {
		Items   []T   `json:"items"`
		HasMore *bool `json:"has_more"`
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return feed.PageResult[T]{}, fmt.Errorf("decode page: %w", err)
	}
	return feed.PageResult[T]{Items: page.Items, HasMore: page.HasMore}, nil
}
