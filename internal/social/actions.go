package social

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/feiralabs/feira/internal/api"
	"github.com/feiralabs/feira/internal/bus"
	"github.com/feiralabs/feira/internal/model"
	"github.com/feiralabs/feira/internal/mutate"
)

// Actions exposes the user-triggered toggles. Each one goes through a
// mutation engine so the optimistic-apply/rollback contract is the
// same for reactions, follows, read-state, and deletion.
type Actions struct {
	api           *api.Client
	posts         *mutate.Engine[model.Post]
	notifications *mutate.Engine[model.Notification]
	contacts      *mutate.Engine[model.Contact]
}

// NewActions creates the toggle surface over the shared feeds.
func NewActions(c *api.Client, f *Feeds, b *bus.Bus, logger *zap.Logger) *Actions {
	return &Actions{
		api:           c,
		posts:         mutate.New(f.Home, b, logger),
		notifications: mutate.New(f.Notifications, b, logger),
		contacts:      mutate.New(f.Contacts, b, logger),
	}
}

// ToggleLike flips the reaction on a home-feed post. The like count
// moves by ±1 immediately; the server's recomputed count wins once it
// answers.
func (a *Actions) ToggleLike(ctx context.Context, postID string) error {
	return a.posts.Toggle(ctx, mutate.Mutation[model.Post]{
		ItemID:     postID,
		Field:      "liked",
		Read:       func(p *model.Post) any { return p.Liked },
		Write:      func(p *model.Post, v any) { p.Liked = v.(bool) },
		Next:       func(cur any) any { return !cur.(bool) },
		ReadCount:  func(p *model.Post) int { return p.LikeCount },
		WriteCount: func(p *model.Post, n int) { p.LikeCount = n },
		Delta:      likeDelta,
		Commit: func(ctx context.Context, applied any) (*mutate.Outcome, error) {
			path := fmt.Sprintf("/posts/%s/like", postID)
			if !applied.(bool) {
				path = fmt.Sprintf("/posts/%s/unlike", postID)
			}
			data, err := a.api.Post(ctx, path, nil)
			if err != nil {
				return nil, err
			}
			return likeOutcome(data), nil
		},
	})
}

// ToggleFollow flips the follow state on a contact, adjusting their
// follower count by the implied delta.
func (a *Actions) ToggleFollow(ctx context.Context, contactID string) error {
	return a.contacts.Toggle(ctx, mutate.Mutation[model.Contact]{
		ItemID:     contactID,
		Field:      "following",
		Read:       func(c *model.Contact) any { return c.Following },
		Write:      func(c *model.Contact, v any) { c.Following = v.(bool) },
		Next:       func(cur any) any { return !cur.(bool) },
		ReadCount:  func(c *model.Contact) int { return c.Followers },
		WriteCount: func(c *model.Contact, n int) { c.Followers = n },
		Delta:      likeDelta,
		Commit: func(ctx context.Context, applied any) (*mutate.Outcome, error) {
			path := fmt.Sprintf("/users/%s/follow", contactID)
			if !applied.(bool) {
				path = fmt.Sprintf("/users/%s/unfollow", contactID)
			}
			data, err := a.api.Post(ctx, path, nil)
			if err != nil {
				return nil, err
			}
			out := &mutate.Outcome{}
			if v := gjson.GetBytes(data, "following"); v.Exists() {
				out.Value = v.Bool()
			}
			if v := gjson.GetBytes(data, "followers"); v.Exists() {
				n := int(v.Int())
				out.Count = &n
			}
			return out, nil
		},
	})
}

// MarkNotificationRead marks one notification as read. Not a
// round-trip toggle: marking an already-read notification is a no-op
// locally and still idempotent server-side.
func (a *Actions) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return a.notifications.Toggle(ctx, mutate.Mutation[model.Notification]{
		ItemID: notificationID,
		Field:  "read",
		Read:   func(n *model.Notification) any { return n.Read },
		Write:  func(n *model.Notification, v any) { n.Read = v.(bool) },
		Next:   func(any) any { return true },
		Commit: func(ctx context.Context, _ any) (*mutate.Outcome, error) {
			_, err := a.api.Post(ctx, fmt.Sprintf("/notifications/%s/read", notificationID), nil)
			return nil, err
		},
	})
}

// DeletePost removes the user's own post from the home feed
// optimistically; a failed delete puts it back where it was.
func (a *Actions) DeletePost(ctx context.Context, postID string) error {
	return a.posts.Delete(ctx, postID, func(ctx context.Context) error {
		_, err := a.api.Do(ctx, "DELETE", fmt.Sprintf("/posts/%s", postID), nil)
		return err
	})
}

func likeDelta(_, to any) int {
	if to.(bool) {
		return 1
	}
	return -1
}

// likeOutcome extracts the server's authoritative reaction state when
// the response carries one.
func likeOutcome(data []byte) *mutate.Outcome {
	out := &mutate.Outcome{}
	if v := gjson.GetBytes(data, "liked"); v.Exists() {
		out.Value = v.Bool()
	}
	if v := gjson.GetBytes(data, "like_count"); v.Exists() {
		n := int(v.Int())
		out.Count = &n
	}
	return out
}
