package social

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/feiralabs/feira/internal/api"
	"github.com/feiralabs/feira/internal/config"
	"github.com/feiralabs/feira/internal/model"
	"github.com/feiralabs/feira/internal/session"
	"github.com/feiralabs/feira/internal/store"
)

// testGateway spins up a fake gateway and an authenticated client
// against it. The mux starts empty; tests register the routes they
// exercise.
func testGateway(t *testing.T) (*http.ServeMux, *api.Client) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sessions := session.NewStore(db, nil, nil)
	if err := sessions.Save(&session.Session{ID: "u1", Username: "ana", Token: "tok"}); err != nil {
		t.Fatal(err)
	}

	return mux, api.NewClient(srv.URL, time.Second, sessions, nil)
}

func envelope(w http.ResponseWriter, data string) {
	fmt.Fprintf(w, `{"status":true,"data":%s}`, data)
}

func TestHomeFeedPaginatesByPage(t *testing.T) {
	mux, c := testGateway(t)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q, want 2", got)
		}
		switch r.URL.Query().Get("page") {
		case "1":
			envelope(w, `[{"id":"p1"},{"id":"p2"}]`)
		case "2":
			envelope(w, `{"items":[{"id":"p3"}],"has_more":false}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	cfg := config.Default()
	cfg.Feed.PageSize = 2
	f := NewFeeds(c, cfg, nil, nil, nil)

	if err := f.Home.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.Home.Len() != 2 || !f.Home.HasMore() {
		t.Fatalf("after refresh: len=%d hasMore=%v, want 2/true", f.Home.Len(), f.Home.HasMore())
	}

	if err := f.Home.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}
	items := f.Home.Items()
	if len(items) != 3 || items[2].ID != "p3" {
		t.Errorf("items = %v, want p1 p2 p3", items)
	}
	if f.Home.HasMore() {
		t.Error("server said has_more=false; loader must agree")
	}
}

func TestChatsPaginateByOffset(t *testing.T) {
	mux, c := testGateway(t)
	var mu sync.Mutex
	var offsets []string
	mux.HandleFunc("/chats", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		offsets = append(offsets, r.URL.Query().Get("offset"))
		mu.Unlock()
		if r.URL.Query().Get("page") != "" {
			t.Error("offset-scheme endpoint must not receive a page parameter")
		}
		envelope(w, `[{"id":"c1"},{"id":"c2"}]`)
	})

	cfg := config.Default()
	cfg.Feed.PageSize = 2
	f := NewFeeds(c, cfg, nil, nil, nil)

	if err := f.Chats.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.Chats.LoadMore(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(offsets) != 2 || offsets[0] != "0" || offsets[1] != "2" {
		t.Errorf("offsets = %v, want [0 2]", offsets)
	}
}

func TestToggleLikeAppliesAuthoritativeCount(t *testing.T) {
	mux, c := testGateway(t)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, `[{"id":"p1","liked":false,"like_count":10}]`)
	})
	mux.HandleFunc("/posts/p1/like", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, `{"liked":true,"like_count":12}`)
	})

	f := NewFeeds(c, config.Default(), nil, nil, nil)
	a := NewActions(c, f, nil, nil)

	if err := f.Home.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.ToggleLike(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}

	got, _ := f.Home.Get("p1")
	if !got.Liked || got.LikeCount != 12 {
		t.Errorf("post = %+v, want liked with server count 12", got)
	}
}

func TestToggleLikeRollsBackOnRejection(t *testing.T) {
	mux, c := testGateway(t)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, `[{"id":"p1","liked":false,"like_count":10}]`)
	})
	mux.HandleFunc("/posts/p1/like", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"status":false,"message":"post is locked"}`)
	})

	f := NewFeeds(c, config.Default(), nil, nil, nil)
	a := NewActions(c, f, nil, nil)

	if err := f.Home.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	err := a.ToggleLike(context.Background(), "p1")
	if err == nil {
		t.Fatal("expected rejection to surface")
	}

	got, _ := f.Home.Get("p1")
	if got.Liked || got.LikeCount != 10 {
		t.Errorf("post = %+v, want pre-toggle state after rollback", got)
	}
}

func TestUnlikeHitsUnlikeEndpoint(t *testing.T) {
	mux, c := testGateway(t)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, `[{"id":"p1","liked":true,"like_count":10}]`)
	})
	var unliked bool
	mux.HandleFunc("/posts/p1/unlike", func(w http.ResponseWriter, r *http.Request) {
		unliked = true
		envelope(w, `{"liked":false,"like_count":9}`)
	})

	f := NewFeeds(c, config.Default(), nil, nil, nil)
	a := NewActions(c, f, nil, nil)

	if err := f.Home.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.ToggleLike(context.Background(), "p1"); err != nil {
		t.Fatal(err)
	}
	if !unliked {
		t.Error("toggling a liked post must call the unlike endpoint")
	}
	got, _ := f.Home.Get("p1")
	if got.Liked || got.LikeCount != 9 {
		t.Errorf("post = %+v, want unliked at count 9", got)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	mux, c := testGateway(t)
	mux.HandleFunc("/notifications", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, `[{"id":"n1","kind":"like","read":false}]`)
	})
	mux.HandleFunc("/notifications/n1/read", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, `{}`)
	})

	f := NewFeeds(c, config.Default(), nil, nil, nil)
	a := NewActions(c, f, nil, nil)

	if err := f.Notifications.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.MarkNotificationRead(context.Background(), "n1"); err != nil {
		t.Fatal(err)
	}
	got, _ := f.Notifications.Get("n1")
	if !got.Read {
		t.Errorf("notification = %+v, want read", got)
	}
}

func TestDeletePostRollsBackOnFailure(t *testing.T) {
	mux, c := testGateway(t)
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		envelope(w, `[{"id":"p1"},{"id":"p2"},{"id":"p3"}]`)
	})
	mux.HandleFunc("/posts/p2", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s, want DELETE", r.Method)
		}
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"status":false,"message":"not your post"}`)
	})

	f := NewFeeds(c, config.Default(), nil, nil, nil)
	a := NewActions(c, f, nil, nil)

	if err := f.Home.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := a.DeletePost(context.Background(), "p2"); err == nil {
		t.Fatal("expected delete rejection to surface")
	}

	items := f.Home.Items()
	if len(items) != 3 || items[1].ID != "p2" {
		t.Errorf("items = %v, want p2 restored at its old position", items)
	}
}

func TestUserSearchDebounced(t *testing.T) {
	mux, c := testGateway(t)
	var mu sync.Mutex
	var queries []string
	mux.HandleFunc("/users/search", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("q"))
		mu.Unlock()
		envelope(w, `[{"id":"u2","username":"anabela"}]`)
	})

	cfg := config.Default()
	cfg.Search.DebounceMs = 50
	s := NewUserSearch(c, cfg, nil, nil)
	defer s.Close()

	s.SetQuery("a")
	s.SetQuery("an")
	s.SetQuery("ana")
	time.Sleep(cfg.Debounce() + 200*time.Millisecond)

	mu.Lock()
	if len(queries) != 1 || queries[0] != "ana" {
		t.Errorf("queries = %v, want a single lookup for the settled text", queries)
	}
	mu.Unlock()
	hits := s.Results()
	if len(hits) != 1 || hits[0].Username != "anabela" {
		t.Errorf("hits = %v, want anabela", hits)
	}
}

func TestDecodePageShapes(t *testing.T) {
	// Bare array.
	res, err := decodePage[model.Post]([]byte(`[{"id":"p1"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.HasMore != nil {
		t.Errorf("bare array: %+v, want one item and no has_more hint", res)
	}

	// Object with explicit has_more.
	res, err = decodePage[model.Post]([]byte(`{"items":[{"id":"p1"}],"has_more":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 || res.HasMore == nil || !*res.HasMore {
		t.Errorf("object page: %+v, want has_more=true", res)
	}

	// Garbage.
	if _, err := decodePage[model.Post]([]byte(`"nope"`)); err == nil {
		t.Error("expected decode error for non-page payload")
	}
}
