package model

// Item is anything a paginated list can hold. IDs are stable and
// unique within one list; cross-page duplicates are the loader's
// problem, not the item's.
type Item interface {
	ItemID() string
}

// Post is one feed entry.
type Post struct {
	ID           string `json:"id"`
	AuthorID     string `json:"author_id"`
	AuthorName   string `json:"author_name"`
	Body         string `json:"body"`
	ImageURL     string `json:"image_url,omitempty"`
	Liked        bool   `json:"liked"`
	LikeCount    int    `json:"like_count"`
	CommentCount int    `json:"comment_count"`
	CreatedAt    int64  `json:"created_at"`
}

func (p Post) ItemID() string { return p.ID }

// Notification is one entry in the notifications list.
type Notification struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"` // like, comment, follow, mention
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	PostID    string `json:"post_id,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"created_at"`
}

func (n Notification) ItemID() string { return n.ID }

// Chat is one conversation in the chat list.
type Chat struct {
	ID          string `json:"id"`
	PeerID      string `json:"peer_id"`
	PeerName    string `json:"peer_name"`
	LastMessage string `json:"last_message"`
	UnreadCount int    `json:"unread_count"`
	UpdatedAt   int64  `json:"updated_at"`
}

func (c Chat) ItemID() string { return c.ID }

// Contact is one entry in the contacts list.
type Contact struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Following   bool   `json:"following"`
	Followers   int    `json:"followers"`
}

func (c Contact) ItemID() string { return c.ID }

// UserHit is one row in the user search results.
type UserHit struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Following   bool   `json:"following"`
}

func (u UserHit) ItemID() string { return u.ID }
