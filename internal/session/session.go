package session

// Session is the authenticated user's identity and profile. A single
// instance is persisted per device profile; its token is attached to
// every authenticated gateway request.
type Session struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Token       string `json:"token"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Email       string `json:"email,omitempty"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
}

// Partial carries optional fields for Store.Update. Nil fields are
// left untouched; fresher profile data (avatar, counts) arrives this way.
type Partial struct {
	Username    *string
	Token       *string
	DisplayName *string
	AvatarURL   *string
	Email       *string
	Followers   *int
	Following   *int
}
