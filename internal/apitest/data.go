package apitest

import (
	"strings"
	"time"
)

type user struct {
	ID       int64
	Username string
	Nickname string
	Email    string
	Password string
	Avatar   string
	Bio      string
}

type post struct {
	ID            int64
	AuthorID      int64
	Title         string
	Content       string
	Category      string
	CreatedAt     string
	Images        []any
	LegacyMedia   bool
	SnakeCaseTime bool
	CommentsCount int
}

type comment struct {
	ID        int64
	UserID    int64
	Content   string
	CreatedAt string
}

type message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Content    string
	CreatedAt  string
	Read       bool
}

func ago(d time.Duration) string {
	return time.Now().UTC().Add(-d).Format(time.RFC3339)
}

// seed は初期データを投入する。
// 投稿の画像はサーバーの実データと同様に文字列とオブジェクトが混在する。
func (s *Server) seed() {
	s.users = map[int64]*user{
		1: {ID: 1, Username: "alice", Nickname: "Alice", Email: Email, Password: Password, Avatar: "/uploads/avatars/alice.png", Bio: "Building 3"},
		2: {ID: 2, Username: "bob", Nickname: "Bob", Email: "bob@example.com", Password: "secret", Avatar: "uploads/avatars/bob.png"},
		3: {ID: 3, Username: "chen", Email: "chen@example.com", Password: "secret", Avatar: "https://cdn.example.com/chen.png"},
	}

	// 新しい順
	s.posts = []*post{
		{ID: 5, AuthorID: 1, Content: "Lost cat near the east gate, grey with white paws", Category: "求助", CreatedAt: ago(10 * time.Minute),
			Images: []any{"/uploads/cat.png", map[string]any{"url": "uploads/cat2.png"}}, CommentsCount: 1},
		{ID: 4, AuthorID: 2, Title: "BBQ", Content: "Community BBQ on Saturday", Category: "活动", CreatedAt: ago(3 * time.Hour),
			Images: []any{map[string]any{"fileUrl": "https://cdn.example.com/bbq.jpg"}}, SnakeCaseTime: true},
		{ID: 3, AuthorID: 3, Title: "Water outage", Content: "Water outage notice for building 2", Category: "公告", CreatedAt: ago(26 * time.Hour),
			Images: []any{map[string]any{"url": "/uploads/water.png"}}, LegacyMedia: true},
		{ID: 2, AuthorID: 2, Content: "Selling a bike", Category: "其他", CreatedAt: ago(48 * time.Hour)},
		{ID: 1, AuthorID: 1, Content: "Hello neighbors", Category: "生活", CreatedAt: ago(72 * time.Hour), Images: []any{}},
	}

	s.comments = map[int64][]comment{
		5: {{ID: 1, UserID: 2, Content: "I saw it by the bike shed", CreatedAt: ago(5 * time.Minute)}},
	}

	s.likes = map[int64]map[int64]bool{
		4: {1: true, 3: true},
		5: {2: true},
	}

	s.follows = map[int64]map[int64]bool{
		1: {2: true},
		2: {1: true},
		3: {1: true},
	}

	s.nextID = 100
	s.messages = []message{
		{ID: 1, SenderID: 1, ReceiverID: 2, Content: "Hi Bob", CreatedAt: ago(2 * time.Hour), Read: true},
		{ID: 2, SenderID: 3, ReceiverID: 1, Content: "Thanks for the help", CreatedAt: ago(90 * time.Minute), Read: true},
		{ID: 3, SenderID: 2, ReceiverID: 1, Content: "Are you coming to the BBQ?", CreatedAt: ago(time.Hour)},
	}
}

func (s *Server) newID() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) addMessageLocked(from, to int64, content string) message {
	m := message{
		ID:         s.newID(),
		SenderID:   from,
		ReceiverID: to,
		Content:    content,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	s.messages = append(s.messages, m)
	return m
}

func (s *Server) userJSON(u *user) map[string]any {
	following, followers, posts := 0, 0, 0
	for follower, targets := range s.follows {
		if follower == u.ID {
			following += len(targets)
		}
		if targets[u.ID] {
			followers++
		}
	}
	for _, p := range s.posts {
		if p.AuthorID == u.ID {
			posts++
		}
	}
	return map[string]any{
		"id":              u.ID,
		"username":        u.Username,
		"nickname":        u.Nickname,
		"avatar":          u.Avatar,
		"bio":             u.Bio,
		"following_count": following,
		"followers_count": followers,
		"posts_count":     posts,
	}
}

// postJSON は閲覧者viewerから見た投稿を返す。
// is_liked と is_followed は真の場合のみ含める。
func (s *Server) postJSON(p *post, viewer int64) map[string]any {
	author := s.users[p.AuthorID]
	out := map[string]any{
		"id":             p.ID,
		"title":          p.Title,
		"content":        p.Content,
		"category":       p.Category,
		"likes_count":    len(s.likes[p.ID]),
		"comments_count": p.CommentsCount,
		"author": map[string]any{
			"id":       author.ID,
			"username": author.Username,
			"nickname": author.Nickname,
			"avatar":   author.Avatar,
		},
	}
	if s.likes[p.ID][viewer] {
		out["is_liked"] = true
	}
	if s.follows[viewer][p.AuthorID] {
		out["is_followed"] = 1
	}
	if p.SnakeCaseTime {
		out["created_at"] = p.CreatedAt
	} else {
		out["createdAt"] = p.CreatedAt
	}
	images := p.Images
	if images == nil {
		images = []any{}
	}
	if p.LegacyMedia {
		out["media"] = images
	} else {
		out["images"] = images
	}
	return out
}

func (s *Server) commentJSON(c comment) map[string]any {
	u := s.users[c.UserID]
	return map[string]any{
		"id":         c.ID,
		"nickname":   u.Nickname,
		"avatar":     u.Avatar,
		"content":    c.Content,
		"created_at": c.CreatedAt,
	}
}

func (s *Server) participantJSON(id int64) map[string]any {
	u := s.users[id]
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"nickname": u.Nickname,
		"avatar":   u.Avatar,
	}
}

func (s *Server) messageJSON(m message) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"senderId":   m.SenderID,
		"receiverId": m.ReceiverID,
		"content":    m.Content,
		"createdAt":  m.CreatedAt,
		"updatedAt":  m.CreatedAt,
		"read":       m.Read,
		"sender":     s.participantJSON(m.SenderID),
		"receiver":   s.participantJSON(m.ReceiverID),
	}
}

func bearerToken(h string) string {
	token, found := strings.CutPrefix(h, "Bearer ")
	if !found {
		return ""
	}
	return token
}
