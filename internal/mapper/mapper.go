package mapper

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/shequ/internal/model"
)

// Mapper はサーバーオリジンを保持し、レスポンスをエンティティに変換する。
type Mapper struct {
	origin string
}

// New はMapperの新しいインスタンスを生成する。
func New(origin string) *Mapper {
	return &Mapper{origin: strings.TrimRight(origin, "/")}
}

// Origin はメディアURLの解決に使うオリジンを返す。
func (m *Mapper) Origin() string {
	return m.origin
}

// URL は相対パスをオリジン基準の絶対URLに解決する。
func (m *Mapper) URL(raw string) string {
	return NormalizeURL(m.origin, raw)
}

// Post は投稿を正規化する。
// 画像はimages（旧形式ではmedia）から取り出し、文字列またはurl/fileUrlを持つオブジェクトを
// 絶対URL文字列に揃える。欠落した数値・真偽値は0/falseになる。
func (m *Mapper) Post(v gjson.Result) model.Post {
	author := v.Get("author")
	return model.Post{
		ID: v.Get("id").Int(),
		Author: model.Author{
			ID:       author.Get("id").Int(),
			Username: author.Get("username").String(),
			Nickname: author.Get("nickname").String(),
			Avatar:   m.URL(author.Get("avatar").String()),
		},
		Title:         v.Get("title").String(),
		Content:       v.Get("content").String(),
		Category:      model.ParseCategory(v.Get("category").String()),
		LikesCount:    int(v.Get("likes_count").Int()),
		CommentsCount: int(v.Get("comments_count").Int()),
		IsLiked:       truthy(v.Get("is_liked")),
		IsFollowed:    truthy(v.Get("is_followed")),
		CreatedAt:     firstString(v, "createdAt", "created_at"),
		Images:        m.images(v),
	}
}

// Posts は投稿の配列を正規化する。
func (m *Mapper) Posts(list []gjson.Result) []model.Post {
	posts := make([]model.Post, 0, len(list))
	for _, v := range list {
		posts = append(posts, m.Post(v))
	}
	return posts
}

func (m *Mapper) images(v gjson.Result) []string {
	src := v.Get("images")
	if !src.IsArray() {
		src = v.Get("media")
	}

	images := make([]string, 0)
	for _, img := range src.Array() {
		var raw string
		switch {
		case img.Type == gjson.String:
			raw = img.String()
		case img.IsObject():
			raw = firstString(img, "url", "fileUrl")
		}
		if u := m.URL(raw); u != "" {
			images = append(images, u)
		}
	}
	return images
}

// User はユーザーを正規化する。
func (m *Mapper) User(v gjson.Result) model.User {
	return model.User{
		ID:             v.Get("id").Int(),
		Username:       v.Get("username").String(),
		Nickname:       v.Get("nickname").String(),
		Avatar:         m.URL(v.Get("avatar").String()),
		Bio:            v.Get("bio").String(),
		FollowingCount: int(v.Get("following_count").Int()),
		FollowersCount: int(v.Get("followers_count").Int()),
		PostsCount:     int(v.Get("posts_count").Int()),
	}
}

// Users はユーザーの配列を正規化する。
func (m *Mapper) Users(list []gjson.Result) []model.User {
	users := make([]model.User, 0, len(list))
	for _, v := range list {
		users = append(users, m.User(v))
	}
	return users
}

// Comment はコメントを正規化する。
func (m *Mapper) Comment(v gjson.Result) model.Comment {
	return model.Comment{
		ID:        v.Get("id").Int(),
		Nickname:  v.Get("nickname").String(),
		Avatar:    m.URL(v.Get("avatar").String()),
		Content:   v.Get("content").String(),
		CreatedAt: firstString(v, "created_at", "createdAt"),
	}
}

// Comments はコメントの配列を正規化する。
func (m *Mapper) Comments(list []gjson.Result) []model.Comment {
	comments := make([]model.Comment, 0, len(list))
	for _, v := range list {
		comments = append(comments, m.Comment(v))
	}
	return comments
}

// Message はメッセージを正規化する。
func (m *Mapper) Message(v gjson.Result) model.Message {
	return model.Message{
		ID:         v.Get("id").Int(),
		SenderID:   firstInt(v, "senderId", "sender_id"),
		ReceiverID: firstInt(v, "receiverId", "receiver_id"),
		Content:    v.Get("content").String(),
		CreatedAt:  firstString(v, "createdAt", "created_at"),
		UpdatedAt:  firstString(v, "updatedAt", "updated_at"),
		Read:       truthy(v.Get("read")),
		Sender:     m.participant(v.Get("sender")),
		Receiver:   m.participant(v.Get("receiver")),
	}
}

// Messages はメッセージの配列を正規化する。
func (m *Mapper) Messages(list []gjson.Result) []model.Message {
	messages := make([]model.Message, 0, len(list))
	for _, v := range list {
		messages = append(messages, m.Message(v))
	}
	return messages
}

func (m *Mapper) participant(v gjson.Result) model.Participant {
	return model.Participant{
		ID:       v.Get("id").Int(),
		Username: v.Get("username").String(),
		Nickname: v.Get("nickname").String(),
		Avatar:   m.URL(v.Get("avatar").String()),
	}
}

// Announcement はお知らせを正規化する。
func (m *Mapper) Announcement(v gjson.Result) model.Announcement {
	return model.Announcement{
		ID:        v.Get("id").Int(),
		Title:     v.Get("title").String(),
		Content:   v.Get("content").String(),
		IsActive:  truthy(first(v, "isActive", "is_active")),
		CreatedAt: firstString(v, "createdAt", "created_at"),
	}
}

// Announcements はお知らせの配列を正規化する。
func (m *Mapper) Announcements(list []gjson.Result) []model.Announcement {
	out := make([]model.Announcement, 0, len(list))
	for _, v := range list {
		out = append(out, m.Announcement(v))
	}
	return out
}

// Banner はバナーを正規化する。画像URLはオリジン基準で解決する。
func (m *Mapper) Banner(v gjson.Result) model.Banner {
	return model.Banner{
		ID:       v.Get("id").Int(),
		Title:    v.Get("title").String(),
		ImageURL: m.URL(firstString(v, "imageUrl", "image_url")),
		LinkURL:  firstString(v, "linkUrl", "link_url"),
		Order:    int(v.Get("order").Int()),
		IsActive: truthy(first(v, "isActive", "is_active")),
	}
}

// Banners はバナーの配列を正規化する。
func (m *Mapper) Banners(list []gjson.Result) []model.Banner {
	out := make([]model.Banner, 0, len(list))
	for _, v := range list {
		out = append(out, m.Banner(v))
	}
	return out
}

// first は最初に存在するフィールドの値を返す。
func first(v gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

func firstString(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if s := v.Get(p).String(); s != "" {
			return s
		}
	}
	return ""
}

func firstInt(v gjson.Result, paths ...string) int64 {
	return first(v, paths...).Int()
}

// truthy は真偽値を緩やかに解釈する。true、非0の数値、"true"、"1"を真とする。
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		s := strings.ToLower(strings.TrimSpace(v.Str))
		return s == "true" || s == "1"
	default:
		return false
	}
}
