package model

import "strings"

// Category は投稿カテゴリを表す。
type Category string

const (
	CategoryAnnouncement Category = "announcement"
	CategoryLife         Category = "life"
	CategoryHelp         Category = "help"
	CategoryActivity     Category = "activity"
	CategoryOther        Category = "other"
)

// DefaultCategory は新規投稿で指定がない場合のカテゴリ。
const DefaultCategory = CategoryLife

// serverCategoryLabels はサーバーが返す旧来のカテゴリ表記との対応表。
var serverCategoryLabels = map[string]Category{
	"公告": CategoryAnnouncement,
	"生活": CategoryLife,
	"求助": CategoryHelp,
	"活动": CategoryActivity,
	"其他": CategoryOther,
}

// Categories は全カテゴリを表示順で返す。
func Categories() []Category {
	return []Category{
		CategoryAnnouncement,
		CategoryLife,
		CategoryHelp,
		CategoryActivity,
		CategoryOther,
	}
}

// ParseCategory は英語の値またはサーバーの表記からカテゴリを解決する。
// 未知の値はCategoryOtherになる。
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	if c, ok := serverCategoryLabels[s]; ok {
		return c
	}
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return CategoryOther
}

// Label はサーバーに送信するカテゴリ表記を返す。
func (c Category) Label() string {
	for label, cat := range serverCategoryLabels {
		if cat == c {
			return label
		}
	}
	return string(c)
}

// Author は投稿に埋め込まれる部分的なユーザー情報。
type Author struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar"`
}

// DisplayName は表示名を返す。
func (a Author) DisplayName() string {
	if a.Nickname != "" {
		return a.Nickname
	}
	return a.Username
}

// Post は正規化済みの投稿を表す。
// Imagesは常に絶対URL文字列の配列であり、nilにはならない。
type Post struct {
	ID            int64    `json:"id"`
	Author        Author   `json:"author"`
	Title         string   `json:"title,omitempty"`
	Content       string   `json:"content"`
	Category      Category `json:"category"`
	LikesCount    int      `json:"likes_count"`
	CommentsCount int      `json:"comments_count"`
	IsLiked       bool     `json:"is_liked"`
	IsFollowed    bool     `json:"is_followed"`
	CreatedAt     string   `json:"createdAt"`
	Images        []string `json:"images"`
}

// PostPage は投稿一覧の1ページ分の結果。
type PostPage struct {
	Posts   []Post
	Page    int
	Pages   int
	HasMore bool
}

// NewPost は投稿作成の入力を表す。
type NewPost struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category Category `json:"category"`
	Images   []string `json:"images"`
}

// Comment はコメントを表す。クライアントからは追記のみ。
type Comment struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}
