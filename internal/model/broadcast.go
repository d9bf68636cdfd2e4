package model

// Announcement はお知らせ。クライアントからは読み取り専用。
type Announcement struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	IsActive  bool   `json:"isActive"`
	CreatedAt string `json:"createdAt"`
}

// Banner はカルーセルに表示するバナー。Orderの昇順で表示する。
type Banner struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	LinkURL  string `json:"linkUrl"`
	Order    int    `json:"order"`
	IsActive bool   `json:"isActive"`
}
