// Package model はクライアント側の正規化済みエンティティを定義する。
// サーバーのワイヤー形式は揺れがあるため、mapperパッケージで変換してからこの形に揃える。
package model

// User はコミュニティのユーザーを表す。
// フォロー数・フォロワー数・投稿数はサーバーが正であり、取得時に更新される。
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	Nickname       string `json:"nickname"`
	Avatar         string `json:"avatar"`
	Bio            string `json:"bio,omitempty"`
	FollowingCount int    `json:"following_count"`
	FollowersCount int    `json:"followers_count"`
	PostsCount     int    `json:"posts_count"`
}

// DisplayName は表示名を返す。ニックネームが空の場合はユーザー名を使う。
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}

// ProfileUpdate はプロフィール更新の入力を表す。
// nilのフィールドは送信しない。
type ProfileUpdate struct {
	Nickname *string `json:"nickname,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
	Password *string `json:"password,omitempty"`
}

// IsEmpty は更新対象のフィールドが1つもない場合にtrueを返す。
func (p ProfileUpdate) IsEmpty() bool {
	return p.Nickname == nil && p.Bio == nil && p.Avatar == nil && p.Password == nil
}
