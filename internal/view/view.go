// Package view は画面ごとの状態管理を提供する。
// 描画は行わず、ページング・楽観的更新・ポーリングの状態遷移だけを扱う。
package view

import (
	"context"
	"io"

	"github.com/hitoshi/shequ/internal/model"
)

// FeedSource は投稿一覧の取得元。
type FeedSource interface {
	GetPosts(ctx context.Context, page int, userID int64) (*model.PostPage, error)
}

// PostSource は投稿詳細とコメントの取得元。
type PostSource interface {
	GetPost(ctx context.Context, id int64) (*model.Post, error)
	GetComments(ctx context.Context, postID int64) ([]model.Comment, error)
	PostComment(ctx context.Context, postID int64, content string) error
}

// Liker はいいねの切り替え先。
type Liker interface {
	LikePost(ctx context.Context, postID int64, currentlyLiked bool) error
}

// Follower はフォロー関係の操作先。
type Follower interface {
	FollowUser(ctx context.Context, id int64) error
	UnfollowUser(ctx context.Context, id int64) error
	CheckFollowStatus(ctx context.Context, id int64) bool
}

// ConversationSource は会話一覧の取得元。
type ConversationSource interface {
	GetConversations(ctx context.Context) ([]model.Message, error)
}

// ChatSource はメッセージ履歴の取得と送信先。
type ChatSource interface {
	GetChatMessages(ctx context.Context, userID int64) ([]model.Message, error)
	SendMessage(ctx context.Context, receiverID int64, content string) (*model.Message, error)
}

// Uploader はファイルのアップロード先。
type Uploader interface {
	UploadFile(ctx context.Context, filename string, r io.Reader) (string, error)
}

// PostCreator は投稿の作成先。
type PostCreator interface {
	Uploader
	CreatePost(ctx context.Context, in model.NewPost) (*model.Post, error)
}

// ProfileUpdater はプロフィールの更新先。
type ProfileUpdater interface {
	Uploader
	UpdateProfile(ctx context.Context, update model.ProfileUpdate) (*model.User, error)
}
