package view

import (
	"context"
	"sync"

	"github.com/hitoshi/shequ/internal/model"
)

// PostDetail は投稿詳細とコメント一覧の状態を管理する。
type PostDetail struct {
	source PostSource
	postID int64
	act    Activation

	mu       sync.Mutex
	post     *model.Post
	comments []model.Comment
}

// NewPostDetail はPostDetailの新しいインスタンスを生成する。
func NewPostDetail(source PostSource, postID int64) *PostDetail {
	return &PostDetail{
		source:   source,
		postID:   postID,
		comments: []model.Comment{},
	}
}

// Load は投稿を取得し、続けてコメント一覧を取得する。
func (d *PostDetail) Load(ctx context.Context) error {
	gen := d.act.Begin()

	post, err := d.source.GetPost(ctx, d.postID)
	if err != nil {
		return err
	}
	comments, err := d.source.GetComments(ctx, d.postID)
	if err != nil {
		return err
	}
	if !d.act.Current(gen) {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.post = post
	d.comments = comments
	return nil
}

// AddComment はコメントを投稿し、コメント一覧を取得し直す。
func (d *PostDetail) AddComment(ctx context.Context, content string) error {
	gen := d.act.Snapshot()

	if err := d.source.PostComment(ctx, d.postID, content); err != nil {
		return err
	}
	comments, err := d.source.GetComments(ctx, d.postID)
	if err != nil {
		return err
	}
	if !d.act.Current(gen) {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.comments = comments
	if d.post != nil {
		d.post.CommentsCount = len(comments)
	}
	return nil
}

// Post は表示中の投稿を返す。未取得の場合はnil。
func (d *PostDetail) Post() *model.Post {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.post == nil {
		return nil
	}
	p := *d.post
	return &p
}

// Comments は表示中のコメントのコピーを返す。
func (d *PostDetail) Comments() []model.Comment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Comment{}, d.comments...)
}

// Close は画面を離れたことを記録する。
func (d *PostDetail) Close() {
	d.act.End()
}
