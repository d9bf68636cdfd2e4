package view

import (
	"context"
	"io"
	"sync"

	"github.com/hitoshi/shequ/internal/model"
)

// Composer は新規投稿の入力状態を管理する。
// 添付のアップロードに失敗しても、添付済みの画像は保持する。
type Composer struct {
	svc PostCreator

	mu       sync.Mutex
	category model.Category
	images   []string
}

// NewComposer はComposerの新しいインスタンスを生成する。
func NewComposer(svc PostCreator) *Composer {
	return &Composer{
		svc:      svc,
		category: model.DefaultCategory,
		images:   []string{},
	}
}

// SetCategory はカテゴリを設定する。
func (c *Composer) SetCategory(category model.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.category = category
}

// Attach はファイルをアップロードし、返されたURLを添付に追加する。
func (c *Composer) Attach(ctx context.Context, filename string, r io.Reader) (string, error) {
	u, err := c.svc.UploadFile(ctx, filename, r)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.images = append(c.images, u)
	return u, nil
}

// Remove はi番目の添付を取り除く。範囲外の場合は何もしない。
func (c *Composer) Remove(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.images) {
		return
	}
	c.images = append(c.images[:i:i], c.images[i+1:]...)
}

// Images は添付済み画像のコピーを返す。
func (c *Composer) Images() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.images...)
}

// Publish は投稿を作成する。成功した場合は添付をクリアする。
func (c *Composer) Publish(ctx context.Context, content string) (*model.Post, error) {
	c.mu.Lock()
	in := model.NewPost{
		Content:  content,
		Category: c.category,
		Images:   append([]string{}, c.images...),
	}
	c.mu.Unlock()

	post, err := c.svc.CreatePost(ctx, in)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.images = []string{}
	c.mu.Unlock()
	return post, nil
}

// Attachment はアップロードするファイル。
type Attachment struct {
	Name   string
	Reader io.Reader
}

// ProfileEditor はプロフィール編集を行う。
type ProfileEditor struct {
	svc ProfileUpdater
}

// NewProfileEditor はProfileEditorの新しいインスタンスを生成する。
func NewProfileEditor(svc ProfileUpdater) *ProfileEditor {
	return &ProfileEditor{svc: svc}
}

// Save はプロフィールを更新する。
// avatarが指定された場合は先にアップロードし、そのURLをアバターとして送信する。
// アップロードに失敗した場合はプロフィールを更新しない。
func (e *ProfileEditor) Save(ctx context.Context, update model.ProfileUpdate, avatar *Attachment) (*model.User, error) {
	if avatar != nil {
		u, err := e.svc.UploadFile(ctx, avatar.Name, avatar.Reader)
		if err != nil {
			return nil, err
		}
		update.Avatar = &u
	}
	return e.svc.UpdateProfile(ctx, update)
}
