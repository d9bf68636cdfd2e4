package view

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hitoshi/shequ/internal/model"
)

// Feed は投稿一覧のページング状態を管理する。
// 読み込み中フラグはCompareAndSwapで予約するため、連続した追加読み込みが
// 同じページを重複して要求することはない。
type Feed struct {
	source   FeedSource
	authorID int64

	act     Activation
	loading atomic.Bool

	mu       sync.Mutex
	posts    []model.Post
	nextPage int
	hasMore  bool
}

// NewFeed はFeedの新しいインスタンスを生成する。
// authorIDが0より大きい場合はその投稿者の投稿だけを表示する。
func NewFeed(source FeedSource, authorID int64) *Feed {
	return &Feed{
		source:   source,
		authorID: authorID,
		posts:    []model.Post{},
		nextPage: 1,
	}
}

// Refresh は1ページ目を取得して一覧を置き換える。次のページは2になる。
// 別の読み込みが進行中の場合はmodel.ErrBusyを返す。
func (f *Feed) Refresh(ctx context.Context) error {
	if !f.loading.CompareAndSwap(false, true) {
		return model.ErrBusy
	}
	defer f.loading.Store(false)

	gen := f.act.Begin()
	page, err := f.source.GetPosts(ctx, 1, f.authorID)
	if err != nil {
		return err
	}
	if !f.act.Current(gen) {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append([]model.Post{}, page.Posts...)
	f.nextPage = 2
	f.hasMore = page.HasMore
	return nil
}

// LoadMore は次のページを取得して一覧に追加する。
// 続きがない場合は何もしない。別の読み込みが進行中の場合はmodel.ErrBusyを返す。
func (f *Feed) LoadMore(ctx context.Context) error {
	if !f.HasMore() {
		return nil
	}
	if !f.loading.CompareAndSwap(false, true) {
		return model.ErrBusy
	}
	defer f.loading.Store(false)

	f.mu.Lock()
	pageNo := f.nextPage
	f.mu.Unlock()

	gen := f.act.Begin()
	page, err := f.source.GetPosts(ctx, pageNo, f.authorID)
	if err != nil {
		return err
	}
	if !f.act.Current(gen) {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, page.Posts...)
	f.nextPage = pageNo + 1
	f.hasMore = page.HasMore
	return nil
}

// Replace は同じIDの投稿を置き換える。いいねの反映などに使う。
func (f *Feed) Replace(post model.Post) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.posts {
		if f.posts[i].ID == post.ID {
			f.posts[i] = post
			return
		}
	}
}

// Posts は表示中の投稿のコピーを返す。
func (f *Feed) Posts() []model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Post{}, f.posts...)
}

// HasMore は続きのページがある場合にtrueを返す。
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasMore
}

// NextPage は次に取得するページ番号を返す。
func (f *Feed) NextPage() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextPage
}

// Loading は読み込み中の場合にtrueを返す。
func (f *Feed) Loading() bool {
	return f.loading.Load()
}

// Close は画面を離れたことを記録し、進行中の読み込み結果を破棄させる。
func (f *Feed) Close() {
	f.act.End()
}
