package view

import (
	"context"
	"sync"

	"github.com/hitoshi/shequ/internal/model"
)

// LikeToggle は投稿のいいね状態を楽観的に切り替える。
// 表示はリクエスト前に更新し、失敗した場合は元の状態に戻す。
type LikeToggle struct {
	liker  Liker
	postID int64

	mu      sync.Mutex
	liked   bool
	count   int
	pending bool
}

// NewLikeToggle は投稿の現在の状態からLikeToggleを生成する。
func NewLikeToggle(liker Liker, post model.Post) *LikeToggle {
	return &LikeToggle{
		liker:  liker,
		postID: post.ID,
		liked:  post.IsLiked,
		count:  post.LikesCount,
	}
}

// Toggle はいいねを切り替える。前回の切り替えが完了していない場合はmodel.ErrBusyを返す。
func (l *LikeToggle) Toggle(ctx context.Context) error {
	l.mu.Lock()
	if l.pending {
		l.mu.Unlock()
		return model.ErrBusy
	}
	prevLiked, prevCount := l.liked, l.count
	l.liked = !prevLiked
	if l.liked {
		l.count++
	} else {
		l.count = max(l.count-1, 0)
	}
	l.pending = true
	l.mu.Unlock()

	err := l.liker.LikePost(ctx, l.postID, prevLiked)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = false
	if err != nil {
		l.liked, l.count = prevLiked, prevCount
		return err
	}
	return nil
}

// State は現在のいいね状態といいね数を返す。
func (l *LikeToggle) State() (liked bool, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.liked, l.count
}

// Apply は現在の状態を投稿に反映する。
func (l *LikeToggle) Apply(post *model.Post) {
	post.IsLiked, post.LikesCount = l.State()
}

// FollowToggle はユーザーのフォロー状態を楽観的に切り替える。
// フォロワー数は0未満にならない。
type FollowToggle struct {
	follower Follower
	userID   int64

	mu        sync.Mutex
	following bool
	followers int
	pending   bool
}

// NewFollowToggle はユーザーと現在のフォロー状態からFollowToggleを生成する。
func NewFollowToggle(follower Follower, user model.User, following bool) *FollowToggle {
	return &FollowToggle{
		follower:  follower,
		userID:    user.ID,
		following: following,
		followers: user.FollowersCount,
	}
}

// Refresh はサーバーにフォロー状態を問い合わせる。
// 問い合わせに失敗した場合はフォローしていないものとして扱う。
func (f *FollowToggle) Refresh(ctx context.Context) {
	following := f.follower.CheckFollowStatus(ctx, f.userID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending {
		f.following = following
	}
}

// Toggle はフォローを切り替える。前回の切り替えが完了していない場合はmodel.ErrBusyを返す。
func (f *FollowToggle) Toggle(ctx context.Context) error {
	f.mu.Lock()
	if f.pending {
		f.mu.Unlock()
		return model.ErrBusy
	}
	prevFollowing, prevFollowers := f.following, f.followers
	f.following = !prevFollowing
	if f.following {
		f.followers++
	} else {
		f.followers = max(f.followers-1, 0)
	}
	f.pending = true
	f.mu.Unlock()

	var err error
	if prevFollowing {
		err = f.follower.UnfollowUser(ctx, f.userID)
	} else {
		err = f.follower.FollowUser(ctx, f.userID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = false
	if err != nil {
		f.following, f.followers = prevFollowing, prevFollowers
		return err
	}
	return nil
}

// State は現在のフォロー状態とフォロワー数を返す。
func (f *FollowToggle) State() (following bool, followers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.following, f.followers
}
