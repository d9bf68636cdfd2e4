// Package api はリモートのコミュニティサービスに対するドメインファサードを提供する。
// 他のパッケージはこのServiceだけを通してサーバーにアクセスする。
package api

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/shequ/internal/mapper"
	"github.com/hitoshi/shequ/internal/model"
)

// titleLength は本文から導出するタイトルの最大文字数。
const titleLength = 20

// Gateway はHTTPゲートウェイのインターフェース。
// gateway.Clientが実装する。
type Gateway interface {
	Send(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error)
	Upload(ctx context.Context, endpoint, filename string, r io.Reader) (string, error)
}

// Session はセッショントークンの操作インターフェース。
// session.Managerが実装する。
type Session interface {
	Token() string
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Service はコミュニティサービスのドメインファサード。
// ゲートウェイ呼び出しとレスポンスの正規化を組み合わせ、常に正規化済みの形で結果を返す。
type Service struct {
	gateway Gateway
	session Session
	mapper  *mapper.Mapper
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(gateway Gateway, session Session, m *mapper.Mapper, logger *slog.Logger) *Service {
	return &Service{
		gateway: gateway,
		session: session,
		mapper:  m,
		logger:  logger,
	}
}

// Mapper はメディアURLの解決に使うMapperを返す。
func (s *Service) Mapper() *mapper.Mapper {
	return s.mapper
}

func (s *Service) get(ctx context.Context, endpoint string) (gjson.Result, error) {
	return s.gateway.Send(ctx, endpoint, http.MethodGet, nil, nil)
}

func (s *Service) send(ctx context.Context, method, endpoint string, body any) (gjson.Result, error) {
	return s.gateway.Send(ctx, endpoint, method, body, nil)
}

func validateID(field string, id int64) error {
	if id <= 0 {
		return model.NewValidationError(field, "must be a positive id")
	}
	return nil
}

func validateContent(field, content string) error {
	if strings.TrimSpace(content) == "" {
		return model.NewValidationError(field, "must not be blank")
	}
	return nil
}

// --- セッション ---

// Login は認証を行い、トークンを保存してからユーザーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, model.NewValidationError("email", "is required")
	}
	if password == "" {
		return nil, model.NewValidationError("password", "is required")
	}

	res, err := s.send(ctx, http.MethodPost, "/users/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("ログインに失敗しました: %w", err)
	}

	data := res.Get("data")
	token := data.Get("token").String()
	if token == "" {
		return nil, &model.RequestError{
			Endpoint: "/users/login",
			Method:   http.MethodPost,
			Message:  "login response did not contain a token",
			Err:      model.ErrInvalidResponse,
		}
	}
	if err := s.session.Set(ctx, token); err != nil {
		return nil, err
	}

	user := s.mapper.User(data.Get("user"))
	s.logger.Info("logged in", slog.Int64("user_id", user.ID))
	return &user, nil
}

// Logout はローカルのセッションを破棄する。サーバーへの通知は行わない。
func (s *Service) Logout(ctx context.Context) error {
	return s.session.Clear(ctx)
}

// CurrentUser はログイン中のユーザーを返す。
// トークンがなければ通信せずにnilを返す。プロフィール取得がいかなる理由で失敗しても
// 未認証とみなしてセッションを破棄し、nilを返す。IDのないユーザーも未認証として扱う。
func (s *Service) CurrentUser(ctx context.Context) (*model.User, error) {
	if s.session.Token() == "" {
		return nil, nil
	}

	res, err := s.get(ctx, "/users/profile")
	if err != nil {
		s.logger.Warn("profile fetch failed, treating session as logged out",
			slog.String("error", err.Error()),
		)
		if clearErr := s.session.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			s.logger.Error("failed to clear session", slog.String("error", clearErr.Error()))
		}
		return nil, nil
	}

	user := s.mapper.User(mapper.Data(res))
	if user.ID == 0 {
		s.logger.Warn("profile response has no user id, treating session as logged out")
		if clearErr := s.session.Clear(context.WithoutCancel(ctx)); clearErr != nil {
			s.logger.Error("failed to clear session", slog.String("error", clearErr.Error()))
		}
		return nil, nil
	}
	return &user, nil
}

// --- ユーザー ---

// UpdateProfile はプロフィールを更新する。nilのフィールドは送信しない。
func (s *Service) UpdateProfile(ctx context.Context, update model.ProfileUpdate) (*model.User, error) {
	if update.IsEmpty() {
		return nil, model.NewValidationError("profile", "nothing to update")
	}

	res, err := s.send(ctx, http.MethodPut, "/users/profile", update)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	user := s.mapper.User(mapper.Data(res))
	return &user, nil
}

// GetUser はユーザーを取得する。
func (s *Service) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if err := validateID("user id", id); err != nil {
		return nil, err
	}

	res, err := s.get(ctx, fmt.Sprintf("/users/%d", id))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	user := s.mapper.User(mapper.Data(res))
	return &user, nil
}

// UploadFile はファイルをアップロードし、サーバーが返したURLを返す。
// 返却値はサーバー上の参照であり、投稿画像・アバターとしてそのまま送信できる。
func (s *Service) UploadFile(ctx context.Context, filename string, r io.Reader) (string, error) {
	u, err := s.gateway.Upload(ctx, "/uploads/single", filename, r)
	if err != nil {
		return "", fmt.Errorf("ファイルのアップロードに失敗しました: %w", err)
	}
	return u, nil
}

// --- 投稿 ---

// GetPosts は投稿一覧の1ページを取得する。userIDが0より大きい場合は投稿者で絞り込む。
// 続きの有無はpaginationのpageとpagesから判定し、paginationがなければ続きなしとする。
func (s *Service) GetPosts(ctx context.Context, page int, userID int64) (*model.PostPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if userID > 0 {
		q.Set("user_id", strconv.FormatInt(userID, 10))
	}

	res, err := s.get(ctx, "/posts?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}

	result := &model.PostPage{
		Posts: s.mapper.Posts(mapper.ListOf(res, mapper.PagedList...)),
		Page:  page,
	}
	if pagination := res.Get("data.pagination"); pagination.IsObject() {
		if p := pagination.Get("page"); p.Exists() {
			result.Page = int(p.Int())
		}
		result.Pages = int(pagination.Get("pages").Int())
		result.HasMore = result.Page < result.Pages
	}
	return result, nil
}

// GetPost は投稿の詳細を取得する。
func (s *Service) GetPost(ctx context.Context, id int64) (*model.Post, error) {
	if err := validateID("post id", id); err != nil {
		return nil, err
	}

	res, err := s.get(ctx, fmt.Sprintf("/posts/%d", id))
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	post := s.mapper.Post(mapper.Data(res))
	return &post, nil
}

// CreatePost は投稿を作成する。
// タイトルが空の場合は本文の先頭20文字をタイトルにする。
func (s *Service) CreatePost(ctx context.Context, in model.NewPost) (*model.Post, error) {
	if err := validateContent("content", in.Content); err != nil {
		return nil, err
	}

	title := in.Title
	if title == "" {
		title = truncate(in.Content, titleLength)
	}
	category := in.Category
	if category == "" {
		category = model.DefaultCategory
	}
	images := in.Images
	if images == nil {
		images = []string{}
	}

	res, err := s.send(ctx, http.MethodPost, "/posts", map[string]any{
		"title":    title,
		"content":  in.Content,
		"category": category.Label(),
		"images":   images,
	})
	if err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	post := s.mapper.Post(mapper.Data(res))
	return &post, nil
}

// truncate は先頭n文字（rune単位）を返す。
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// GetComments は投稿のコメント一覧を取得する。
func (s *Service) GetComments(ctx context.Context, postID int64) ([]model.Comment, error) {
	if err := validateID("post id", postID); err != nil {
		return nil, err
	}

	res, err := s.get(ctx, fmt.Sprintf("/comments/post/%d", postID))
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	return s.mapper.Comments(mapper.ListOf(res, mapper.DataList...)), nil
}

// PostComment はコメントを投稿する。
func (s *Service) PostComment(ctx context.Context, postID int64, content string) error {
	if err := validateID("post id", postID); err != nil {
		return err
	}
	if err := validateContent("comment", content); err != nil {
		return err
	}

	if _, err := s.send(ctx, http.MethodPost, "/comments", map[string]any{
		"postId":  postID,
		"content": content,
	}); err != nil {
		return fmt.Errorf("コメントの投稿に失敗しました: %w", err)
	}
	return nil
}

// LikePost はいいねを切り替える。
// currentlyLikedがfalseならPOSTでいいねし、trueならクエリパラメータ付きのDELETEで取り消す。
// 現在の状態はサーバーに問い合わせず、呼び出し元が渡した値を使う。
func (s *Service) LikePost(ctx context.Context, postID int64, currentlyLiked bool) error {
	if err := validateID("post id", postID); err != nil {
		return err
	}

	var err error
	if currentlyLiked {
		q := url.Values{}
		q.Set("target_id", strconv.FormatInt(postID, 10))
		q.Set("target_type", "post")
		_, err = s.send(ctx, http.MethodDelete, "/likes?"+q.Encode(), nil)
	} else {
		_, err = s.send(ctx, http.MethodPost, "/likes", map[string]any{
			"target_id":   postID,
			"target_type": "post",
		})
	}
	if err != nil {
		return fmt.Errorf("いいねの更新に失敗しました: %w", err)
	}
	return nil
}

// --- メッセージ ---

// GetConversations は会話一覧（相手ごとの最新メッセージ）を取得する。
func (s *Service) GetConversations(ctx context.Context) ([]model.Message, error) {
	res, err := s.get(ctx, "/messages/list")
	if err != nil {
		return nil, fmt.Errorf("会話一覧の取得に失敗しました: %w", err)
	}
	return s.mapper.Messages(mapper.ListOf(res, mapper.DataList...)), nil
}

// GetChatMessages は相手とのメッセージ履歴を取得する。
func (s *Service) GetChatMessages(ctx context.Context, userID int64) ([]model.Message, error) {
	if err := validateID("user id", userID); err != nil {
		return nil, err
	}

	res, err := s.get(ctx, fmt.Sprintf("/messages/chat/%d", userID))
	if err != nil {
		return nil, fmt.Errorf("メッセージの取得に失敗しました: %w", err)
	}
	return s.mapper.Messages(mapper.ListOf(res, mapper.DataList...)), nil
}

// SendMessage はメッセージを送信し、サーバーが返したメッセージを返す。
func (s *Service) SendMessage(ctx context.Context, receiverID int64, content string) (*model.Message, error) {
	if err := validateID("receiver id", receiverID); err != nil {
		return nil, err
	}
	if err := validateContent("message", content); err != nil {
		return nil, err
	}

	res, err := s.send(ctx, http.MethodPost, "/messages", map[string]any{
		"receiverId": receiverID,
		"content":    content,
	})
	if err != nil {
		return nil, fmt.Errorf("メッセージの送信に失敗しました: %w", err)
	}
	msg := s.mapper.Message(mapper.Data(res))
	return &msg, nil
}

// --- フォロー ---

// FollowUser はユーザーをフォローする。following_idは文字列で送信する。
func (s *Service) FollowUser(ctx context.Context, id int64) error {
	if err := validateID("user id", id); err != nil {
		return err
	}

	if _, err := s.send(ctx, http.MethodPost, "/follows", map[string]string{
		"following_id": strconv.FormatInt(id, 10),
	}); err != nil {
		return fmt.Errorf("フォローに失敗しました: %w", err)
	}
	return nil
}

// UnfollowUser はフォローを解除する。
func (s *Service) UnfollowUser(ctx context.Context, id int64) error {
	if err := validateID("user id", id); err != nil {
		return err
	}

	if _, err := s.send(ctx, http.MethodDelete, fmt.Sprintf("/follows/%d", id), nil); err != nil {
		return fmt.Errorf("フォロー解除に失敗しました: %w", err)
	}
	return nil
}

// CheckFollowStatus はユーザーをフォローしているかを返す。
// 表示を妨げないよう、失敗した場合はエラーを返さずfalseとする。
func (s *Service) CheckFollowStatus(ctx context.Context, id int64) bool {
	if id <= 0 {
		return false
	}

	res, err := s.get(ctx, fmt.Sprintf("/follows/check/%d", id))
	if err != nil {
		s.logger.Debug("follow status check failed", slog.Int64("user_id", id), slog.String("error", err.Error()))
		return false
	}
	return res.Get("data.is_following").Bool()
}

// GetFollowers はフォロワー一覧を取得する。
func (s *Service) GetFollowers(ctx context.Context, id int64) ([]model.User, error) {
	if err := validateID("user id", id); err != nil {
		return nil, err
	}

	res, err := s.get(ctx, fmt.Sprintf("/follows/followers/%d", id))
	if err != nil {
		return nil, fmt.Errorf("フォロワー一覧の取得に失敗しました: %w", err)
	}
	return s.mapper.Users(mapper.ListOf(res, mapper.PagedList...)), nil
}

// GetFollowing はフォロー中のユーザー一覧を取得する。
func (s *Service) GetFollowing(ctx context.Context, id int64) ([]model.User, error) {
	if err := validateID("user id", id); err != nil {
		return nil, err
	}

	res, err := s.get(ctx, fmt.Sprintf("/follows/following/%d", id))
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}
	return s.mapper.Users(mapper.ListOf(res, mapper.PagedList...)), nil
}

// --- お知らせ ---

// GetAnnouncements はお知らせ一覧を取得する。
func (s *Service) GetAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	res, err := s.get(ctx, "/announcements")
	if err != nil {
		return nil, fmt.Errorf("お知らせの取得に失敗しました: %w", err)
	}
	return s.mapper.Announcements(mapper.ListOf(res, mapper.DataList...)), nil
}

// GetBanners はバナー一覧をOrderの昇順で取得する。同じOrderの間ではサーバーの順序を保つ。
func (s *Service) GetBanners(ctx context.Context) ([]model.Banner, error) {
	res, err := s.get(ctx, "/banners")
	if err != nil {
		return nil, fmt.Errorf("バナーの取得に失敗しました: %w", err)
	}
	banners := s.mapper.Banners(mapper.ListOf(res, mapper.DataList...))
	slices.SortStableFunc(banners, func(a, b model.Banner) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return banners, nil
}
