package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/hitoshi/shequ/internal/apitest"
	"github.com/hitoshi/shequ/internal/gateway"
	"github.com/hitoshi/shequ/internal/mapper"
	"github.com/hitoshi/shequ/internal/model"
	"github.com/hitoshi/shequ/internal/session"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// --- モック ---

type mockGateway struct {
	sendFn   func(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error)
	uploadFn func(ctx context.Context, endpoint, filename string, r io.Reader) (string, error)
}

func (m *mockGateway) Send(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error) {
	return m.sendFn(ctx, endpoint, method, body, header)
}

func (m *mockGateway) Upload(ctx context.Context, endpoint, filename string, r io.Reader) (string, error) {
	return m.uploadFn(ctx, endpoint, filename, r)
}

// --- テスト環境 ---

type testEnv struct {
	server  *apitest.Server
	store   *session.MemoryStore
	session *session.Manager
	svc     *Service
	logs    *bytes.Buffer
}

// newTestEnv はインメモリのAPIサーバーに接続したServiceを構築する。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	server := apitest.NewServer()
	t.Cleanup(server.Close)

	var logs bytes.Buffer
	logger := newTestLogger(&logs)
	store := session.NewMemoryStore()
	mgr := session.NewManager(store, logger)
	client := gateway.NewClient(server.Client(), mgr, logger, nil, gateway.ClientConfig{BaseURL: server.BaseURL()})

	return &testEnv{
		server:  server,
		store:   store,
		session: mgr,
		svc:     NewService(client, mgr, mapper.New(server.URL), logger),
		logs:    &logs,
	}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	if _, err := e.svc.Login(context.Background(), apitest.Email, apitest.Password); err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
}

func newMockService(gw *mockGateway) *Service {
	var buf bytes.Buffer
	return NewService(gw, session.NewManager(session.NewMemoryStore(), newTestLogger(&buf)), mapper.New("http://origin"), newTestLogger(&buf))
}

// --- セッション ---

func TestLogin_StoresTokenBeforeReturningUser(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.svc.Login(context.Background(), apitest.Email, apitest.Password)
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if user.ID != apitest.MeID || user.Username != "alice" {
		t.Errorf("user = %+v, want alice", user)
	}
	if user.Avatar != env.server.URL+"/uploads/avatars/alice.png" {
		t.Errorf("Avatar = %q, want 絶対URL", user.Avatar)
	}

	token, ok, _ := env.store.Get(context.Background())
	if !ok || token != apitest.Token {
		t.Errorf("保存されたトークン = %q (ok=%v), want %q", token, ok, apitest.Token)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.svc.Login(context.Background(), apitest.Email, "wrong")
	if err == nil {
		t.Fatal("エラーが返されること")
	}
	if user != nil {
		t.Errorf("user = %+v, want nil", user)
	}
	var reqErr *model.RequestError
	if !errors.As(err, &reqErr) || reqErr.Message != "invalid email or password" {
		t.Errorf("error = %v, want サーバーのメッセージ", err)
	}
	if _, ok, _ := env.store.Get(context.Background()); ok {
		t.Error("失敗時にトークンを保存してはならない")
	}
}

func TestLogin_Validation(t *testing.T) {
	svc := newMockService(&mockGateway{
		sendFn: func(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error) {
			t.Fatal("入力検証エラー時に通信してはならない")
			return gjson.Result{}, nil
		},
	})

	for _, tc := range []struct{ email, password string }{{"", "x"}, {"a@b.c", ""}, {"  ", "x"}} {
		if _, err := svc.Login(context.Background(), tc.email, tc.password); !errors.Is(err, model.ErrValidation) {
			t.Errorf("Login(%q, %q) error = %v, want ErrValidation", tc.email, tc.password, err)
		}
	}
}

func TestLogin_MissingToken_ReturnsInvalidResponse(t *testing.T) {
	svc := newMockService(&mockGateway{
		sendFn: func(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error) {
			return gjson.Parse(`{"data":{"user":{"id":1}}}`), nil
		},
	})

	if _, err := svc.Login(context.Background(), "a@b.c", "x"); !errors.Is(err, model.ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	if err := env.svc.Logout(context.Background()); err != nil {
		t.Fatalf("Logout がエラーを返した: %v", err)
	}
	if env.session.Token() != "" {
		t.Error("Logout 後はトークンが空であること")
	}
	if _, ok, _ := env.store.Get(context.Background()); ok {
		t.Error("Logout 後は永続スロットも空であること")
	}
}

func TestCurrentUser_NoToken_SkipsRequest(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.svc.CurrentUser(context.Background())
	if err != nil || user != nil {
		t.Errorf("CurrentUser = (%v, %v), want (nil, nil)", user, err)
	}
	if n := len(env.server.Requests()); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestCurrentUser_ReturnsProfile(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	user, err := env.svc.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser がエラーを返した: %v", err)
	}
	if user == nil || user.ID != apitest.MeID {
		t.Fatalf("user = %+v, want id %d", user, apitest.MeID)
	}
	if user.FollowingCount != 1 || user.FollowersCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2", user.FollowingCount, user.FollowersCount)
	}
}

func TestCurrentUser_FailClosed(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"サーバーエラー", apitest.Token, http.StatusInternalServerError},
		{"期限切れトークン", "expired-token", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			if err := env.session.Set(context.Background(), tt.token); err != nil {
				t.Fatalf("Set に失敗: %v", err)
			}
			if tt.status != 0 {
				env.server.Fail(http.MethodGet, "/users/profile", tt.status, "boom")
			}

			user, err := env.svc.CurrentUser(context.Background())
			if err != nil || user != nil {
				t.Errorf("CurrentUser = (%v, %v), want (nil, nil)", user, err)
			}
			if _, ok, _ := env.store.Get(context.Background()); ok {
				t.Error("プロフィール取得失敗後はトークンが破棄されていること")
			}
		})
	}
}

func TestCurrentUser_NullData_FailClosed(t *testing.T) {
	bodies := []string{
		`{"code":0,"data":null}`,
		`{"code":0,"data":{}}`,
		`null`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newTestLogger(&buf)
			store := session.NewMemoryStore()
			mgr := session.NewManager(store, logger)
			if err := mgr.Set(context.Background(), "tok"); err != nil {
				t.Fatalf("Set に失敗: %v", err)
			}
			gw := &mockGateway{
				sendFn: func(ctx context.Context, endpoint, method string, body2 any, header http.Header) (gjson.Result, error) {
					return gjson.Parse(body), nil
				},
			}
			svc := NewService(gw, mgr, mapper.New("http://origin"), logger)

			user, err := svc.CurrentUser(context.Background())
			if err != nil || user != nil {
				t.Errorf("CurrentUser = (%+v, %v), want (nil, nil)", user, err)
			}
			if mgr.Token() != "" {
				t.Errorf("Token() = %q, ユーザーIDがない場合はトークンが破棄されていること", mgr.Token())
			}
			if _, ok, _ := store.Get(context.Background()); ok {
				t.Error("ストアのトークンが破棄されていること")
			}
		})
	}
}

// --- ユーザー ---

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	nickname := "Alice W."
	user, err := env.svc.UpdateProfile(context.Background(), model.ProfileUpdate{Nickname: &nickname})
	if err != nil {
		t.Fatalf("UpdateProfile がエラーを返した: %v", err)
	}
	if user.Nickname != nickname {
		t.Errorf("Nickname = %q, want %q", user.Nickname, nickname)
	}

	req, _ := env.server.LastRequest(http.MethodPut, "/users/profile")
	if string(req.Body) != `{"nickname":"Alice W."}` {
		t.Errorf("body = %s, want nickname のみ", req.Body)
	}
}

func TestUpdateProfile_Empty_ReturnsValidation(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.UpdateProfile(context.Background(), model.ProfileUpdate{}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	user, err := env.svc.GetUser(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetUser がエラーを返した: %v", err)
	}
	if user.Username != "bob" || user.Avatar != env.server.URL+"/uploads/avatars/bob.png" {
		t.Errorf("user = %+v", user)
	}

	if _, err := env.svc.GetUser(context.Background(), 0); !errors.Is(err, model.ErrValidation) {
		t.Errorf("GetUser(0) error = %v, want ErrValidation", err)
	}
}

func TestUploadFile_ReturnsServerURL(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	u, err := env.svc.UploadFile(context.Background(), "photo.jpg", strings.NewReader("JPEG"))
	if err != nil {
		t.Fatalf("UploadFile がエラーを返した: %v", err)
	}
	if !strings.HasPrefix(u, "/uploads/") || !strings.HasSuffix(u, "-photo.jpg") {
		t.Errorf("url = %q", u)
	}
	if data, ok := env.server.Uploaded(u); !ok || string(data) != "JPEG" {
		t.Errorf("uploaded = %q (ok=%v)", data, ok)
	}
}

// --- 投稿 ---

func TestGetPosts_HasMore(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"最終ページ", `{"data":{"list":[],"pagination":{"page":3,"pages":3}}}`, false},
		{"続きあり", `{"data":{"list":[],"pagination":{"page":2,"pages":5}}}`, true},
		{"paginationなし", `{"data":{"list":[{"id":1}]}}`, false},
		{"エンベロープなし", `[]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newMockService(&mockGateway{
				sendFn: func(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error) {
					return gjson.Parse(tt.body), nil
				},
			})

			page, err := svc.GetPosts(context.Background(), 1, 0)
			if err != nil {
				t.Fatalf("GetPosts がエラーを返した: %v", err)
			}
			if page.HasMore != tt.want {
				t.Errorf("HasMore = %v, want %v", page.HasMore, tt.want)
			}
		})
	}
}

func TestGetPosts_QueryParameters(t *testing.T) {
	var got string
	svc := newMockService(&mockGateway{
		sendFn: func(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error) {
			got = endpoint
			return gjson.Parse(`{"data":{"list":[]}}`), nil
		},
	})

	svc.GetPosts(context.Background(), 0, 0)
	if got != "/posts?page=1" {
		t.Errorf("endpoint = %q, want /posts?page=1", got)
	}

	svc.GetPosts(context.Background(), 2, 7)
	if got != "/posts?page=2&user_id=7" {
		t.Errorf("endpoint = %q, want /posts?page=2&user_id=7", got)
	}
}

func TestLoginThenGetPosts_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	if token, ok, _ := env.store.Get(context.Background()); !ok || token == "" {
		t.Fatal("ログイン後にトークンが永続化されていること")
	}

	page, err := env.svc.GetPosts(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("GetPosts がエラーを返した: %v", err)
	}
	if len(page.Posts) != apitest.PageSize {
		t.Fatalf("len(Posts) = %d, want %d", len(page.Posts), apitest.PageSize)
	}
	if !page.HasMore {
		t.Error("1ページ目は続きがあること")
	}

	for _, p := range page.Posts {
		for _, img := range p.Images {
			if !strings.HasPrefix(img, "http://") && !strings.HasPrefix(img, "https://") {
				t.Errorf("post %d image %q が絶対URLではない", p.ID, img)
			}
		}
	}

	// 投稿5はis_likedを含まない、投稿4はtrue
	if page.Posts[0].ID != 5 || page.Posts[0].IsLiked {
		t.Errorf("post[0] = %+v, want id 5, is_liked=false", page.Posts[0])
	}
	if page.Posts[1].ID != 4 || !page.Posts[1].IsLiked {
		t.Errorf("post[1] = %+v, want id 4, is_liked=true", page.Posts[1])
	}
	if len(page.Posts[0].Images) != 2 {
		t.Errorf("post 5 images = %v, want 2件", page.Posts[0].Images)
	}
}

func TestGetPosts_LastPageAndAuthorScope(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	page, err := env.svc.GetPosts(context.Background(), 3, 0)
	if err != nil {
		t.Fatalf("GetPosts がエラーを返した: %v", err)
	}
	if page.HasMore || len(page.Posts) != 1 {
		t.Errorf("page = %+v, want 最終ページ1件", page)
	}
	if len(page.Posts[0].Images) != 0 || page.Posts[0].Images == nil {
		t.Errorf("Images = %#v, want 空配列", page.Posts[0].Images)
	}

	scoped, err := env.svc.GetPosts(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetPosts がエラーを返した: %v", err)
	}
	for _, p := range scoped.Posts {
		if p.Author.ID != 2 {
			t.Errorf("author = %d, want 2", p.Author.ID)
		}
	}
}

func TestGetPost_LegacyMedia(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	post, err := env.svc.GetPost(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetPost がエラーを返した: %v", err)
	}
	if len(post.Images) != 1 || post.Images[0] != env.server.URL+"/uploads/water.png" {
		t.Errorf("Images = %v", post.Images)
	}
	if post.Category != model.CategoryAnnouncement {
		t.Errorf("Category = %q, want announcement", post.Category)
	}
}

func TestGetPost_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	_, err := env.svc.GetPost(context.Background(), 999)
	var reqErr *model.RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != http.StatusNotFound || reqErr.Message != "not found" {
		t.Errorf("error = %v, want 404 not found", err)
	}
}

func TestCreatePost_DerivesTitleFromContent(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	content := "今天小区东门的桂花开了大家可以去看看真的很香啊"
	post, err := env.svc.CreatePost(context.Background(), model.NewPost{Content: content, Category: model.CategoryHelp})
	if err != nil {
		t.Fatalf("CreatePost がエラーを返した: %v", err)
	}
	if post.ID == 0 {
		t.Error("作成された投稿のIDが返ること")
	}

	req, _ := env.server.LastRequest(http.MethodPost, "/posts")
	body := gjson.ParseBytes(req.Body)
	if got := body.Get("title").String(); got != string([]rune(content)[:20]) {
		t.Errorf("title = %q, want 先頭20文字", got)
	}
	if got := body.Get("category").String(); got != "求助" {
		t.Errorf("category = %q, want 求助", got)
	}
	if !body.Get("images").IsArray() {
		t.Errorf("images = %s, want 配列", body.Get("images").Raw)
	}
}

func TestCreatePost_KeepsExplicitTitleAndShortContent(t *testing.T) {
	var sent map[string]any
	svc := newMockService(&mockGateway{
		sendFn: func(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error) {
			sent = body.(map[string]any)
			return gjson.Parse(`{"data":{"id":1}}`), nil
		},
	})

	svc.CreatePost(context.Background(), model.NewPost{Title: "Notice", Content: "short"})
	if sent["title"] != "Notice" {
		t.Errorf("title = %v, want Notice", sent["title"])
	}
	if sent["category"] != model.DefaultCategory.Label() {
		t.Errorf("category = %v, want %s", sent["category"], model.DefaultCategory.Label())
	}

	svc.CreatePost(context.Background(), model.NewPost{Content: "short"})
	if sent["title"] != "short" {
		t.Errorf("title = %v, want short", sent["title"])
	}

	if _, err := svc.CreatePost(context.Background(), model.NewPost{Content: "   "}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestComments(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	if err := env.svc.PostComment(context.Background(), 5, "Found it!"); err != nil {
		t.Fatalf("PostComment がエラーを返した: %v", err)
	}
	comments, err := env.svc.GetComments(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetComments がエラーを返した: %v", err)
	}
	if len(comments) != 2 || comments[1].Content != "Found it!" {
		t.Errorf("comments = %+v", comments)
	}

	req, _ := env.server.LastRequest(http.MethodPost, "/comments")
	if string(req.Body) != `{"content":"Found it!","postId":5}` {
		t.Errorf("body = %s", req.Body)
	}
}

func TestLikePost_RequestShape(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	if err := env.svc.LikePost(context.Background(), 5, false); err != nil {
		t.Fatalf("LikePost(false) がエラーを返した: %v", err)
	}
	req, ok := env.server.LastRequest(http.MethodPost, "/likes")
	if !ok {
		t.Fatal("POST /likes が送信されていない")
	}
	var body map[string]any
	json.Unmarshal(req.Body, &body)
	if body["target_id"] != float64(5) || body["target_type"] != "post" {
		t.Errorf("body = %s, want {target_id:5, target_type:post}", req.Body)
	}

	if err := env.svc.LikePost(context.Background(), 5, true); err != nil {
		t.Fatalf("LikePost(true) がエラーを返した: %v", err)
	}
	req, ok = env.server.LastRequest(http.MethodDelete, "/likes")
	if !ok {
		t.Fatal("DELETE /likes が送信されていない")
	}
	if len(req.Body) != 0 {
		t.Errorf("DELETE のボディ = %s, want 空", req.Body)
	}
	q, _ := url.ParseQuery(req.RawQuery)
	if q.Get("target_id") != "5" || q.Get("target_type") != "post" {
		t.Errorf("query = %s", req.RawQuery)
	}
}

// --- メッセージ ---

func TestGetConversations_BareArray(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	convs, err := env.svc.GetConversations(context.Background())
	if err != nil {
		t.Fatalf("GetConversations がエラーを返した: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("len = %d, want 2", len(convs))
	}
	if convs[0].OtherParty(apitest.MeID).ID != apitest.PeerID || !convs[0].Unread(apitest.MeID) {
		t.Errorf("convs[0] = %+v, want bobからの未読", convs[0])
	}
	if convs[1].Unread(apitest.MeID) {
		t.Error("convs[1] は既読であること")
	}
}

func TestGetChatMessages_Envelope(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	msgs, err := env.svc.GetChatMessages(context.Background(), apitest.PeerID)
	if err != nil {
		t.Fatalf("GetChatMessages がエラーを返した: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "Hi Bob" {
		t.Errorf("msgs = %+v", msgs)
	}
}

func TestMessageLists_AcceptBothShapes(t *testing.T) {
	for _, body := range []string{`[{"id":1},{"id":2}]`, `{"data":[{"id":1},{"id":2}]}`} {
		svc := newMockService(&mockGateway{
			sendFn: func(ctx context.Context, endpoint, method string, b any, header http.Header) (gjson.Result, error) {
				return gjson.Parse(body), nil
			},
		})
		convs, _ := svc.GetConversations(context.Background())
		chat, _ := svc.GetChatMessages(context.Background(), 2)
		if len(convs) != 2 || len(chat) != 2 {
			t.Errorf("body %s: convs=%d chat=%d, want 2/2", body, len(convs), len(chat))
		}
	}
}

func TestSendMessage_ReturnsEcho(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	msg, err := env.svc.SendMessage(context.Background(), apitest.PeerID, "See you there")
	if err != nil {
		t.Fatalf("SendMessage がエラーを返した: %v", err)
	}
	if msg.ID == 0 || msg.Content != "See you there" || msg.SenderID != apitest.MeID {
		t.Errorf("msg = %+v", msg)
	}

	if _, err := env.svc.SendMessage(context.Background(), apitest.PeerID, " "); !errors.Is(err, model.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

// --- フォロー ---

func TestFollowUser_SendsStringID(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	if err := env.svc.FollowUser(context.Background(), 3); err != nil {
		t.Fatalf("FollowUser がエラーを返した: %v", err)
	}
	req, _ := env.server.LastRequest(http.MethodPost, "/follows")
	if string(req.Body) != `{"following_id":"3"}` {
		t.Errorf("body = %s, want {\"following_id\":\"3\"}", req.Body)
	}
	if !env.svc.CheckFollowStatus(context.Background(), 3) {
		t.Error("フォロー後は true であること")
	}

	if err := env.svc.UnfollowUser(context.Background(), 3); err != nil {
		t.Fatalf("UnfollowUser がエラーを返した: %v", err)
	}
	if env.svc.CheckFollowStatus(context.Background(), 3) {
		t.Error("フォロー解除後は false であること")
	}
}

func TestCheckFollowStatus_SwallowsErrors(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	env.server.Fail(http.MethodGet, "/follows/check/2", http.StatusInternalServerError, "boom")
	if env.svc.CheckFollowStatus(context.Background(), 2) {
		t.Error("失敗時は false であること")
	}
	if env.session.Token() == "" {
		t.Error("フォロー状態の確認失敗でセッションを破棄してはならない")
	}
}

func TestFollowersAndFollowing(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	followers, err := env.svc.GetFollowers(context.Background(), apitest.MeID)
	if err != nil {
		t.Fatalf("GetFollowers がエラーを返した: %v", err)
	}
	if len(followers) != 2 || followers[0].Username != "bob" || followers[1].Username != "chen" {
		t.Errorf("followers = %+v", followers)
	}

	following, err := env.svc.GetFollowing(context.Background(), apitest.MeID)
	if err != nil {
		t.Fatalf("GetFollowing がエラーを返した: %v", err)
	}
	if len(following) != 1 || following[0].ID != 2 {
		t.Errorf("following = %+v", following)
	}
}

// --- お知らせ ---

func TestGetAnnouncements(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	list, err := env.svc.GetAnnouncements(context.Background())
	if err != nil {
		t.Fatalf("GetAnnouncements がエラーを返した: %v", err)
	}
	if len(list) != 2 || !list[0].IsActive || !list[1].IsActive {
		t.Errorf("announcements = %+v", list)
	}
}

func TestGetBanners_SortedByOrder(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	banners, err := env.svc.GetBanners(context.Background())
	if err != nil {
		t.Fatalf("GetBanners がエラーを返した: %v", err)
	}
	var ids []int64
	for _, b := range banners {
		ids = append(ids, b.ID)
	}
	if len(ids) != 3 || ids[0] != 2 || ids[1] != 1 || ids[2] != 3 {
		t.Errorf("ids = %v, want [2 1 3]", ids)
	}
	if banners[0].ImageURL != env.server.URL+"/uploads/banners/volunteer.png" {
		t.Errorf("ImageURL = %q", banners[0].ImageURL)
	}
}

func TestGetAnnouncements_EmptyData(t *testing.T) {
	svc := newMockService(&mockGateway{
		sendFn: func(ctx context.Context, endpoint, method string, body any, header http.Header) (gjson.Result, error) {
			return gjson.Parse(`{"data":null}`), nil
		},
	})
	list, err := svc.GetAnnouncements(context.Background())
	if err != nil || list == nil || len(list) != 0 {
		t.Errorf("GetAnnouncements = (%v, %v), want 空スライス", list, err)
	}
}
