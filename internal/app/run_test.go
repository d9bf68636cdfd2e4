package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/shequ/internal/apitest"
	"github.com/hitoshi/shequ/internal/model"
)

// setTestEnv はapitestサーバーを起動し、一時ディレクトリのSQLiteをトークンスロットに設定する。
func setTestEnv(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	t.Setenv("SHEQU_SERVER_ORIGIN", srv.URL)
	t.Setenv("SHEQU_TOKEN_STORE", "sqlite")
	t.Setenv("SHEQU_TOKEN_DB", filepath.Join(t.TempDir(), "session.db"))
	t.Setenv("SHEQU_METRICS_ADDR", "")
	t.Setenv("SHEQU_RATE_LIMIT", "")
	return srv
}

// run はRunを実行し、描画出力を返す。
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	err := Run(&out, &logs, args)
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("shequ %s が失敗しました: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func login(t *testing.T) {
	t.Helper()
	mustRun(t, "login", apitest.Email, apitest.Password)
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("出力に %q が含まれていません:\n%s", w, out)
		}
	}
}

func TestRun_Help(t *testing.T) {
	out, err := run(t)
	if err != nil {
		t.Fatalf("helpはエラーを返すべきではありません: %v", err)
	}
	assertContains(t, out, "Usage: shequ", "login <email> <password>", "media <url> <out-file>")
}

func TestRun_UnknownCommand_PrintsUsageAndFails(t *testing.T) {
	out, err := run(t, "serve")
	if err == nil {
		t.Fatal("未知のコマンドはエラーになるべきです")
	}
	assertContains(t, out, "Usage: shequ")
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("SHEQU_SERVER_ORIGIN", "")

	if _, err := run(t, "whoami"); err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

// TestRun_LoginPersistsAcrossRuns はトークンがSQLiteに保存され、次回起動時に読み込まれることを検証する。
func TestRun_LoginPersistsAcrossRuns(t *testing.T) {
	srv := setTestEnv(t)

	out := mustRun(t, "login", apitest.Email, apitest.Password)
	assertContains(t, out, "Logged in as Alice (@alice)")

	out = mustRun(t, "whoami")
	assertContains(t, out, "Alice (@alice) #1", "Building 3", srv.URL+"/uploads/avatars/alice.png")

	req, ok := srv.LastRequest("GET", "/users/profile")
	if !ok {
		t.Fatal("プロフィールのリクエストが送信されていません")
	}
	if req.Authorization != "Bearer "+apitest.Token {
		t.Errorf("Authorization = %q, want %q", req.Authorization, "Bearer "+apitest.Token)
	}
}

func TestRun_WhoamiWithoutLogin(t *testing.T) {
	srv := setTestEnv(t)

	_, err := run(t, "whoami")
	if !errors.Is(err, model.ErrNotLoggedIn) {
		t.Fatalf("ErrNotLoggedInであるべきです: %v", err)
	}
	if len(srv.Requests()) != 0 {
		t.Errorf("トークンがない場合はリクエストを送信すべきではありません: %d", len(srv.Requests()))
	}
}

func TestRun_Logout(t *testing.T) {
	setTestEnv(t)
	login(t)

	assertContains(t, mustRun(t, "logout"), "Logged out.")

	if _, err := run(t, "whoami"); !errors.Is(err, model.ErrNotLoggedIn) {
		t.Fatalf("ログアウト後はErrNotLoggedInであるべきです: %v", err)
	}
}

func TestRun_InvalidCredentials(t *testing.T) {
	setTestEnv(t)

	_, err := run(t, "login", apitest.Email, "wrong")
	if err == nil {
		t.Fatal("不正な認証情報はエラーになるべきです")
	}
	if got := FormatError(err); !strings.Contains(got, "invalid email or password") {
		t.Errorf("サーバーのメッセージが表示されていません: %q", got)
	}
}

func TestRun_Feed(t *testing.T) {
	setTestEnv(t)
	login(t)

	out := mustRun(t, "feed")
	assertContains(t, out, "#5 [help] Alice", "#4 [activity] Bob", "BBQ", "--pages 2")
	if strings.Contains(out, "#3 ") {
		t.Errorf("1ページ目に3件目が含まれています:\n%s", out)
	}

	out = mustRun(t, "feed", "--pages", "5")
	assertContains(t, out, "#1 [life] Alice", "Hello neighbors")
	if strings.Contains(out, "more posts") {
		t.Errorf("最終ページで続きを案内すべきではありません:\n%s", out)
	}
}

func TestRun_FeedByAuthor(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	out := mustRun(t, "feed", "--user", "2")
	assertContains(t, out, "#4 ", "#2 ")
	if strings.Contains(out, "#5 ") {
		t.Errorf("他のユーザーの投稿が含まれています:\n%s", out)
	}

	req, _ := srv.LastRequest("GET", "/posts")
	if req.RawQuery != "page=1&user_id=2" {
		t.Errorf("query = %q, want %q", req.RawQuery, "page=1&user_id=2")
	}
}

func TestRun_PostDetail(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	out := mustRun(t, "post", "5")
	assertContains(t, out,
		"Lost cat near the east gate",
		"image: "+srv.URL+"/uploads/",
		"Comments (1)",
		"I saw it by the bike shed",
	)
}

func TestRun_PostNotFound(t *testing.T) {
	setTestEnv(t)
	login(t)

	_, err := run(t, "post", "999")
	if err == nil {
		t.Fatal("存在しない投稿はエラーになるべきです")
	}
	if got := FormatError(err); !strings.Contains(got, "not found") {
		t.Errorf("FormatError() = %q", got)
	}
}

func TestRun_InvalidID(t *testing.T) {
	setTestEnv(t)

	_, err := run(t, "post", "abc")
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("ErrValidationであるべきです: %v", err)
	}
}

func TestRun_LikeAndUnlike(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	assertContains(t, mustRun(t, "like", "5"), "Post #5: liked (2 likes)")
	if srv.CountRequests("POST", "/likes") != 1 {
		t.Errorf("いいねのリクエスト数 = %d, want 1", srv.CountRequests("POST", "/likes"))
	}

	// いいね済みの場合はリクエストを送らない
	assertContains(t, mustRun(t, "like", "5"), "Post #5: liked (2 likes)")
	if srv.CountRequests("POST", "/likes") != 1 {
		t.Errorf("いいね済みの投稿に再度リクエストが送信されました")
	}

	assertContains(t, mustRun(t, "unlike", "5"), "Post #5: not liked (1 likes)")
	req, ok := srv.LastRequest("DELETE", "/likes")
	if !ok {
		t.Fatal("いいね解除のリクエストが送信されていません")
	}
	if req.RawQuery != "target_id=5&target_type=post" {
		t.Errorf("query = %q", req.RawQuery)
	}
}

func TestRun_Comment(t *testing.T) {
	setTestEnv(t)
	login(t)

	out := mustRun(t, "comment", "5", "Found", "it!")
	assertContains(t, out, "Comment added to post #5 (2 comments)")

	out = mustRun(t, "post", "5")
	assertContains(t, out, "Found it!")
}

func TestRun_ComposeWithAttachment(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	path := filepath.Join(t.TempDir(), "cat.png")
	if err := os.WriteFile(path, []byte("PNG"), 0o600); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, "compose", "help", "Has anyone seen my cat?", path)
	assertContains(t, out, "Published post #", "(help, 1 images)")

	req, ok := srv.LastRequest("POST", "/posts")
	if !ok {
		t.Fatal("投稿作成のリクエストが送信されていません")
	}
	assertContains(t, string(req.Body), `"category":"求助"`, `"title":"Has anyone seen my c"`, "cat.png")
}

func TestRun_ComposeMissingFile_DoesNotPublish(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	_, err := run(t, "compose", "life", "hello", filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("ErrValidationであるべきです: %v", err)
	}
	if srv.CountRequests("POST", "/users/login") != 1 {
		t.Fatalf("ログインのリクエスト数 = %d, want 1", srv.CountRequests("POST", "/users/login"))
	}
	if srv.CountRequests("POST", "/posts") != 0 {
		t.Error("添付に失敗した場合は投稿すべきではありません")
	}
}

func TestRun_UserAndFollow(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	assertContains(t, mustRun(t, "user", "2"), "Bob (@bob) #2", "you follow this user")
	assertContains(t, mustRun(t, "user", "3"), "chen (@chen) #3", "you do not follow this user")

	assertContains(t, mustRun(t, "follow", "3"), "chen: following (1 followers)")
	req, ok := srv.LastRequest("POST", "/follows")
	if !ok {
		t.Fatal("フォローのリクエストが送信されていません")
	}
	assertContains(t, string(req.Body), `"following_id":"3"`)

	assertContains(t, mustRun(t, "followers", "3"), "Followers (1)", "#1 Alice (@alice)")
	assertContains(t, mustRun(t, "unfollow", "3"), "chen: not following (0 followers)")
	assertContains(t, mustRun(t, "following", "1"), "Following (1)", "#2 Bob (@bob)")
}

func TestRun_InboxOnce(t *testing.T) {
	setTestEnv(t)
	login(t)

	out := mustRun(t, "inbox", "--once")
	assertContains(t, out,
		"Conversations (2, 1 unread)",
		"* #2 Bob: Are you coming to the BBQ?",
		"  #3 chen: Thanks for the help",
	)
}

func TestRun_SendAndChatOnce(t *testing.T) {
	setTestEnv(t)
	login(t)

	assertContains(t, mustRun(t, "send", "2", "See", "you", "there"), "Sent message #", "to user #2")

	out := mustRun(t, "chat", "--once", "2")
	assertContains(t, out, "me: Hi Bob", "Bob: Are you coming to the BBQ?", "me: See you there")
	if strings.Index(out, "Hi Bob") > strings.Index(out, "See you there") {
		t.Errorf("メッセージは時系列順であるべきです:\n%s", out)
	}
}

func TestRun_UploadAndMedia(t *testing.T) {
	setTestEnv(t)
	login(t)

	dir := t.TempDir()
	src := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(src, []byte("PNGDATA"), 0o600); err != nil {
		t.Fatal(err)
	}

	u := strings.TrimSpace(mustRun(t, "upload", src))
	if !strings.HasPrefix(u, "http://") || !strings.HasSuffix(u, "photo.png") {
		t.Fatalf("アップロードURLが不正です: %q", u)
	}

	dst := filepath.Join(dir, "out.png")
	assertContains(t, mustRun(t, "media", u, dst), "Saved 7 bytes")

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "PNGDATA" {
		t.Errorf("保存内容 = %q, want %q", data, "PNGDATA")
	}
}

func TestRun_MediaBlocksOtherLoopbackHost(t *testing.T) {
	setTestEnv(t)
	other := apitest.NewServer()
	defer other.Close()

	dst := filepath.Join(t.TempDir(), "out.png")
	if _, err := run(t, "media", other.URL+"/uploads/x.png", dst); err == nil {
		t.Fatal("別ホストのループバックURLはエラーになるべきです")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Error("失敗時は出力ファイルを残すべきではありません")
	}
	if len(other.Requests()) != 0 {
		t.Error("ブロックされたホストにリクエストが送信されました")
	}
}

func TestRun_Profile(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	out := mustRun(t, "profile", "--nickname", "Alice W.")
	assertContains(t, out, "Profile updated.", "Alice W. (@alice)")

	req, ok := srv.LastRequest("PUT", "/users/profile")
	if !ok {
		t.Fatal("プロフィール更新のリクエストが送信されていません")
	}
	if string(req.Body) != `{"nickname":"Alice W."}` {
		t.Errorf("body = %s", req.Body)
	}
}

func TestRun_ProfileWithoutChanges(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	if _, err := run(t, "profile"); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("ErrValidationであるべきです: %v", err)
	}
	if srv.CountRequests("POST", "/users/login") != 1 {
		t.Fatalf("ログインのリクエスト数 = %d, want 1", srv.CountRequests("POST", "/users/login"))
	}
	if srv.CountRequests("PUT", "/users/profile") != 0 {
		t.Error("変更がない場合はリクエストを送信すべきではありません")
	}
}

func TestRun_AnnouncementsAndBanners(t *testing.T) {
	srv := setTestEnv(t)
	login(t)

	mustRun(t, "announcements")

	out := mustRun(t, "banners")
	assertContains(t, out, "Volunteers wanted", srv.URL+"/uploads/banners/volunteer.png", "link:  https://example.com/fair")
	if strings.Index(out, "Volunteers wanted") > strings.Index(out, "Summer fair") {
		t.Errorf("バナーはorder順であるべきです:\n%s", out)
	}
}
