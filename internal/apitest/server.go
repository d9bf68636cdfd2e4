// Package apitest はテスト用にコミュニティサービスのREST APIをメモリ上で再現する。
// 実サーバーと同様にエンドポイントごとにレスポンスの包み方が異なる。
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
)

// テスト用の固定値。
const (
	Email    = "alice@example.com"
	Password = "secret"
	Token    = "test-token"
	// MeID はログインユーザー（alice）のID。
	MeID int64 = 1
	// PeerID は会話相手（bob）のID。
	PeerID int64 = 2
	// PageSize は投稿一覧の1ページあたりの件数。
	PageSize = 2
	// APIPrefix はAPIのパスプレフィックス。
	APIPrefix = "/api/v1"
)

// Request は受信したリクエストの記録。
type Request struct {
	Method        string
	Path          string
	RawQuery      string
	Body          []byte
	Authorization string
	ContentType   string
}

type failure struct {
	status  int
	message string
}

// Server はメモリ上のコミュニティサービス。
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[int64]*user
	posts     []*post
	comments  map[int64][]comment
	likes     map[int64]map[int64]bool
	follows   map[int64]map[int64]bool
	messages  []message
	nextID    int64
	failures  map[string]failure
	requests  []Request
	uploads   map[string][]byte
	tokenUser map[string]int64
}

// NewServer はシードデータ入りのServerを起動する。呼び出し元がCloseすること。
func NewServer() *Server {
	s := &Server{
		failures:  make(map[string]failure),
		uploads:   make(map[string][]byte),
		tokenUser: map[string]int64{Token: MeID},
	}
	s.seed()
	s.Server = httptest.NewServer(s.routes())
	return s
}

// BaseURL はAPIの基底URLを返す。
func (s *Server) BaseURL() string {
	return s.URL + APIPrefix
}

// Fail は指定したメソッドとパス（APIプレフィックスを含まない）への以降のリクエストを失敗させる。
func (s *Server) Fail(method, path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+APIPrefix+path] = failure{status: status, message: message}
}

// Recover はFailで設定した失敗を解除する。
func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+APIPrefix+path)
}

// Requests は受信したリクエストの記録を返す。
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest は指定したメソッドとパス（APIプレフィックスを含まない）への最後のリクエストを返す。
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		r := s.requests[i]
		if r.Method == method && r.Path == APIPrefix+path {
			return r, true
		}
	}
	return Request{}, false
}

// CountRequests は指定したメソッドとパスへのリクエスト数を返す。
func (s *Server) CountRequests(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.Path == APIPrefix+path {
			n++
		}
	}
	return n
}

// AddMessage はメッセージを追加する。ポーリングのテストで使う。
func (s *Server) AddMessage(from, to int64, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addMessageLocked(from, to, content)
}

// Uploaded はアップロードされたファイルの内容を返す。
func (s *Server) Uploaded(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[path]
	return data, ok
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Get("/uploads/{name}", s.serveUpload)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Post("/users/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Get("/users/profile", s.profile)
			r.Put("/users/profile", s.updateProfile)
			r.Get("/users/{id}", s.getUser)

			r.Post("/uploads/single", s.upload)

			r.Get("/posts", s.listPosts)
			r.Post("/posts", s.createPost)
			r.Get("/posts/{id}", s.getPost)

			r.Get("/comments/post/{id}", s.listComments)
			r.Post("/comments", s.createComment)

			r.Post("/likes", s.like)
			r.Delete("/likes", s.unlike)

			r.Get("/messages/list", s.conversations)
			r.Get("/messages/chat/{userId}", s.chat)
			r.Post("/messages", s.sendMessage)

			r.Post("/follows", s.follow)
			r.Delete("/follows/{id}", s.unfollow)
			r.Get("/follows/check/{id}", s.checkFollow)
			r.Get("/follows/followers/{id}", s.followers)
			r.Get("/follows/following/{id}", s.following)

			r.Get("/announcements", s.announcements)
			r.Get("/banners", s.banners)
		})
	})

	return r
}

// record はリクエストを記録し、ボディを読み直せるように差し戻す。
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			RawQuery:      r.URL.RawQuery,
			Body:          body,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeJSON(w, f.status, map[string]any{"message": f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireToken はBearerトークンを検証する。
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.userFor(r); !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid or expired token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"code": 200, "data": data, "message": "success"})
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"code": 400, "message": message})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"code": 404, "error": "not found"})
}
