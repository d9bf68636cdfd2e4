package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

func (s *Server) userFor(r *http.Request) (int64, bool) {
	token := bearerToken(r.Header.Get("Authorization"))
	s.mu.Lock()
	defer s.mu.Unlock()
	id, found := s.tokenUser[token]
	return id, found
}

func (s *Server) me(r *http.Request) int64 {
	id, _ := s.userFor(r)
	return id
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// flexibleID は数値・文字列どちらの表記のIDも受け付ける。
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*f = flexibleID(n)
	return nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == body.Email && u.Password == body.Password {
			token := Token
			if u.ID != MeID {
				token = fmt.Sprintf("token-%d", u.ID)
				s.tokenUser[token] = u.ID
			}
			ok(w, map[string]any{"token": token, "user": s.userJSON(u)})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "message": "invalid email or password"})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(w, s.userJSON(s.users[me]))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Nickname *string `json:"nickname"`
		Bio      *string `json:"bio"`
		Avatar   *string `json:"avatar"`
		Password *string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if body.Password != nil && len(*body.Password) < 6 {
		badRequest(w, "password must be at least 6 characters")
		return
	}

	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[me]
	if body.Nickname != nil {
		u.Nickname = *body.Nickname
	}
	if body.Bio != nil {
		u.Bio = *body.Bio
	}
	if body.Avatar != nil {
		u.Avatar = *body.Avatar
	}
	if body.Password != nil {
		u.Password = *body.Password
	}
	ok(w, s.userJSON(u))
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, valid := idParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	u, found := s.users[id]
	if !valid || !found {
		notFound(w)
		return
	}
	ok(w, s.userJSON(u))
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(w, "failed to read file")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("/uploads/%d-%s", s.newID(), filepath.Base(header.Filename))
	s.uploads[path] = data
	ok(w, map[string]any{"fileUrl": path, "size": len(data)})
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	data, found := s.uploads["/uploads/"+chi.URLParam(r, "name")]
	s.mu.Unlock()
	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	var author int64
	if v := r.URL.Query().Get("user_id"); v != "" {
		author, _ = strconv.ParseInt(v, 10, 64)
	}

	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*post
	for _, p := range s.posts {
		if author == 0 || p.AuthorID == author {
			matched = append(matched, p)
		}
	}

	pages := (len(matched) + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	list := make([]map[string]any, 0, PageSize)
	for i := (page - 1) * PageSize; i < len(matched) && i < page*PageSize; i++ {
		list = append(list, s.postJSON(matched[i], me))
	}

	ok(w, map[string]any{
		"list": list,
		"pagination": map[string]any{
			"page":  page,
			"pages": pages,
			"limit": PageSize,
			"total": len(matched),
		},
	})
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r, "id")
	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.ID == id {
			ok(w, s.postJSON(p, me))
			return
		}
	}
	notFound(w)
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Category string `json:"category"`
		Images   []any  `json:"images"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		badRequest(w, "content is required")
		return
	}

	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &post{
		ID:        s.newID(),
		AuthorID:  me,
		Title:     body.Title,
		Content:   body.Content,
		Category:  body.Category,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Images:    body.Images,
	}
	s.posts = append([]*post{p}, s.posts...)
	writeJSON(w, http.StatusCreated, map[string]any{"code": 201, "data": s.postJSON(p, me)})
}

func (s *Server) listComments(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]map[string]any, 0)
	for _, c := range s.comments[id] {
		list = append(list, s.commentJSON(c))
	}
	ok(w, list)
}

func (s *Server) createComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PostID  flexibleID `json:"postId"`
		Content string     `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		badRequest(w, "content is required")
		return
	}

	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	postID := int64(body.PostID)
	var target *post
	for _, p := range s.posts {
		if p.ID == postID {
			target = p
		}
	}
	if target == nil {
		notFound(w)
		return
	}
	c := comment{ID: s.newID(), UserID: me, Content: body.Content, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
	s.comments[postID] = append(s.comments[postID], c)
	target.CommentsCount++
	writeJSON(w, http.StatusCreated, map[string]any{"code": 201, "data": s.commentJSON(c)})
}

func (s *Server) like(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TargetID   flexibleID `json:"target_id"`
		TargetType string     `json:"target_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TargetType != "post" {
		badRequest(w, "target_id and target_type=post are required")
		return
	}

	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := int64(body.TargetID)
	if s.likes[id] == nil {
		s.likes[id] = make(map[int64]bool)
	}
	if s.likes[id][me] {
		badRequest(w, "already liked")
		return
	}
	s.likes[id][me] = true
	ok(w, map[string]any{"likes_count": len(s.likes[id])})
}

func (s *Server) unlike(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.ParseInt(q.Get("target_id"), 10, 64)
	if err != nil || q.Get("target_type") != "post" {
		badRequest(w, "target_id and target_type=post are required")
		return
	}

	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.likes[id], me)
	ok(w, map[string]any{"likes_count": len(s.likes[id])})
}

// conversations は相手ごとの最新メッセージを新しい順に裸の配列で返す。
func (s *Server) conversations(w http.ResponseWriter, r *http.Request) {
	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[int64]message)
	for _, m := range s.messages {
		var peer int64
		switch me {
		case m.SenderID:
			peer = m.ReceiverID
		case m.ReceiverID:
			peer = m.SenderID
		default:
			continue
		}
		if prev, found := latest[peer]; !found || m.ID > prev.ID {
			latest[peer] = m
		}
	}

	list := make([]message, 0, len(latest))
	for _, m := range latest {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })

	out := make([]map[string]any, 0, len(list))
	for _, m := range list {
		out = append(out, s.messageJSON(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// chat は相手とのメッセージを古い順に返し、自分宛ての未読を既読にする。
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	peer, _ := idParam(r, "userId")
	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]map[string]any, 0)
	for i, m := range s.messages {
		if (m.SenderID == me && m.ReceiverID == peer) || (m.SenderID == peer && m.ReceiverID == me) {
			out = append(out, s.messageJSON(m))
			if m.ReceiverID == me {
				s.messages[i].Read = true
			}
		}
	}
	ok(w, out)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReceiverID flexibleID `json:"receiverId"`
		Content    string     `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		badRequest(w, "content is required")
		return
	}

	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.users[int64(body.ReceiverID)]; !found {
		notFound(w)
		return
	}
	m := s.addMessageLocked(me, int64(body.ReceiverID), body.Content)
	writeJSON(w, http.StatusCreated, map[string]any{"code": 201, "data": s.messageJSON(m)})
}

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FollowingID flexibleID `json:"following_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "following_id is required")
		return
	}

	me := s.me(r)
	target := int64(body.FollowingID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if target == me {
		badRequest(w, "cannot follow yourself")
		return
	}
	if _, found := s.users[target]; !found {
		notFound(w)
		return
	}
	if s.follows[me] == nil {
		s.follows[me] = make(map[int64]bool)
	}
	s.follows[me][target] = true
	ok(w, map[string]any{"following_id": target})
}

func (s *Server) unfollow(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r, "id")
	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.follows[me], id)
	ok(w, nil)
}

func (s *Server) checkFollow(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r, "id")
	me := s.me(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	ok(w, map[string]any{"is_following": s.follows[me][id]})
}

func (s *Server) followers(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for follower, targets := range s.follows {
		if targets[id] {
			ids = append(ids, follower)
		}
	}
	s.writeUserList(w, ids)
}

func (s *Server) following(w http.ResponseWriter, r *http.Request) {
	id, _ := idParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for target := range s.follows[id] {
		ids = append(ids, target)
	}
	s.writeUserList(w, ids)
}

func (s *Server) writeUserList(w http.ResponseWriter, ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	list := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.userJSON(s.users[id]))
	}
	ok(w, map[string]any{"list": list, "total": len(list)})
}

func (s *Server) announcements(w http.ResponseWriter, r *http.Request) {
	ok(w, []map[string]any{
		{"id": 1, "title": "Elevator maintenance", "content": "Building 2 elevator is out of service on Monday.", "isActive": true, "createdAt": ago(24 * time.Hour)},
		{"id": 2, "title": "Welcome", "content": "Welcome to the community board.", "is_active": true, "created_at": ago(240 * time.Hour)},
	})
}

func (s *Server) banners(w http.ResponseWriter, r *http.Request) {
	ok(w, []map[string]any{
		{"id": 1, "title": "Summer fair", "imageUrl": "/uploads/banners/fair.png", "linkUrl": "https://example.com/fair", "order": 2, "isActive": true},
		{"id": 2, "title": "Volunteers wanted", "image_url": "uploads/banners/volunteer.png", "link_url": "", "order": 1, "isActive": true},
		{"id": 3, "title": "Recycling day", "imageUrl": "https://cdn.example.com/recycle.png", "order": 2, "isActive": true},
	})
}
