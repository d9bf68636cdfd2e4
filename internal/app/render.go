package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/hitoshi/shequ/internal/mapper"
	"github.com/hitoshi/shequ/internal/model"
	"github.com/hitoshi/shequ/internal/view"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: shequ <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment: SHEQU_SERVER_ORIGIN is required.")
}

// text はサーバー由来の文字列を端末に安全な平文にする。
func (a *App) text(s string) string {
	return a.sanitizer.Sanitize(s)
}

// ago はタイムスタンプを相対表記にする。解釈できない場合はそのまま返す。
func (a *App) ago(ts string) string {
	if s := mapper.TimeAgo(a.now(), ts); s != "" {
		return s
	}
	return ts
}

// indent は複数行の本文を2文字下げで揃える。
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n  ")
}

func (a *App) renderPostSummary(p model.Post) {
	fmt.Fprintf(a.out, "#%d [%s] %s · %s\n", p.ID, p.Category, a.text(p.Author.DisplayName()), a.ago(p.CreatedAt))
	if p.Title != "" {
		fmt.Fprintf(a.out, "  %s\n", a.text(p.Title))
	}
	fmt.Fprintf(a.out, "  %s\n", indent(a.text(p.Content)))

	liked := ""
	if p.IsLiked {
		liked = " (liked)"
	}
	fmt.Fprintf(a.out, "  likes %d%s · comments %d · images %d\n", p.LikesCount, liked, p.CommentsCount, len(p.Images))
}

func (a *App) renderPostDetail(p model.Post, comments []model.Comment) {
	a.renderPostSummary(p)
	for _, img := range p.Images {
		fmt.Fprintf(a.out, "  image: %s\n", img)
	}

	fmt.Fprintf(a.out, "\nComments (%d)\n", len(comments))
	for _, c := range comments {
		fmt.Fprintf(a.out, "  %s · %s\n    %s\n", a.text(c.Nickname), a.ago(c.CreatedAt), indent(a.text(c.Content)))
	}
}

// renderUser はプロフィールを表示する。followingがnilの場合はフォロー状態を表示しない。
func (a *App) renderUser(u model.User, following *bool) {
	fmt.Fprintf(a.out, "%s (@%s) #%d\n", a.text(u.DisplayName()), u.Username, u.ID)
	if u.Bio != "" {
		fmt.Fprintf(a.out, "  %s\n", indent(a.text(u.Bio)))
	}
	if u.Avatar != "" {
		fmt.Fprintf(a.out, "  avatar: %s\n", u.Avatar)
	}
	fmt.Fprintf(a.out, "  posts %d · following %d · followers %d\n", u.PostsCount, u.FollowingCount, u.FollowersCount)
	if following != nil {
		if *following {
			fmt.Fprintln(a.out, "  you follow this user")
		} else {
			fmt.Fprintln(a.out, "  you do not follow this user")
		}
	}
}

func (a *App) renderInbox(convs []view.Conversation, unread int) {
	fmt.Fprintf(a.out, "Conversations (%d, %d unread)\n", len(convs), unread)
	for _, c := range convs {
		mark := " "
		if c.Unread {
			mark = "*"
		}
		fmt.Fprintf(a.out, "%s #%d %s: %s  (%s)\n", mark, c.Peer.ID, a.text(c.Peer.DisplayName()), a.text(c.Last.Content), a.ago(c.Last.CreatedAt))
	}
}

func (a *App) renderMessage(m model.Message, me int64) {
	who := a.text(m.Sender.DisplayName())
	if m.FromMe(me) {
		who = "me"
	}
	fmt.Fprintf(a.out, "[%s] %s: %s\n", a.ago(m.CreatedAt), who, a.text(m.Content))
}
