package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hitoshi/shequ/internal/model"
	"github.com/hitoshi/shequ/internal/view"
)

// Execute はサブコマンドを実行する。argsはサブコマンド名を除いた引数。
func (a *App) Execute(ctx context.Context, cmd Command, args []string) error {
	switch cmd {
	case CommandHelp:
		printUsage(a.out)
		return nil
	case CommandLogin:
		return a.login(ctx, args)
	case CommandLogout:
		return a.logout(ctx)
	case CommandWhoami:
		return a.whoami(ctx)
	case CommandFeed:
		return a.feed(ctx, args)
	case CommandPost:
		return a.post(ctx, args)
	case CommandCompose:
		return a.compose(ctx, args)
	case CommandComment:
		return a.comment(ctx, args)
	case CommandLike:
		return a.like(ctx, args, true)
	case CommandUnlike:
		return a.like(ctx, args, false)
	case CommandUser:
		return a.user(ctx, args)
	case CommandFollow:
		return a.follow(ctx, args, true)
	case CommandUnfollow:
		return a.follow(ctx, args, false)
	case CommandFollowers:
		return a.userList(ctx, args, "Followers", a.service.GetFollowers)
	case CommandFollowing:
		return a.userList(ctx, args, "Following", a.service.GetFollowing)
	case CommandInbox:
		return a.inbox(ctx, args)
	case CommandChat:
		return a.chat(ctx, args)
	case CommandSend:
		return a.send(ctx, args)
	case CommandUpload:
		return a.upload(ctx, args)
	case CommandProfile:
		return a.profile(ctx, args)
	case CommandAnnouncements:
		return a.announcements(ctx)
	case CommandBanners:
		return a.banners(ctx)
	case CommandMedia:
		return a.mediaGet(ctx, args)
	default:
		return fmt.Errorf("unknown command: %q", cmd)
	}
}

func (a *App) login(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "login <email> <password>"); err != nil {
		return err
	}
	u, err := a.service.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (@%s)\n", a.text(u.DisplayName()), u.Username)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.service.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

// me はログインユーザーを返す。未ログインの場合はmodel.ErrNotLoggedIn。
func (a *App) me(ctx context.Context) (*model.User, error) {
	u, err := a.service.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, model.ErrNotLoggedIn
	}
	return u, nil
}

func (a *App) whoami(ctx context.Context) error {
	u, err := a.me(ctx)
	if err != nil {
		return err
	}
	a.renderUser(*u, nil)
	return nil
}

func (a *App) feed(ctx context.Context, args []string) error {
	fs := newFlagSet("feed")
	userID := fs.Int64("user", 0, "author id")
	pages := fs.Int("pages", 1, "number of pages to load")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	f := view.NewFeed(a.service, *userID)
	defer f.Close()

	if err := f.Refresh(ctx); err != nil {
		return err
	}
	for loaded := 1; loaded < *pages && f.HasMore(); loaded++ {
		if err := f.LoadMore(ctx); err != nil {
			return err
		}
	}

	posts := f.Posts()
	if len(posts) == 0 {
		fmt.Fprintln(a.out, "No posts yet.")
		return nil
	}
	for i, p := range posts {
		if i > 0 {
			fmt.Fprintln(a.out)
		}
		a.renderPostSummary(p)
	}
	if f.HasMore() {
		fmt.Fprintf(a.out, "\n-- more posts: run with --pages %d --\n", f.NextPage())
	}
	return nil
}

func (a *App) post(ctx context.Context, args []string) error {
	id, err := idArg(args, "post <id>")
	if err != nil {
		return err
	}

	d := view.NewPostDetail(a.service, id)
	defer d.Close()
	if err := d.Load(ctx); err != nil {
		return err
	}
	a.renderPostDetail(*d.Post(), d.Comments())
	return nil
}

func (a *App) compose(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "compose <category> <content> [files...]"); err != nil {
		return err
	}

	c := view.NewComposer(a.service)
	c.SetCategory(model.ParseCategory(args[0]))
	for _, path := range args[2:] {
		if _, err := a.attachFile(ctx, c.Attach, path); err != nil {
			return err
		}
	}

	p, err := c.Publish(ctx, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Published post #%d (%s, %d images)\n", p.ID, p.Category, len(p.Images))
	return nil
}

func (a *App) comment(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "comment <post-id> <text>"); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	d := view.NewPostDetail(a.service, id)
	defer d.Close()
	if err := d.AddComment(ctx, strings.Join(args[1:], " ")); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Comment added to post #%d (%d comments)\n", id, len(d.Comments()))
	return nil
}

func (a *App) like(ctx context.Context, args []string, want bool) error {
	id, err := idArg(args, "like <post-id>")
	if err != nil {
		return err
	}
	p, err := a.service.GetPost(ctx, id)
	if err != nil {
		return err
	}

	t := view.NewLikeToggle(a.service, *p)
	if p.IsLiked != want {
		if err := t.Toggle(ctx); err != nil {
			return err
		}
	}
	liked, count := t.State()
	state := "not liked"
	if liked {
		state = "liked"
	}
	fmt.Fprintf(a.out, "Post #%d: %s (%d likes)\n", id, state, count)
	return nil
}

func (a *App) user(ctx context.Context, args []string) error {
	id, err := idArg(args, "user <id>")
	if err != nil {
		return err
	}
	u, err := a.service.GetUser(ctx, id)
	if err != nil {
		return err
	}
	following := a.service.CheckFollowStatus(ctx, id)
	a.renderUser(*u, &following)
	return nil
}

func (a *App) follow(ctx context.Context, args []string, want bool) error {
	id, err := idArg(args, "follow <id>")
	if err != nil {
		return err
	}
	u, err := a.service.GetUser(ctx, id)
	if err != nil {
		return err
	}

	t := view.NewFollowToggle(a.service, *u, false)
	t.Refresh(ctx)
	if following, _ := t.State(); following != want {
		if err := t.Toggle(ctx); err != nil {
			return err
		}
	}
	following, followers := t.State()
	state := "not following"
	if following {
		state = "following"
	}
	fmt.Fprintf(a.out, "%s: %s (%d followers)\n", a.text(u.DisplayName()), state, followers)
	return nil
}

func (a *App) userList(ctx context.Context, args []string, title string, fetch func(context.Context, int64) ([]model.User, error)) error {
	id, err := idArg(args, strings.ToLower(title)+" <id>")
	if err != nil {
		return err
	}
	users, err := fetch(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%d)\n", title, len(users))
	for _, u := range users {
		fmt.Fprintf(a.out, "  #%d %s (@%s)\n", u.ID, a.text(u.DisplayName()), u.Username)
	}
	return nil
}

func (a *App) inbox(ctx context.Context, args []string) error {
	fs := newFlagSet("inbox")
	once := fs.Bool("once", false, "fetch once and exit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	me, err := a.me(ctx)
	if err != nil {
		return err
	}

	in := view.NewInbox(a.service, me.ID)
	defer in.Close()

	if *once {
		if err := in.Refresh(ctx); err != nil {
			return err
		}
		a.renderInbox(in.Conversations(), in.UnreadCount())
		return nil
	}

	stop := a.serveMetrics()
	defer stop()

	poller := in.Poller(a.cfg.ConversationPollInterval, a.logger, a.collector)
	in.Watch(ctx, poller, func(convs []view.Conversation) {
		a.renderInbox(convs, in.UnreadCount())
	})
	return nil
}

func (a *App) chat(ctx context.Context, args []string) error {
	fs := newFlagSet("chat")
	once := fs.Bool("once", false, "fetch once and exit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	peer, err := idArg(fs.Args(), "chat [--once] <user-id>")
	if err != nil {
		return err
	}
	me, err := a.me(ctx)
	if err != nil {
		return err
	}

	c := view.NewChat(a.service, me.ID, peer)
	defer c.Close()

	var lastID int64
	show := func(msgs []model.Message) {
		for _, m := range msgs {
			if m.ID <= lastID {
				continue
			}
			a.renderMessage(m, me.ID)
			lastID = m.ID
		}
	}

	if *once {
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		show(c.Messages())
		return nil
	}

	stop := a.serveMetrics()
	defer stop()

	c.Watch(ctx, c.Poller(a.cfg.ChatPollInterval, a.logger, a.collector), show)
	return nil
}

func (a *App) send(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "send <user-id> <text>"); err != nil {
		return err
	}
	peer, err := parseID(args[0])
	if err != nil {
		return err
	}
	m, err := a.service.SendMessage(ctx, peer, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Sent message #%d to user #%d\n", m.ID, peer)
	return nil
}

func (a *App) upload(ctx context.Context, args []string) error {
	if err := requireArgs(args, 1, "upload <file>"); err != nil {
		return err
	}
	u, err := a.attachFile(ctx, a.service.UploadFile, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.service.Mapper().URL(u))
	return nil
}

func (a *App) profile(ctx context.Context, args []string) error {
	fs := newFlagSet("profile")
	nickname := fs.String("nickname", "", "new nickname")
	bio := fs.String("bio", "", "new bio")
	avatar := fs.String("avatar", "", "avatar image file")
	password := fs.String("password", "", "new password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var update model.ProfileUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "nickname":
			update.Nickname = nickname
		case "bio":
			update.Bio = bio
		case "password":
			update.Password = password
		}
	})

	var att *view.Attachment
	if *avatar != "" {
		f, err := os.Open(*avatar)
		if err != nil {
			return model.NewValidationError("avatar", err.Error())
		}
		defer f.Close()
		att = &view.Attachment{Name: filepath.Base(*avatar), Reader: f}
	}

	u, err := view.NewProfileEditor(a.service).Save(ctx, update, att)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Profile updated.")
	a.renderUser(*u, nil)
	return nil
}

func (a *App) announcements(ctx context.Context) error {
	list, err := a.service.GetAnnouncements(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "No announcements.")
		return nil
	}
	for _, an := range list {
		fmt.Fprintf(a.out, "* %s  (%s)\n", a.text(an.Title), a.ago(an.CreatedAt))
		if an.Content != "" {
			fmt.Fprintf(a.out, "  %s\n", indent(a.text(an.Content)))
		}
	}
	return nil
}

func (a *App) banners(ctx context.Context) error {
	list, err := a.service.GetBanners(ctx)
	if err != nil {
		return err
	}
	for _, b := range list {
		fmt.Fprintf(a.out, "%d. %s\n   image: %s\n", b.Order, a.text(b.Title), b.ImageURL)
		if b.LinkURL != "" {
			fmt.Fprintf(a.out, "   link:  %s\n", b.LinkURL)
		}
	}
	return nil
}

func (a *App) mediaGet(ctx context.Context, args []string) error {
	if err := requireArgs(args, 2, "media <url> <out-file>"); err != nil {
		return err
	}
	src := a.service.Mapper().URL(args[0])

	f, err := os.Create(args[1])
	if err != nil {
		return fmt.Errorf("出力ファイルの作成に失敗しました: %w", err)
	}
	n, err := a.media.Download(ctx, src, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(args[1])
		return err
	}
	fmt.Fprintf(a.out, "Saved %d bytes to %s\n", n, args[1])
	return nil
}

// attachFile はpathのファイルをuploadに渡し、返されたURLを返す。
func (a *App) attachFile(ctx context.Context, upload func(context.Context, string, io.Reader) (string, error), path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", model.NewValidationError("file", err.Error())
	}
	defer f.Close()
	return upload(ctx, filepath.Base(path), f)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return model.NewValidationError(fs.Name(), err.Error())
	}
	return nil
}

func requireArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return model.NewValidationError("usage", "shequ "+usage)
	}
	return nil
}

func idArg(args []string, usage string) (int64, error) {
	if err := requireArgs(args, 1, usage); err != nil {
		return 0, err
	}
	return parseID(args[0])
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", fmt.Sprintf("%q is not a valid id", s))
	}
	return id, nil
}
