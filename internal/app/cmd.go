package app

// Command はCLIのサブコマンドを表す。
type Command string

const (
	CommandHelp          Command = "help"
	CommandLogin         Command = "login"
	CommandLogout        Command = "logout"
	CommandWhoami        Command = "whoami"
	CommandFeed          Command = "feed"
	CommandPost          Command = "post"
	CommandCompose       Command = "compose"
	CommandComment       Command = "comment"
	CommandLike          Command = "like"
	CommandUnlike        Command = "unlike"
	CommandUser          Command = "user"
	CommandFollow        Command = "follow"
	CommandUnfollow      Command = "unfollow"
	CommandFollowers     Command = "followers"
	CommandFollowing     Command = "following"
	CommandInbox         Command = "inbox"
	CommandChat          Command = "chat"
	CommandSend          Command = "send"
	CommandUpload        Command = "upload"
	CommandProfile       Command = "profile"
	CommandAnnouncements Command = "announcements"
	CommandBanners       Command = "banners"
	CommandMedia         Command = "media"

	// CommandUnknown はサポート外のサブコマンドを示す。
	CommandUnknown Command = "unknown"
)

// commands は使い方の表示順を兼ねる。
var commands = []struct {
	cmd   Command
	usage string
}{
	{CommandLogin, "login <email> <password>"},
	{CommandLogout, "logout"},
	{CommandWhoami, "whoami"},
	{CommandFeed, "feed [--user id] [--pages n]"},
	{CommandPost, "post <id>"},
	{CommandCompose, "compose <category> <content> [files...]"},
	{CommandComment, "comment <post-id> <text>"},
	{CommandLike, "like <post-id>"},
	{CommandUnlike, "unlike <post-id>"},
	{CommandUser, "user <id>"},
	{CommandFollow, "follow <id>"},
	{CommandUnfollow, "unfollow <id>"},
	{CommandFollowers, "followers <id>"},
	{CommandFollowing, "following <id>"},
	{CommandInbox, "inbox [--once]"},
	{CommandChat, "chat [--once] <user-id>"},
	{CommandSend, "send <user-id> <text>"},
	{CommandUpload, "upload <file>"},
	{CommandProfile, "profile [--nickname x] [--bio y] [--avatar file] [--password p]"},
	{CommandAnnouncements, "announcements"},
	{CommandBanners, "banners"},
	{CommandMedia, "media <url> <out-file>"},
	{CommandHelp, "help"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空の場合はCommandHelp、サポート外の場合はCommandUnknownを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandHelp
	}

	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	switch args[0] {
	case "-h", "--help":
		return CommandHelp
	}
	return CommandUnknown
}
