package view

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/shequ/internal/metrics"
	"github.com/hitoshi/shequ/internal/model"
	"github.com/hitoshi/shequ/internal/worker/poll"
)

// Conversation は会話一覧の1行。
type Conversation struct {
	Peer   model.Participant
	Last   model.Message
	Unread bool
}

// Inbox は会話一覧の状態を管理する。
type Inbox struct {
	source ConversationSource
	me     int64
	act    Activation

	mu            sync.Mutex
	conversations []Conversation
}

// NewInbox はInboxの新しいインスタンスを生成する。meはログインユーザーのID。
func NewInbox(source ConversationSource, me int64) *Inbox {
	return &Inbox{
		source:        source,
		me:            me,
		conversations: []Conversation{},
	}
}

// Poller は会話一覧を定期取得するPollerを生成する。
func (i *Inbox) Poller(interval time.Duration, logger *slog.Logger, collector metrics.MetricsCollector) *poll.Poller[[]model.Message] {
	return poll.New("inbox", interval, i.source.GetConversations, logger, collector)
}

// Refresh は会話一覧を1回取得する。
func (i *Inbox) Refresh(ctx context.Context) error {
	gen := i.act.Snapshot()
	msgs, err := i.source.GetConversations(ctx)
	if err != nil {
		return err
	}
	if i.act.Current(gen) {
		i.set(msgs)
	}
	return nil
}

// Watch はupdatesから届く会話一覧を反映し、反映のたびにonChangeを呼ぶ。
// ctxがキャンセルされるかCloseされるまで戻らない。
func (i *Inbox) Watch(ctx context.Context, updates poll.Updates[[]model.Message], onChange func([]Conversation)) {
	gen := i.act.Snapshot()
	updates.Run(ctx, func(msgs []model.Message) {
		if !i.act.Current(gen) {
			return
		}
		i.set(msgs)
		if onChange != nil {
			onChange(i.Conversations())
		}
	})
}

func (i *Inbox) set(msgs []model.Message) {
	convs := make([]Conversation, 0, len(msgs))
	for _, m := range msgs {
		convs = append(convs, Conversation{
			Peer:   m.OtherParty(i.me),
			Last:   m,
			Unread: m.Unread(i.me),
		})
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.conversations = convs
}

// Conversations は会話一覧のコピーを返す。
func (i *Inbox) Conversations() []Conversation {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Conversation{}, i.conversations...)
}

// UnreadCount は未読バッジが付く会話の数を返す。
func (i *Inbox) UnreadCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := 0
	for _, c := range i.conversations {
		if c.Unread {
			n++
		}
	}
	return n
}

// Close は画面を離れたことを記録し、以降に届いた結果を破棄させる。
func (i *Inbox) Close() {
	i.act.End()
}

// Chat は相手とのメッセージ履歴を管理する。
type Chat struct {
	source ChatSource
	me     int64
	peer   int64
	act    Activation

	mu       sync.Mutex
	messages []model.Message
}

// NewChat はChatの新しいインスタンスを生成する。
func NewChat(source ChatSource, me, peer int64) *Chat {
	return &Chat{
		source:   source,
		me:       me,
		peer:     peer,
		messages: []model.Message{},
	}
}

// Peer は会話相手のIDを返す。
func (c *Chat) Peer() int64 {
	return c.peer
}

// Poller はメッセージ履歴を定期取得するPollerを生成する。
func (c *Chat) Poller(interval time.Duration, logger *slog.Logger, collector metrics.MetricsCollector) *poll.Poller[[]model.Message] {
	return poll.New("chat", interval, func(ctx context.Context) ([]model.Message, error) {
		return c.source.GetChatMessages(ctx, c.peer)
	}, logger, collector)
}

// Refresh はメッセージ履歴を1回取得する。
func (c *Chat) Refresh(ctx context.Context) error {
	gen := c.act.Snapshot()
	msgs, err := c.source.GetChatMessages(ctx, c.peer)
	if err != nil {
		return err
	}
	if c.act.Current(gen) {
		c.set(msgs)
	}
	return nil
}

// Watch はupdatesから届くメッセージ履歴を反映し、反映のたびにonChangeを呼ぶ。
func (c *Chat) Watch(ctx context.Context, updates poll.Updates[[]model.Message], onChange func([]model.Message)) {
	gen := c.act.Snapshot()
	updates.Run(ctx, func(msgs []model.Message) {
		if !c.act.Current(gen) {
			return
		}
		c.set(msgs)
		if onChange != nil {
			onChange(c.Messages())
		}
	})
}

// Send はメッセージを送信し、サーバーが返したメッセージを履歴の末尾に追加する。
func (c *Chat) Send(ctx context.Context, content string) (*model.Message, error) {
	gen := c.act.Snapshot()
	msg, err := c.source.SendMessage(ctx, c.peer, content)
	if err != nil {
		return nil, err
	}
	if c.act.Current(gen) {
		c.mu.Lock()
		c.messages = append(c.messages, *msg)
		c.mu.Unlock()
	}
	return msg, nil
}

func (c *Chat) set(msgs []model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append([]model.Message{}, msgs...)
}

// Messages はメッセージ履歴のコピーを返す。
func (c *Chat) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Message{}, c.messages...)
}

// Close は画面を離れたことを記録し、以降に届いた結果を破棄させる。
func (c *Chat) Close() {
	c.act.End()
}
