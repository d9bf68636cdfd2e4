package model

// Participant はメッセージの送信者・受信者を表す。
type Participant struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
	Avatar   string `json:"avatar"`
}

// DisplayName は表示名を返す。
func (p Participant) DisplayName() string {
	if p.Nickname != "" {
		return p.Nickname
	}
	return p.Username
}

// Message はダイレクトメッセージを表す。
// 会話一覧では各会話の最新メッセージとして使われる。
type Message struct {
	ID         int64       `json:"id"`
	SenderID   int64       `json:"senderId"`
	ReceiverID int64       `json:"receiverId"`
	Content    string      `json:"content"`
	CreatedAt  string      `json:"createdAt"`
	UpdatedAt  string      `json:"updatedAt,omitempty"`
	Read       bool        `json:"read"`
	Sender     Participant `json:"sender"`
	Receiver   Participant `json:"receiver"`
}

// OtherParty は自分(me)から見た相手側の参加者を返す。
// サーバーは相手を明示しないため、送信者IDとの比較で導出する。
func (m Message) OtherParty(me int64) Participant {
	if m.SenderID == me {
		return m.Receiver
	}
	return m.Sender
}

// Unread は自分宛ての未読メッセージの場合にtrueを返す。
func (m Message) Unread(me int64) bool {
	return !m.Read && m.ReceiverID == me
}

// FromMe は自分が送信したメッセージの場合にtrueを返す。
func (m Message) FromMe(me int64) bool {
	return m.SenderID == me
}
