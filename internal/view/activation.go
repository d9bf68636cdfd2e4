package view

import "sync/atomic"

// Generation はビューの活性化世代。
type Generation uint64

// Activation はビューの活性化世代を管理する。
// 非同期の取得結果は、開始時の世代が現在の世代と一致する場合にだけ反映する。
// 画面を離れた後や新しい取得が始まった後に届いた古い結果を破棄するために使う。
type Activation struct {
	gen atomic.Uint64
}

// Begin は新しい世代を開始し、その世代を返す。
// それ以前の世代の結果はすべて無効になる。
func (a *Activation) Begin() Generation {
	return Generation(a.gen.Add(1))
}

// Current は世代gが現在も有効な場合にtrueを返す。
func (a *Activation) Current(g Generation) bool {
	return Generation(a.gen.Load()) == g
}

// Snapshot は世代を進めずに現在の世代を返す。
func (a *Activation) Snapshot() Generation {
	return Generation(a.gen.Load())
}

// End は現在の世代を無効にする。画面を離れるときに呼ぶ。
func (a *Activation) End() {
	a.gen.Add(1)
}
