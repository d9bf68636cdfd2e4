package mapper

import "github.com/tidwall/gjson"

// ListOf はレスポンスから配列を取り出す。
// レスポンス自体が配列ならそれを返し、そうでなければpathsを順に探して最初の配列を返す。
// 該当がなければ空のスライスを返す。
func ListOf(res gjson.Result, paths ...string) []gjson.Result {
	if res.IsArray() {
		return res.Array()
	}
	for _, p := range paths {
		if v := res.Get(p); v.IsArray() {
			return v.Array()
		}
	}
	return []gjson.Result{}
}

// エンドポイント系統ごとの取り出し規則。
var (
	// PagedList は投稿一覧・フォロー一覧（data.list）。
	PagedList = []string{"data.list"}
	// DataList はお知らせ・バナー・コメント・メッセージ（data）。
	DataList = []string{"data"}
)

// Data はエンベロープのdataを返す。dataがなければレスポンス自体を返す。
func Data(res gjson.Result) gjson.Result {
	if d := res.Get("data"); d.Exists() && d.Type != gjson.Null {
		return d
	}
	return res
}
