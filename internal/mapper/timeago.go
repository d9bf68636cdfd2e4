package mapper

import (
	"fmt"
	"strings"
	"time"
)

// TimeAgo はタイムスタンプをnow基準の相対時刻表記に変換する。
// 60秒未満は"just now"、1時間未満は分、24時間未満は時間、それ以上は日数で表す。
// 端数は切り捨てる。解釈できない値は空文字列を返す。
func TimeAgo(now time.Time, ts string) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		return ""
	}

	seconds := int64(now.Sub(t) / time.Second)
	switch {
	case seconds < 60:
		return "just now"
	case seconds < 3600:
		return plural(seconds/60, "minute")
	case seconds < 86400:
		return plural(seconds/3600, "hour")
	default:
		return plural(seconds/86400, "day")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// timestampLayouts はサーバーが返しうる時刻書式。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTimestamp(ts string) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
