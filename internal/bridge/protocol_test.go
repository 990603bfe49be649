package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantTyp string
		wantErr bool
	}{
		{"open", `{"type":"open","data":{"storyId":"s1","mode":"edit"}}`, "open", false},
		{"open default mode", `{"type":"open","data":{"storyId":"s1"}}`, "open", false},
		{"open home without id", `{"type":"open","data":{"mode":"home"}}`, "open", false},
		{"open without id", `{"type":"open","data":{"mode":"view"}}`, "open", true},
		{"open bad mode", `{"type":"open","data":{"storyId":"s1","mode":"fullscreen"}}`, "open", true},
		{"home", `{"type":"home"}`, "home", false},
		{"goto", `{"type":"goto","data":{"index":3}}`, "goto", false},
		{"goto missing data", `{"type":"goto"}`, "goto", true},
		{"goto wrong type", `{"type":"goto","data":{"index":"x"}}`, "goto", true},
		{"next", `{"type":"next"}`, "next", false},
		{"prev", `{"type":"prev"}`, "prev", false},
		{"insert", `{"type":"insert","data":{"index":0}}`, "insert", false},
		{"delete", `{"type":"delete","data":{"index":1}}`, "delete", false},
		{"reorder", `{"type":"reorder","data":{"from":1,"to":2}}`, "reorder", false},
		{"update", `{"type":"update","data":{"index":1,"path":"title","value":"Hi"}}`, "update", false},
		{"update without path", `{"type":"update","data":{"index":1,"value":"Hi"}}`, "update", true},
		{"save", `{"type":"save"}`, "save", false},
		{"pick", `{"type":"pick","data":{"index":1}}`, "pick", false},
		{"click", `{"type":"click","data":{"lng":2.35,"lat":48.85,"camera":{"center":[2.35,48.85],"zoom":9}}}`, "click", false},
		{"click with client times", `{"type":"click","data":{"lng":2.35,"lat":48.85,"at":1700000000000,"sent":1700000000250}}`, "click", false},
		{"search", `{"type":"search","data":{"index":1,"query":"Paris"}}`, "search", false},
		{"moveend", `{"type":"moveend","data":{"camera":{"center":[1,2],"zoom":3}}}`, "moveend", false},
		{"rotate", `{"type":"rotate","data":{"camera":{"center":[1,2],"zoom":3,"pitch":40}}}`, "rotate", false},
		{"cinema enter", `{"type":"cinema.enter"}`, "cinema.enter", false},
		{"cinema exit", `{"type":"cinema.exit"}`, "cinema.exit", false},
		{"audio ended", `{"type":"audio.ended","data":{"token":4}}`, "audio.ended", false},
		{"audio error", `{"type":"audio.error","data":{"token":4}}`, "audio.error", false},
		{"redraw", `{"type":"redraw"}`, "redraw", false},
		{"unknown", `{"type":"explode"}`, "explode", true},
		{"not json", `{`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, cmd, err := Decode([]byte(tt.raw))
			assert.Equal(t, tt.wantTyp, typ)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, cmd)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, cmd)
		})
	}
}

func TestClickTime(t *testing.T) {
	now := time.Unix(1000, 0)
	tests := []struct {
		name     string
		at, sent int64
		want     time.Time
	}{
		{"no client times", 0, 0, now},
		{"dated by client age", 5_000, 5_300, now.Add(-300 * time.Millisecond)},
		{"skewed client clock", 9_999_000_000, 9_999_000_040, now.Add(-40 * time.Millisecond)},
		{"sent before click", 5_300, 5_000, now},
		{"age capped", 1_000, 60_000, now.Add(-maxClickAge)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clickTime(now, tt.at, tt.sent))
		})
	}
}
