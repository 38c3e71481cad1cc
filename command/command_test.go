package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, cmd ArgsWriter, id int64) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Frame(&buf, cmd, id))
	return buf.String()
}

func TestFrame(t *testing.T) {
	tests := []struct {
		name string
		cmd  ArgsWriter
		id   int64
		want string
	}{
		{"get_version", GetVersion{}, 1, `{"request_id":1,"command":["get_version"]}` + "\n"},
		{"get_property", Get(Volume), 7, `{"request_id":7,"command":["get_property","volume"]}` + "\n"},
		{"set_property bool", Set(Pause, true), 2, `{"request_id":2,"command":["set_property","pause",true]}` + "\n"},
		{"set_property track none", Set(Sid, TrackNone), 3, `{"request_id":3,"command":["set_property","sid",false]}` + "\n"},
		{"set_property untyped", Set(Untyped("loop-file"), json.RawMessage(`"inf"`)), 4, `{"request_id":4,"command":["set_property","loop-file","inf"]}` + "\n"},
		{"observe", Observe(3, TimePos), 5, `{"request_id":5,"command":["observe_property",3,"time-pos"]}` + "\n"},
		{"unobserve", Unobserve(3), 6, `{"request_id":6,"command":["unobserve_property",3]}` + "\n"},
		{"cycle", Cycle(Pause, false), 8, `{"request_id":8,"command":["cycle","pause"]}` + "\n"},
		{"cycle down", Cycle(Aid, true), 9, `{"request_id":9,"command":["cycle","aid","down"]}` + "\n"},
		{"loadfile", Load("/tmp/a b.mkv"), 10, `{"request_id":10,"command":["loadfile","/tmp/a b.mkv"]}` + "\n"},
		{"loadfile append", Loadfile{Path: "x", Mode: LoadAppend}, 11, `{"request_id":11,"command":["loadfile","x","append"]}` + "\n"},
		{"stop", Stop{}, 12, `{"request_id":12,"command":["stop"]}` + "\n"},
		{"stop keep", Stop{KeepPlaylist: true}, 13, `{"request_id":13,"command":["stop","keep-playlist"]}` + "\n"},
		{"seek", Seek{Seconds: 30, Flags: "absolute"}, 14, `{"request_id":14,"command":["seek",30,"absolute"]}` + "\n"},
		{"screenshot", Screenshot{File: "/tmp/s.png"}, 15, `{"request_id":15,"command":["screenshot-to-file","/tmp/s.png"]}` + "\n"},
		{"raw", Raw(`"get_property", "pause"`), 0, `{"request_id":0,"command":["get_property", "pause"]}` + "\n"},
		{"args", Args{"show-text", "hi", 1000}, 16, `{"request_id":16,"command":["show-text","hi",1000]}` + "\n"},
		{"escaped name", Get(Untyped(`we"ird`)), 17, `{"request_id":17,"command":["get_property","we\"ird"]}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := frame(t, tt.cmd, tt.id)
			assert.Equal(t, tt.want, got)
			if _, isRaw := tt.cmd.(Raw); !isRaw {
				assert.True(t, json.Valid([]byte(got)))
			}
		})
	}
}

func TestFrameArgsError(t *testing.T) {
	var buf bytes.Buffer
	err := Frame(&buf, Args{make(chan int)}, 1)
	require.Error(t, err)
	assert.Zero(t, buf.Len(), "nothing is written when args fail to encode")
}

func TestGetVersionParseData(t *testing.T) {
	v, err := GetVersion{}.ParseData(json.RawMessage("131077"))
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 2, Minor: 5}, v)

	_, err = GetVersion{}.ParseData(json.RawMessage(`"x"`))
	assert.Error(t, err)
}

func TestGetPropertyParseData(t *testing.T) {
	vol, err := Get(Volume).ParseData(json.RawMessage("42.5"))
	require.NoError(t, err)
	assert.Equal(t, 42.5, vol)

	title, err := Get(MediaTitle).ParseData(json.RawMessage(`"Big Buck Bunny"`))
	require.NoError(t, err)
	assert.Equal(t, "Big Buck Bunny", title)

	_, err = Get(Pause).ParseData(json.RawMessage(`"yes"`))
	assert.Error(t, err)

	raw, err := Get(Untyped("chapter-list")).ParseData(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestLoadfileParseData(t *testing.T) {
	info, err := Load("x").ParseData(json.RawMessage(`{"playlist_entry_id":4}`))
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.PlaylistEntryID)
}

func TestRawParseData(t *testing.T) {
	data, err := Raw(`"get_version"`).ParseData(nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), data)

	data, err = Args{"get_version"}.ParseData(json.RawMessage("65536"))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("65536"), data)
}

func TestTrackID(t *testing.T) {
	tests := []struct {
		in   string
		want TrackID
	}{
		{`1`, TrackIndex(1)},
		{`"auto"`, TrackAuto},
		{`false`, TrackNone},
		{`"no"`, TrackNone},
		{`true`, TrackAuto},
	}
	for _, tt := range tests {
		var got TrackID
		require.NoError(t, json.Unmarshal([]byte(tt.in), &got), tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	var bad TrackID
	assert.Error(t, json.Unmarshal([]byte(`-1`), &bad))

	i, ok := TrackIndex(2).Index()
	assert.True(t, ok)
	assert.Equal(t, uint32(2), i)
	assert.Equal(t, "auto", TrackAuto.String())
	assert.Equal(t, "no", TrackNone.String())
}

func TestKnownProperties(t *testing.T) {
	assert.Contains(t, KnownProperties, "volume")
	assert.Contains(t, KnownProperties, "sid")
	assert.Equal(t, "time-pos", TimePos.Name())
}

func TestParseResponseEvents(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{`{"event":"property-change","id":1,"name":"volume","data":50}`, PropertyChange{ID: 1, Name: "volume", Data: json.RawMessage("50")}},
		{`{"event":"property-change","id":2,"name":"path"}`, PropertyChange{ID: 2, Name: "path"}},
		{`{"event":"start-file","playlist_entry_id":3}`, StartFile{PlaylistEntryID: 3}},
		{`{"event":"end-file","reason":"eof","playlist_entry_id":3}`, EndFile{PlaylistEntryID: 3, Reason: "eof"}},
		{`{"event":"file-loaded"}`, Notification{Name: EventFileLoaded}},
		{`{"event":"seek"}`, Notification{Name: EventSeek}},
		{`{"event":"playback-restart"}`, Notification{Name: EventPlaybackRestart}},
		{`{"event":"shutdown"}`, Notification{Name: EventShutdown}},
		{`{"event":"audio-reconfig"}`, Notification{Name: EventAudioReconfig}},
		{`{"event":"video-reconfig"}`, Notification{Name: EventVideoReconfig}},
		{`{"event":"idle"}`, Notification{Name: EventIdle}},
		{`{"event":"log-message","prefix":"cplayer","level":"info","text":"hi\n"}`, LogMessage{Prefix: "cplayer", Level: "info", Text: "hi\n"}},
		{`{"event":"client-message","args":["a"]}`, UnknownEvent{Name: "client-message", Raw: json.RawMessage(`{"event":"client-message","args":["a"]}`)}},
	}
	for _, tt := range tests {
		resp, err := ParseResponse([]byte(tt.line))
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, resp, tt.line)
		assert.Equal(t, tt.want.Kind(), resp.(Event).Kind())
	}
}

func TestParseResponseResults(t *testing.T) {
	resp, err := ParseResponse([]byte(`{"error":"success","data":42.5,"request_id":3}`))
	require.NoError(t, err)
	result, ok := resp.(*Result)
	require.True(t, ok)
	assert.True(t, result.Success())
	assert.NoError(t, result.Err())
	assert.Equal(t, int64(3), result.ID())
	assert.Equal(t, "42.5", string(result.Data))

	resp, err = ParseResponse([]byte(`{"request_id":9,"error":"property not found"}`))
	require.NoError(t, err)
	result = resp.(*Result)
	assert.False(t, result.Success())
	assert.Nil(t, result.Data)

	var resErr *ResultError
	require.ErrorAs(t, result.Err(), &resErr)
	assert.Equal(t, StatusPropertyNotFound, resErr.Status)
	assert.Equal(t, int64(9), resErr.RequestID)
	assert.ErrorIs(t, result.Err(), &ResultError{Status: StatusPropertyNotFound})
	assert.False(t, errors.Is(result.Err(), &ResultError{Status: StatusInvalidParameter}))

	resp, err = ParseResponse([]byte(`{"error":"success","data":null,"request_id":null}`))
	require.NoError(t, err)
	result = resp.(*Result)
	assert.Nil(t, result.RequestID)
	assert.Zero(t, result.ID())
}

func TestParseResponseFailures(t *testing.T) {
	_, err := ParseResponse([]byte(`{"error":"succ`))
	var syntaxErr *json.SyntaxError
	assert.ErrorAs(t, err, &syntaxErr)

	_, err = ParseResponse([]byte(`{"foo":1}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)

	_, err = ParseResponse([]byte(`{"event":"property-change","id":"x"}`))
	assert.Error(t, err)
}

func TestStatusKnown(t *testing.T) {
	for _, s := range []Status{StatusSuccess, StatusInvalidParameter, StatusPropertyUnavailable, StatusPropertyNotFound, StatusErrorRunningCommand} {
		assert.True(t, s.Known(), s)
	}
	assert.False(t, Status("command not found").Known())
}
