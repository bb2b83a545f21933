package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mine-duel/duel-server-go/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func frame(matchID, state string) Message {
	return Message{Type: TypeStatsChanged, MatchID: matchID, Data: &MatchView{MatchID: matchID, State: state}}
}

func TestReplaySkip(t *testing.T) {
	r := &Replay{MatchID: "m", Frames: []MatchView{{State: "a"}, {State: "b"}, {State: "c"}}}

	f, ok := r.Skip(1)
	require.True(t, ok)
	assert.Equal(t, "b", f.State)

	f, _ = r.Skip(10)
	assert.Equal(t, "c", f.State)
	f, _ = r.Skip(-10)
	assert.Equal(t, "a", f.State)

	r.Skip(2)
	r.Start()
	f, _ = r.Skip(0)
	assert.Equal(t, "a", f.State)
	assert.Equal(t, 3, r.Size())

	_, ok = (&Replay{}).Skip(1)
	assert.False(t, ok)
}

func TestRecorderKeepsFramesPerMatch(t *testing.T) {
	rec := NewRecorder(2, zaptest.NewLogger(t))

	rec.Send(frame("m1", "IN_PROGRESS"))
	rec.Send(frame("m1", "ENDED"))
	rec.Send(Message{Type: TypeMatchStarted, MatchID: "m1"})
	rec.Send(frame("m2", "IN_PROGRESS"))

	replay, ok := rec.Replay("m1")
	require.True(t, ok)
	assert.Equal(t, 2, replay.Size())
	assert.Equal(t, "ENDED", replay.Frames[1].State)

	rec.Send(frame("m3", "IN_PROGRESS"))
	assert.Equal(t, []string{"m2", "m3"}, rec.MatchIDs())
	_, ok = rec.Replay("m1")
	assert.False(t, ok, "oldest match is evicted")

	rec.Clear("m2")
	assert.Equal(t, []string{"m3"}, rec.MatchIDs())
}

func TestRecorderWithPresenter(t *testing.T) {
	bus := events.NewBus(zaptest.NewLogger(t))
	ctrl := newController(t, bus)
	rec := NewRecorder(4, zaptest.NewLogger(t))
	require.NoError(t, NewPresenter(bus, ctrl, nil, rec).Attach())

	require.NoError(t, ctrl.StartGame(false))
	require.NoError(t, ctrl.DealDamage(1))
	require.NoError(t, ctrl.EndGame())

	replay, ok := rec.Replay(ctrl.MatchID())
	require.True(t, ok)
	require.Equal(t, 4, replay.Size())
	assert.Equal(t, "IN_PROGRESS", replay.Frames[0].State)
	assert.Equal(t, "ENDED", replay.Frames[3].State)
}

func TestRecorderHTTP(t *testing.T) {
	rec := NewRecorder(4, zaptest.NewLogger(t))
	rec.Send(frame("m1", "ENDED"))

	mux := http.NewServeMux()
	rec.Register(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/replays")
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ids))
	resp.Body.Close()
	assert.Equal(t, []string{"m1"}, ids)

	resp, err = http.Get(server.URL + "/replays/m1")
	require.NoError(t, err)
	var replay Replay
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&replay))
	resp.Body.Close()
	assert.Equal(t, "m1", replay.MatchID)
	require.Len(t, replay.Frames, 1)

	resp, err = http.Get(server.URL + "/replays/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecorderHTTPFramesAndDelete(t *testing.T) {
	rec := NewRecorder(4, zaptest.NewLogger(t))
	rec.Send(frame("m1", "IN_PROGRESS"))
	rec.Send(frame("m1", "ENDED"))

	mux := http.NewServeMux()
	rec.Register(mux)
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/replays/m1/frames/1")
	require.NoError(t, err)
	var got FrameResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	resp.Body.Close()
	assert.Equal(t, FrameResponse{MatchID: "m1", Index: 1, Size: 2, Frame: MatchView{MatchID: "m1", State: "ENDED"}}, got)

	for _, path := range []string{"/replays/m1/frames/2", "/replays/m1/frames/-1", "/replays/m1/frames/x", "/replays/nope/frames/0"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/replays/m1", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, rec.MatchIDs())

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
