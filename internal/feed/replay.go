package feed

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Replay is the sequence of snapshots a match went through.
type Replay struct {
	MatchID string      `json:"match_id"`
	Frames  []MatchView `json:"frames"`

	index int
}

// Start rewinds the replay.
func (r *Replay) Start() {
	r.index = 0
}

// Skip moves count frames, clamped to the recorded range.
func (r *Replay) Skip(count int) (MatchView, bool) {
	if len(r.Frames) == 0 {
		return MatchView{}, false
	}
	r.index = min(max(r.index+count, 0), len(r.Frames)-1)
	return r.Frames[r.index], true
}

// Size returns the number of recorded frames.
func (r *Replay) Size() int {
	return len(r.Frames)
}

// Recorder is a Sink that keeps the frames of the most recent matches in
// memory. It is safe for concurrent use.
type Recorder struct {
	logger *zap.Logger
	limit  int

	mu      sync.RWMutex
	replays map[string]*Replay
	order   []string
}

// NewRecorder keeps up to limit matches; older ones are evicted.
func NewRecorder(limit int, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		logger:  logger,
		limit:   max(limit, 1),
		replays: make(map[string]*Replay),
	}
}

// Send records the snapshot carried by msg.
func (rr *Recorder) Send(msg Message) {
	if msg.Data == nil || msg.MatchID == "" {
		return
	}

	rr.mu.Lock()
	defer rr.mu.Unlock()

	replay, ok := rr.replays[msg.MatchID]
	if !ok {
		replay = &Replay{MatchID: msg.MatchID}
		rr.replays[msg.MatchID] = replay
		rr.order = append(rr.order, msg.MatchID)
		rr.evict()
	}
	replay.Frames = append(replay.Frames, *msg.Data)

	rr.logger.Debug("recorded replay frame",
		zap.String("match_id", msg.MatchID),
		zap.Int("frames", len(replay.Frames)),
	)
}

func (rr *Recorder) evict() {
	for len(rr.order) > rr.limit {
		oldest := rr.order[0]
		rr.order = rr.order[1:]
		delete(rr.replays, oldest)
		rr.logger.Debug("evicted replay", zap.String("match_id", oldest))
	}
}

// Replay returns a copy of the frames recorded for a match.
func (rr *Recorder) Replay(matchID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	replay, ok := rr.replays[matchID]
	if !ok {
		return nil, false
	}
	return &Replay{MatchID: replay.MatchID, Frames: append([]MatchView(nil), replay.Frames...)}, true
}

// MatchIDs lists the recorded matches, oldest first.
func (rr *Recorder) MatchIDs() []string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	return append([]string(nil), rr.order...)
}

// Clear drops the replay of a match.
func (rr *Recorder) Clear(matchID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	delete(rr.replays, matchID)
	for i, id := range rr.order {
		if id == matchID {
			rr.order = append(rr.order[:i], rr.order[i+1:]...)
			break
		}
	}
}

// FrameResponse is one frame of a replay.
type FrameResponse struct {
	MatchID string    `json:"match_id"`
	Index   int       `json:"index"`
	Size    int       `json:"size"`
	Frame   MatchView `json:"frame"`
}

// Register mounts the replay endpoints on mux:
//
//	GET    /replays                  recorded match ids
//	GET    /replays/{id}             frames of one match
//	GET    /replays/{id}/frames/{n}  frame n of one match
//	DELETE /replays/{id}             drop a replay
func (rr *Recorder) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /replays", func(w http.ResponseWriter, r *http.Request) {
		rr.writeJSON(w, http.StatusOK, rr.MatchIDs())
	})
	mux.HandleFunc("GET /replays/{id}", func(w http.ResponseWriter, r *http.Request) {
		replay, ok := rr.Replay(r.PathValue("id"))
		if !ok {
			rr.writeError(w, http.StatusNotFound, "replay not found")
			return
		}
		rr.writeJSON(w, http.StatusOK, replay)
	})
	mux.HandleFunc("GET /replays/{id}/frames/{n}", func(w http.ResponseWriter, r *http.Request) {
		replay, ok := rr.Replay(r.PathValue("id"))
		if !ok {
			rr.writeError(w, http.StatusNotFound, "replay not found")
			return
		}
		n, err := strconv.Atoi(r.PathValue("n"))
		if err != nil || n < 0 || n >= replay.Size() {
			rr.writeError(w, http.StatusNotFound, "frame not found")
			return
		}
		replay.Start()
		frame, _ := replay.Skip(n)
		rr.writeJSON(w, http.StatusOK, FrameResponse{
			MatchID: replay.MatchID,
			Index:   n,
			Size:    replay.Size(),
			Frame:   frame,
		})
	})
	mux.HandleFunc("DELETE /replays/{id}", func(w http.ResponseWriter, r *http.Request) {
		if _, ok := rr.Replay(r.PathValue("id")); !ok {
			rr.writeError(w, http.StatusNotFound, "replay not found")
			return
		}
		rr.Clear(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
}

func (rr *Recorder) writeError(w http.ResponseWriter, status int, msg string) {
	rr.writeJSON(w, status, map[string]string{"error": msg})
}

func (rr *Recorder) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rr.logger.Warn("failed to write response", zap.Error(err))
	}
}
