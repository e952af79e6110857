package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"WaveFM/cache"
	"WaveFM/logger"
	"WaveFM/model"
)

var progressUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const progressWriteWait = 10 * time.Second

// UploadProgressHandler relays upload progress events for one track over a
// websocket. Events are advisory: a client that reconnects mid-upload must
// still call the resume endpoint for durable state.
func (h *APIHandler) UploadProgressHandler(w http.ResponseWriter, r *http.Request) {
	trackID := mux.Vars(r)["track_id"]

	track, err := h.trackRepo.GetTrackByID(r.Context(), trackID)
	if err != nil {
		respondError(w, err)
		return
	}

	conn, err := progressUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed",
			logger.String("trackId", trackID),
			logger.ErrorField(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pubsub := cache.SubscribeProgress(ctx, trackID)
	defer pubsub.Close()

	// Snapshot first so a late subscriber is not stuck waiting for the
	// next chunk to learn where the upload stands.
	if session, err := h.tracker.Session(ctx, trackID); err == nil {
		snapshot := cache.ProgressEvent{
			TrackID:        trackID,
			ReceivedChunks: session.ReceivedChunks,
			TotalChunks:    session.TotalChunks,
			Watermark:      session.Watermark,
			Status:         track.Status,
		}
		conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
	}

	// Drain client frames so close and pong handling keep working.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(progressWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
			if done, status := terminalPayload(msg.Payload); done {
				logger.Debug("progress stream finished",
					logger.String("trackId", trackID),
					logger.String("status", status))
				return
			}
		}
	}
}

// terminalPayload reports whether a relayed event carries a terminal
// status, which ends the stream.
func terminalPayload(payload string) (bool, string) {
	var event cache.ProgressEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return false, ""
	}
	switch event.Status {
	case model.StatusComplete, model.StatusFailed:
		return true, event.Status
	}
	return false, ""
}
