package net

import (
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"pipe-rush/server/eventlog"
	"pipe-rush/server/internal/telemetry"
)

const (
	logWriteWait  = 10 * time.Second
	logPingPeriod = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *nethttp.Request) bool {
		return true
	},
}

// newLogsHandler streams the event log over a websocket: full history
// replay first, then a live tail until the client disconnects.
func newLogsHandler(log *eventlog.Log, logger telemetry.Logger) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Printf("log stream upgrade failed: %v", err)
			return
		}

		sub := log.Subscribe()
		defer func() {
			log.Unsubscribe(sub)
			sub.Cancel()
			conn.Close()
		}()

		go writeLogStream(conn, sub)

		// The read loop only consumes control frames; it returns once the
		// client goes away, which tears the subscription down.
		conn.SetPongHandler(func(string) error { return nil })
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

func writeLogStream(conn *websocket.Conn, sub *eventlog.Subscriber) {
	ticker := time.NewTicker(logPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case entry, ok := <-sub.Events():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(logWriteWait))
			if err := conn.WriteJSON(entry); err != nil {
				sub.Cancel()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(logWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sub.Cancel()
				return
			}
		}
	}
}
