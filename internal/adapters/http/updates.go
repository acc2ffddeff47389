package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const (
	defaultPingPeriod = 54 * time.Second
	writeWait         = 10 * time.Second
	readLimit         = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// updates streams views to one UI socket. Views are whole snapshots, so a
// slow socket only ever gets the latest one.
func (h *handlers) updates(ctx context.Context, c *gin.Context) {
	client := c.GetString("client_token")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("client", client).Msg("upgrade failed")
		return
	}

	latest := make(chan orch.View, 1)
	push := func(v orch.View) {
		for {
			select {
			case latest <- v:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	}
	push(h.ctl.Snapshot())
	unsub := h.ctl.Subscribe(push)
	defer unsub()

	done := make(chan struct{})
	var wg conc.WaitGroup
	wg.Go(func() { readPump(conn, done) })

	writePump(ctx, conn, latest, done, h.pingPeriod)
	_ = conn.Close()
	wg.Wait()
	log.Info().Str("module", "adapters.http").Str("client", client).Msg("updates stream closed")
}

// readPump only watches for the peer going away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(readLimit)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, latest <-chan orch.View, done <-chan struct{}, ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"), time.Now().Add(writeWait))
			return
		case <-done:
			return
		case v := <-latest:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("write view")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
