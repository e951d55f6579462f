package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
)

// SnapshotMessage is pushed to stream clients on connect and after changes.
type SnapshotMessage struct {
	Type   string     `json:"type"`
	Items  []ItemDTO  `json:"items"`
	Agenda DayViewDTO `json:"agenda"`
}

// Stream handles GET /v1/stream.
//
// The connection is upgraded to a websocket. The client receives the full
// collection plus the agenda for ?date= (default today) immediately and again
// whenever the collection changes. Client frames other than ping and close
// are ignored.
func (h *PlanHandler) Stream(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	date, err := h.dateParam(r.URL.Query().Get("date"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	if h.changes == nil {
		response.Error(w, "UNAVAILABLE", "live updates are not enabled", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The server's read/write timeouts must not apply to a long-lived stream.
	if err := conn.SetDeadline(time.Time{}); err != nil {
		slog.WarnContext(r.Context(), "failed to clear stream deadline", "error", err)
		return
	}

	changes, unsubscribe := h.changes.Subscribe(owner)
	defer unsubscribe()

	slog.InfoContext(r.Context(), "stream opened", "owner_id", owner, "date", date.String())
	defer slog.InfoContext(r.Context(), "stream closed", "owner_id", owner)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pings := make(chan []byte, 1)
	go readClientFrames(conn, pings, cancel)

	if err := h.pushSnapshot(ctx, conn, owner, date); err != nil {
		slog.WarnContext(ctx, "failed to push initial snapshot", "error", err)
		return
	}

	ticker := time.NewTicker(h.config.StreamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = h.writeFrame(conn, ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
			return
		case _, open := <-changes:
			if !open {
				return
			}
			if err := h.pushSnapshot(ctx, conn, owner, date); err != nil {
				slog.WarnContext(ctx, "failed to push snapshot", "error", err)
				return
			}
		case payload := <-pings:
			if err := h.writeFrame(conn, ws.NewPongFrame(payload)); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.writeFrame(conn, ws.NewPingFrame(nil)); err != nil {
				return
			}
		}
	}
}

// readClientFrames drains client frames until the peer closes or errors,
// forwarding ping payloads to the writer loop, which owns the connection's
// write side.
func readClientFrames(conn net.Conn, pings chan<- []byte, done context.CancelFunc) {
	defer done()
	for {
		frame, err := ws.ReadFrame(conn)
		if err != nil {
			return
		}
		if frame.Header.Masked {
			ws.Cipher(frame.Payload, frame.Header.Mask, 0)
		}
		switch frame.Header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPing:
			select {
			case pings <- frame.Payload:
			default:
			}
		}
	}
}

func (h *PlanHandler) pushSnapshot(ctx context.Context, conn net.Conn, owner string, date domain.Date) error {
	items, err := h.planner.ListItems(ctx, owner)
	if err != nil {
		return err
	}
	view, err := h.planner.Agenda(ctx, owner, date)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(SnapshotMessage{
		Type:   "snapshot",
		Items:  MapItemsToDTO(items),
		Agenda: MapDayViewToDTO(view),
	})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(h.config.StreamWriteTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerText(conn, payload)
}

func (h *PlanHandler) writeFrame(conn net.Conn, frame ws.Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.config.StreamWriteTimeout)); err != nil {
		return err
	}
	return ws.WriteFrame(conn, frame)
}
