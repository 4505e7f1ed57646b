package httpform

import (
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/goliatone/go-formstate/pkg/form"
)

// Event is one websocket message. The first message of a stream carries
// What "init".
type Event struct {
	What     string        `json:"what"`
	Snapshot form.Snapshot `json:"snapshot"`
}

// events streams state changes. Only the latest pending change is kept for
// a slow client; every event carries a full snapshot.
func (h *Handler) events(w http.ResponseWriter, r *http.Request, sess *Session) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.opts.Logger.Warn("httpform websocket accept failed", "session", sess.ID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	pending := make(chan form.Change, 1)
	unsubscribe := sess.Store.Subscribe(func(c form.Change) {
		for {
			select {
			case pending <- c:
				return
			default:
			}
			select {
			case <-pending:
			default:
			}
		}
	})
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())
	if err := wsjson.Write(ctx, conn, Event{What: "init", Snapshot: sess.Store.Snapshot()}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case change := <-pending:
			if err := wsjson.Write(ctx, conn, Event{What: change.What.String(), Snapshot: change.Snapshot}); err != nil {
				h.opts.Logger.Debug("httpform websocket write failed", "session", sess.ID, "error", err)
				return
			}
		}
	}
}
