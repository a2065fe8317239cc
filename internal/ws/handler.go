package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-duel-backend/internal/battle"
	"github.com/DoyleJ11/monster-duel-backend/internal/hub"
	"github.com/DoyleJ11/monster-duel-backend/pkg/types"
)

const (
	defaultOutboxSize = 32
	writeTimeout      = 3 * time.Second
	readLimit         = 4096
)

type Options struct {
	// OriginPatterns are extra hosts allowed to upgrade cross-origin.
	OriginPatterns []string
	OutboxSize     int
	Logger         *zap.Logger
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	if opts.OutboxSize < 1 {
		opts.OutboxSize = defaultOutboxSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	logger := opts.Logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Debug("upgrade failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(readLimit)

		connID := uuid.NewString()
		log := logger.With(zap.String("conn", connID))
		out := make(chan battle.Event, opts.OutboxSize)
		if !post(r.Context(), h, hub.Connect{ConnID: connID, Outbox: out}) {
			conn.Close(websocket.StatusTryAgainLater, "server shutting down")
			return
		}
		log.Debug("connected", zap.String("remote", r.RemoteAddr))

		ctx, cancel := context.WithCancel(r.Context())
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			writeLoop(ctx, conn, out, log)
		}()

		readLoop(ctx, conn, h, connID, log)

		post(context.Background(), h, hub.Disconnect{ConnID: connID})
		cancel()
		<-writerDone
		log.Debug("disconnected")
	}
}

// writeLoop drains the outbox until the hub closes it or the handler exits.
func writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan battle.Event, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-out:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "closed by server")
				return
			}
			payload, err := types.EncodeEvent(ev)
			if err != nil {
				log.Error("failed to encode event", zap.Error(err))
				continue
			}
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, payload)
			wcancel()
			if err != nil {
				log.Debug("write failed", zap.Error(err))
				conn.CloseNow()
				return
			}
		}
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, h *hub.Hub, connID string, log *zap.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if !errors.Is(err, context.Canceled) {
					log.Debug("read failed", zap.Error(err))
				}
			}
			return
		}

		cm, err := types.ParseClientMessage(data)
		if err != nil {
			log.Debug("bad client message", zap.Error(err))
			reply(ctx, conn, types.NewError(err.Error()))
			continue
		}

		var msg hub.HubMsg
		switch cm.Type {
		case types.TypeLogin:
			msg = hub.Login{ConnID: connID, Name: cm.Name}
		case types.TypeMove:
			if cm.MoveIndex != nil && *cm.MoveIndex < 0 {
				log.Debug("negative move index dropped", zap.Int("move", *cm.MoveIndex))
				continue
			}
			msg = hub.ChooseMove{ConnID: connID, SessionID: cm.BattleID, Move: cm.Move()}
		}
		if !post(ctx, h, msg) {
			return
		}
	}
}

func reply(ctx context.Context, conn *websocket.Conn, msg types.ErrorMessage) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = wsjson.Write(wctx, conn, msg)
}

// post hands m to the hub unless the hub or ctx is already done.
func post(ctx context.Context, h *hub.Hub, m hub.HubMsg) bool {
	select {
	case h.Inbox() <- m:
		return true
	case <-h.Done():
		return false
	case <-ctx.Done():
		return false
	}
}
