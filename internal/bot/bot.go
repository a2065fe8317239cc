// Package bot is a scripted websocket client that logs in, waits for an
// opponent and plays one battle to the end.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/monster-duel-backend/pkg/types"
)

var ErrClosed = errors.New("connection closed before battle ended")

type Config struct {
	URL       string // ws://host:port/ws
	Name      string
	ThinkTime time.Duration
	Strategy  Strategy
	Logger    *zap.Logger
}

// Outcome is how the battle ended from this bot's point of view.
type Outcome struct {
	BattleID string
	Slot     int
	Winner   string // empty when nobody won
	Reason   string
	Rounds   int
}

// Won reports whether this bot was named winner.
func (o Outcome) Won(name string) bool { return o.Winner != "" && o.Winner == name }

// envelope is every server message, decoded loosely.
type envelope struct {
	Type   string          `json:"type"`
	Battle *types.Snapshot `json:"battle"`
	Slot   *int            `json:"slot"`
	Round  int             `json:"round"`
	Player string          `json:"player"`
	Result *types.Result   `json:"result"`
	Winner *string         `json:"winner"`
	Reason string          `json:"reason"`
	Error  string          `json:"error"`
}

// Run plays a single battle and returns its outcome.
func Run(ctx context.Context, cfg Config) (Outcome, error) {
	if cfg.Strategy == nil {
		cfg.Strategy = Strongest
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	log := cfg.Logger.Named("bot").With(zap.String("name", cfg.Name))

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		if resp != nil {
			return Outcome{}, fmt.Errorf("dial %s: %s: %w", cfg.URL, resp.Status, err)
		}
		return Outcome{}, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(types.ClientMessage{Type: types.TypeLogin, Name: cfg.Name}); err != nil {
		return Outcome{}, fmt.Errorf("login: %w", err)
	}

	var out Outcome
	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			return out, fmt.Errorf("%w: %v", ErrClosed, err)
		}

		switch msg.Type {
		case types.TypeWaiting:
			log.Info("waiting for opponent")

		case types.TypeBattleStart:
			if msg.Battle == nil || msg.Slot == nil {
				return out, fmt.Errorf("malformed battle_start")
			}
			out.BattleID, out.Slot = msg.Battle.ID, *msg.Slot
			log.Info("battle started", zap.String("battle", out.BattleID), zap.Int("slot", out.Slot))

		case types.TypeNewRound:
			if msg.Battle == nil || len(msg.Battle.Players) != 2 {
				return out, fmt.Errorf("malformed new_round")
			}
			out.Rounds = msg.Round
			self, foe := msg.Battle.Players[out.Slot].Pokemon, msg.Battle.Players[1-out.Slot].Pokemon
			move := cfg.Strategy(self, foe)

			if cfg.ThinkTime > 0 {
				select {
				case <-time.After(cfg.ThinkTime):
				case <-ctx.Done():
					return out, ctx.Err()
				}
			}
			if err := conn.WriteJSON(types.ClientMessage{Type: types.TypeMove, BattleID: out.BattleID, MoveIndex: move}); err != nil {
				return out, fmt.Errorf("send move: %w", err)
			}

		case types.TypeTurnResult:
			if msg.Result != nil {
				log.Debug("hit",
					zap.String("attacker", msg.Result.Attacker),
					zap.String("move", msg.Result.Move),
					zap.Int("damage", msg.Result.Damage),
					zap.Int("defender_hp", msg.Result.DefenderHP))
			}

		case types.TypeBattleEnd:
			if msg.Winner != nil {
				out.Winner = *msg.Winner
			}
			out.Reason = msg.Reason
			log.Info("battle ended", zap.String("winner", out.Winner), zap.String("reason", out.Reason), zap.Int("rounds", out.Rounds))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return out, nil

		case types.TypeError:
			log.Warn("server rejected message", zap.String("error", msg.Error))
		}
	}
}
