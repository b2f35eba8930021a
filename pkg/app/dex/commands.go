package dex

import (
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/app/core/spot"
)

// CommandHandler receives the outbox drained at the end of each block, in
// append order. It runs with the app lock held and must not call back into
// the app.
type CommandHandler interface {
	HandleCommands(height uint64, cmds []spot.Command)
}

type CommandHandlerFunc func(height uint64, cmds []spot.Command)

func (f CommandHandlerFunc) HandleCommands(height uint64, cmds []spot.Command) { f(height, cmds) }

// LogCommands is the handler used when no matcher is attached.
type LogCommands struct {
	Logger *zap.Logger
}

func (l LogCommands) HandleCommands(height uint64, cmds []spot.Command) {
	for _, c := range cmds {
		l.Logger.Debug("matcher command",
			zap.Uint64("height", height),
			zap.Uint64("id", c.ID),
			zap.Stringer("kind", c.Kind),
			zap.String("account", c.Account.Hex()),
			zap.Stringer("pair", c.Pair),
			zap.Uint64("seq", c.Seq))
	}
}
