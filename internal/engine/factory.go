package engine

import (
	"context"
	"os"

	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/llm"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/market"
	"gemex-ace/internal/notify"
	"gemex-ace/internal/playbook"
	"gemex-ace/internal/simulator"
	"gemex-ace/internal/store"
	"gemex-ace/internal/tradelog"
)

func New(d Deps) *Engine {
	return newEngine(d)
}

// NewFromConfig wires every collaborator from config and the environment.
func NewFromConfig(ctx context.Context, cfg *store.Config, pbStore *playbook.Store, sessions *tradelog.Store) (*Engine, error) {
	prices, err := market.NewPriceSource(cfg)
	if err != nil {
		return nil, err
	}
	gen, refl := llm.NewPair(ctx, cfg, sessions)

	return newEngine(Deps{
		Symbol:    cfg.Symbol,
		Playbook:  pbStore,
		Sessions:  sessions,
		Snapshots: market.NewSnapshotBuilder(cfg, prices),
		Generator: gen,
		Simulator: simulator.NewFromConfig(cfg, prices),
		Reflector: refl,
		Notifier:  NewNotifier(ctx, cfg),
	}), nil
}

// NewNotifier returns the Telegram notifier when it is enabled and configured,
// otherwise a no-op.
func NewNotifier(ctx context.Context, cfg *store.Config) interfaces.Notifier {
	if !cfg.Notify.Telegram.Enabled {
		return notify.Noop{}
	}
	token, chatID := os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID")
	if token == "" || chatID == "" {
		logger.Warn(ctx, "Telegram enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID missing, notifications disabled")
		return notify.Noop{}
	}
	tg, err := notify.NewTelegram(token, chatID, cfg.Notify.Telegram.ParseMode)
	if err != nil {
		logger.ErrorWithErr(ctx, "Invalid Telegram configuration, notifications disabled", err)
		return notify.Noop{}
	}
	return tg
}
