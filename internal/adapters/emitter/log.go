package emitter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/TeneoProtocolAI/dapp-sync-sdk/internal/core/domain"
)

// LogEmitter writes each event as a structured log line.
type LogEmitter struct {
	log zerolog.Logger
}

// NewLogEmitter creates a LogEmitter.
func NewLogEmitter(log zerolog.Logger) *LogEmitter {
	return &LogEmitter{log: log.With().Str("component", "events").Logger()}
}

// Emit logs record at info level.
func (l *LogEmitter) Emit(ctx context.Context, record domain.EventRecord) error {
	e := l.log.Info().Str("id", string(record.ID)).Str("type", string(record.Event.Kind()))
	switch ev := record.Event.(type) {
	case domain.TokenTransfer:
		e = e.Str("from", ev.From.Hex()).Str("to", ev.To.Hex()).Str("amount", ev.Amount)
	case domain.NFTMint:
		e = e.Str("owner", ev.Owner.Hex()).Str("token_id", ev.TokenID).Str("token_uri", ev.TokenURI)
	case domain.NFTTransfer:
		e = e.Str("from", ev.From.Hex()).Str("to", ev.To.Hex()).Str("token_id", ev.TokenID)
	}
	e.Msg("Event")
	return nil
}

// Close is a no-op.
func (l *LogEmitter) Close() error { return nil }
