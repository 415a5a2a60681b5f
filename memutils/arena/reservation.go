package arena

import (
	"context"

	"golang.org/x/exp/slog"
)

type bufferReservation []byte

func (r bufferReservation) Bytes() []byte  { return r }
func (r bufferReservation) Release() error { return nil }

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
