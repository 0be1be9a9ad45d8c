// Package server binds the transaction engine to the network.  The TCP
// binding runs one worker per connection; the UDP binding serves every
// agency from a single loop.  Both hand each request line to the same
// Handler and only differ in how bytes travel.
package server

import (
	"context"
	"errors"
	"net"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/flight-seat-reservation/internal/engine"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/protocol"
)

// Service is the part of the engine the agencies can reach.
type Service interface {
	Reserve(ctx context.Context, ref, agency, seats int) error
	Cancel(ctx context.Context, ref, agency, seats int) error
	Invoice(agency int) (decimal.Decimal, error)
	Consult() []model.Flight
}

// Server is a running transport binding.
type Server interface {
	// Serve blocks until ctx is cancelled or the binding fails.
	Serve(ctx context.Context) error
	Addr() net.Addr
}

// Handler turns one request line into one response.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// NewHandler wraps svc.
func NewHandler(svc Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Handle parses line, runs it against the engine and formats the outcome.
// The response has no trailing newline; transports add framing.
func (h *Handler) Handle(ctx context.Context, line string) string {
	req, err := protocol.Parse(line)
	if err != nil {
		h.logger.Debug("bad request", zap.String("line", line), zap.Error(err))
		if errors.Is(err, protocol.ErrInvalidCommand) {
			return protocol.InvalidCommand
		}
		return protocol.UnknownCommand
	}

	switch req.Verb {
	case protocol.VerbReserve:
		return h.outcome(req, h.svc.Reserve(ctx, req.Ref, req.Agency, req.Seats))
	case protocol.VerbCancel:
		return h.outcome(req, h.svc.Cancel(ctx, req.Ref, req.Agency, req.Seats))
	case protocol.VerbInvoice:
		amount, err := h.svc.Invoice(req.Agency)
		if err != nil {
			return h.outcome(req, err)
		}
		return protocol.FormatInvoice(amount)
	case protocol.VerbConsult:
		return protocol.FormatConsult(h.svc.Consult())
	}
	return protocol.UnknownCommand
}

func (h *Handler) outcome(req protocol.Request, err error) string {
	switch {
	case err == nil:
		return protocol.Success
	case errors.Is(err, engine.ErrRejected):
		h.logger.Debug("request rejected", zap.Stringer("request", req), zap.Error(err))
		return protocol.Failure
	case errors.Is(err, engine.ErrInvalid):
		h.logger.Debug("request invalid", zap.Stringer("request", req), zap.Error(err))
		return protocol.InvalidCommand
	}
	h.logger.Error("request failed", zap.Stringer("request", req), zap.Error(err))
	return protocol.ServerError
}
