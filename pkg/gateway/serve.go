package gateway

import (
	"fmt"

	"amfgw/pkg/envelope"
	"amfgw/pkg/registry"
)

// Engine is the gateway's serve(requestBytes) -> responseBytes boundary
// (spec §6): everything above Handler that a transport collaborator
// needs to process one request end to end. An exception inside the
// envelope codec is fatal for the whole packet per §7; Serve reports
// that as an error and produces no response bytes.
type Engine struct {
	Registry *registry.Registry
	Handler  *Handler
}

// NewEngine wires a registry and handler into a serve boundary.
func NewEngine(reg *registry.Registry, h *Handler) *Engine {
	return &Engine{Registry: reg, Handler: h}
}

// Serve decodes one envelope, dispatches every body through the
// message handler, and re-encodes the response envelope. A decoding
// failure is fatal for the whole packet; per-body failures never
// reach here, they're already folded into error response bodies by
// Handler.Handle.
func (e *Engine) Serve(request []byte) ([]byte, error) {
	pkt, err := envelope.Decode(request, e.Registry)
	if err != nil {
		return nil, fmt.Errorf("gateway: decode request: %w", err)
	}

	resp := e.Handler.Handle(pkt)

	out, err := envelope.Encode(resp, e.Registry)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode response: %w", err)
	}
	return out, nil
}
