package provider

import (
	"errors"
	"strings"
)

var ErrProviderNotSupported = errors.New("gateway is not supported")

// Registry resolves a gateway name such as "razorpay" to its adapter.
type Registry struct {
	gateways map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	gateways := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			continue
		}
		gateways[normalizeGateway(p.Gateway())] = p
	}
	return &Registry{gateways: gateways}
}

func (r *Registry) Get(gateway string) (Provider, error) {
	p, ok := r.gateways[normalizeGateway(gateway)]
	if !ok {
		return nil, ErrProviderNotSupported
	}
	return p, nil
}

func normalizeGateway(gateway string) string {
	return strings.ToLower(strings.TrimSpace(gateway))
}
