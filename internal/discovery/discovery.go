// Package discovery advertises and resolves a running gateway on the
// LAN via mDNS, purely as an operator convenience: finding a
// hamstr-link gateway's KISS-over-TCP or VARA control address without
// typing it in by hand. It never sits on the radio data path.
//
// Grounded on src/dns_sd.go's use of github.com/brutella/dnssd: build
// a dnssd.Config, wrap it in a dnssd.NewService, add it to a
// dnssd.NewResponder, and run Respond in a background goroutine.
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"

	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
)

const serviceType = "_hamstr-gw._tcp"

// Gateway is one resolved gateway advertisement.
type Gateway struct {
	Name string
	Host string
	Port int
}

// Advertiser publishes a gateway's presence on the LAN.
type Advertiser struct {
	responder dnssd.Responder
	log       *eventlog.Bus
}

// Advertise registers name (typically the gateway's callsign) under
// _hamstr-gw._tcp on port, and starts responding to mDNS queries in
// the background. Cancel ctx to stop advertising.
func Advertise(ctx context.Context, name string, port int, log *eventlog.Bus) (*Advertiser, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: serviceType,
		Port: port,
	}
	sv, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: new service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: new responder: %w", err)
	}
	if _, err := rp.Add(sv); err != nil {
		return nil, fmt.Errorf("discovery: add service: %w", err)
	}

	go func() {
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			log.Emitf(eventlog.Warning, "discovery: responder stopped: %v", err)
		}
	}()

	log.Emitf(eventlog.System, "advertising %s on %s as %q", serviceType, fmt.Sprint(port), name)
	return &Advertiser{responder: rp, log: log}, nil
}

// Resolve watches for _hamstr-gw._tcp instances until ctx is
// cancelled, emitting every gateway it finds on the returned channel.
// Callers typically take the first result and cancel ctx.
func Resolve(ctx context.Context, log *eventlog.Bus) (<-chan Gateway, error) {
	out := make(chan Gateway, 8)

	addFn := func(e dnssd.BrowseEntry) {
		if len(e.IPs) == 0 {
			return
		}
		select {
		case out <- Gateway{Name: e.Name, Host: e.IPs[0].String(), Port: int(e.Port)}:
		default:
			log.Emitf(eventlog.Warning, "discovery: dropping resolved gateway %q, channel full", e.Name)
		}
	}
	rmvFn := func(e dnssd.BrowseEntry) {
		log.Emitf(eventlog.System, "discovery: gateway %q went away", e.Name)
	}

	go func() {
		defer close(out)
		if err := dnssd.LookupType(ctx, serviceType, addFn, rmvFn); err != nil && ctx.Err() == nil {
			log.Emitf(eventlog.Warning, "discovery: lookup stopped: %v", err)
		}
	}()

	return out, nil
}
