// Package notify turns missing-field reports into per-owner digests and the
// admin daily summary, and delivers them through pluggable sinks.
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/kiko9987/itglobal/internal/errors"
)

// Sink delivers one message to an address on its channel.
type Sink interface {
	Send(ctx context.Context, address, subject, body string) error
}

// Channels understood by the router.
const (
	ChannelEmail = "email"
	ChannelSlack = "slack"
	ChannelLog   = "log"
)

// Recipient is a parsed "channel:address" contact.
type Recipient struct {
	Channel string
	Address string
}

// ParseRecipient splits "email:kim@example.com" into its parts.
func ParseRecipient(s string) (Recipient, error) {
	channel, address, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || channel == "" || strings.TrimSpace(address) == "" {
		return Recipient{}, fmt.Errorf("recipient %q is not channel:address", s)
	}
	return Recipient{Channel: strings.ToLower(channel), Address: strings.TrimSpace(address)}, nil
}

func (r Recipient) String() string {
	return r.Channel + ":" + r.Address
}

// Message is a composed notification.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message to a recipient.
type Sender interface {
	Deliver(ctx context.Context, to Recipient, msg Message) error
}

// Router picks the sink registered for a recipient's channel.
type Router struct {
	mu    sync.RWMutex
	sinks map[string]Sink
}

// NewRouter creates an empty Router.
func NewRouter() *Router {
	return &Router{sinks: map[string]Sink{}}
}

var _ Sender = (*Router)(nil)

// Register binds sink to channel, replacing any previous binding.
func (r *Router) Register(channel string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[strings.ToLower(channel)] = sink
}

// Channels lists the registered channels.
func (r *Router) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sinks))
	for c := range r.sinks {
		out = append(out, c)
	}
	return out
}

// Deliver sends msg through the sink for to.Channel. Sink failures come back
// as SINK_DELIVERY_FAILED.
func (r *Router) Deliver(ctx context.Context, to Recipient, msg Message) error {
	r.mu.RLock()
	sink, ok := r.sinks[to.Channel]
	r.mu.RUnlock()
	if !ok {
		return apperrors.WithMessage(apperrors.ErrNoSink, fmt.Sprintf("No sink is configured for channel %q", to.Channel))
	}
	if err := sink.Send(ctx, to.Address, msg.Subject, msg.Body); err != nil {
		return apperrors.Wrap(apperrors.ErrSinkDelivery, err)
	}
	return nil
}
