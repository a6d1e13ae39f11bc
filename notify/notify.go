package notify

import (
	"context"
	"errors"
)

// Message is a single push notification addressed to one device token.
type Message struct {
	To    string
	Title string
	Body  string
	Data  map[string]string
}

type Receipt struct {
	Provider string
	ID       string
}

type Dispatcher interface {
	Send(ctx context.Context, msg Message) (receipt *Receipt, err error)
	Provider() string
}

var ErrNoRecipient = errors.New("push message has no recipient token")

const ProviderNone = "none"

// NopDispatcher accepts every message and delivers nothing.
type NopDispatcher struct{}

var _ Dispatcher = NopDispatcher{}

func (NopDispatcher) Send(_ context.Context, msg Message) (*Receipt, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}

	return &Receipt{Provider: ProviderNone}, nil
}

func (NopDispatcher) Provider() string {
	return ProviderNone
}
