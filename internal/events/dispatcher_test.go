package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishRunsEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("mail down")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketDeescalated, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "mail down")
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestPublishWithoutListeners(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventExtensionDecided}))
}

func TestPublishRecoversHandlerPanic(t *testing.T) {
	d := NewInMemoryDispatcher()
	ran := false
	d.Subscribe(EventTicketEscalated, func(context.Context, Event) error {
		panic("template exploded")
	})
	d.Subscribe(EventTicketEscalated, func(context.Context, Event) error {
		ran = true
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketEscalated})
	assert.ErrorContains(t, err, "template exploded")
	assert.True(t, ran)
}
