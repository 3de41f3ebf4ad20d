package notification

import (
	"errors"
	"sync"
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []Message
	failFor  map[string]bool
	panicFor map[string]bool
}

func (f *fakeSender) Send(receivers []string, subject, body string) error {
	if f.panicFor[subject] {
		panic("dialer crashed")
	}
	if f.failFor[subject] {
		return errors.New("535 authentication failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, Message{Receivers: receivers, Subject: subject, Body: body})
	return nil
}

func (f *fakeSender) Host() string { return "smtp.test" }

func (f *fakeSender) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

type captureEnqueuer struct {
	msgs []Message
	err  error
}

func (c *captureEnqueuer) Enqueue(msg Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}
