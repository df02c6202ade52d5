package messaging

import "context"

// Sender delivers one part of a segmented SMS to its downstream channel.
// Parts of a message are handed over in order, one call each.
type Sender interface {
	Send(ctx context.Context, part *OutgoingPart) error
	Name() string
}

// OutgoingPart is a single part ready to go over the wire.
type OutgoingPart struct {
	SmsID string
	From  string
	To    string
	Index int
	Total int
	Text  string
}
