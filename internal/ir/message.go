package ir

import "fmt"

// Kind distinguishes message kinds on the channel.
type Kind uint8

const (
	// KindDone announces that the sender's local queues are empty.
	KindDone Kind = iota + 1
	// KindDatasetRequest asks the owner of Key for its payload.
	KindDatasetRequest
	// KindDatasetPayload carries the payload of Key.
	KindDatasetPayload
	// KindHello identifies the dialing rank on a stream transport.
	// It never reaches the engine.
	KindHello
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindDone:
		return "done"
	case KindDatasetRequest:
		return "dataset_request"
	case KindDatasetPayload:
		return "dataset_payload"
	case KindHello:
		return "hello"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a wire name back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "done":
		return KindDone, nil
	case "dataset_request":
		return KindDatasetRequest, nil
	case "dataset_payload":
		return KindDatasetPayload, nil
	case "hello":
		return KindHello, nil
	}
	return 0, fmt.Errorf("unknown message kind %q", s)
}

// Message is one unit on the message channel.
// Key is meaningful for dataset requests and payloads only; Data only for payloads.
type Message struct {
	Kind Kind
	From int
	To   int
	Key  DomainKey
	Data Payload
}

// NewDone builds a Done message.
func NewDone(from, to int) Message {
	return Message{Kind: KindDone, From: from, To: to}
}

// NewDatasetRequest builds a DatasetRequest message.
func NewDatasetRequest(from, to int, key DomainKey) Message {
	return Message{Kind: KindDatasetRequest, From: from, To: to, Key: key}
}

// NewDatasetPayload builds a DatasetPayload message.
// An empty data slice tells the requester the domain could not be loaded.
func NewDatasetPayload(from, to int, key DomainKey, data Payload) Message {
	return Message{Kind: KindDatasetPayload, From: from, To: to, Key: key, Data: data}
}

// String renders the message for logs without its payload bytes.
func (m Message) String() string {
	switch m.Kind {
	case KindDatasetRequest:
		return fmt.Sprintf("%s{%s} %d->%d", m.Kind, m.Key, m.From, m.To)
	case KindDatasetPayload:
		return fmt.Sprintf("%s{%s,%dB} %d->%d", m.Kind, m.Key, len(m.Data), m.From, m.To)
	default:
		return fmt.Sprintf("%s %d->%d", m.Kind, m.From, m.To)
	}
}
