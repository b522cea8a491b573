package scrape

// MessageType identifies a worker message.
type MessageType string

const (
	// MessageProgress carries cumulative counters after each item.
	MessageProgress MessageType = "progress"
	// MessageDone is the clean terminal message.
	MessageDone MessageType = "done"
	// MessageError is the fatal terminal message.
	MessageError MessageType = "error"
)

// Message is the only channel between a worker and the orchestrator. Counters
// are cumulative for the worker's run.
type Message struct {
	Type    MessageType `json:"type"`
	Success int         `json:"success"`
	Failure int         `json:"failure"`
	Error   string      `json:"error,omitempty"`
}

// Terminal reports whether the message ends the worker's reporting.
func (m Message) Terminal() bool {
	return m.Type == MessageDone || m.Type == MessageError
}

// Emit delivers a message to whoever supervises the worker.
type Emit func(Message)

// ProgressMessage builds a progress message.
func ProgressMessage(success, failure int) Message {
	return Message{Type: MessageProgress, Success: success, Failure: failure}
}

// DoneMessage builds the clean terminal message.
func DoneMessage(success, failure int) Message {
	return Message{Type: MessageDone, Success: success, Failure: failure}
}

// ErrorMessage builds the fatal terminal message.
func ErrorMessage(err error) Message {
	text := "worker failed"
	if err != nil {
		text = err.Error()
	}
	return Message{Type: MessageError, Error: text}
}
