package chat

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one entry of the visible transcript.
type Message struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// UserMessage builds a message authored by the user.
func UserMessage(text string) Message {
	return Message{Text: text, Sender: SenderUser}
}

// BotMessage builds a message authored by the companion.
func BotMessage(text string) Message {
	return Message{Text: text, Sender: SenderBot}
}
