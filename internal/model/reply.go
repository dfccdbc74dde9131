package model

type MessageKind string

const (
	MessageDocumentAnswer MessageKind = "document_answer"
	MessageWebAnswer      MessageKind = "web_answer"
	MessageMathResult     MessageKind = "math_result"
	MessagePriceQuote     MessageKind = "price_quote"
	MessageAdvice         MessageKind = "advice"
	MessageInfo           MessageKind = "info"
	MessageWarning        MessageKind = "warning"
	MessageError          MessageKind = "error"
)

type Message struct {
	Kind    MessageKind `json:"kind"`
	Title   string      `json:"title,omitempty"`
	Text    string      `json:"text"`
	Sources []string    `json:"sources,omitempty"`
	// SourceTitles are the page titles of Sources, when known.
	SourceTitles []string `json:"source_titles,omitempty"`
	Retryable    bool     `json:"retryable,omitempty"`
}

// Reply is everything a single router invocation produced.
type Reply struct {
	SessionID       string     `json:"session_id"`
	State           RouteState `json:"state"`
	Category        Category   `json:"category,omitempty"`
	PendingQuery    string     `json:"pending_query,omitempty"`
	Messages        []Message  `json:"messages"`
	AwaitingConsent bool       `json:"awaiting_consent"`
	ConsentPrompt   string     `json:"consent_prompt,omitempty"`
}
