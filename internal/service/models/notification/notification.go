package notification

// Kind identifies the reason for notifying the owner.
type Kind string

const (
	KindNewOrder  Kind = "new_order"
	KindDelivered Kind = "delivered"
	KindReceived  Kind = "received"
)

// Intent is a decided, not yet delivered, owner notification.
type Intent struct {
	Kind    Kind
	Title   string
	Body    string
	Details map[string]any
}

// Message is the multi-channel payload published for an intent.
type Message struct {
	Default string `json:"default"`
	SMS     string `json:"sms"`
	Email   string `json:"email"`
}

// Envelope is the full publish request.
type Envelope struct {
	Destination string  `json:"destination"`
	Subject     string  `json:"subject"`
	Message     Message `json:"message"`
}

// EmailBody is the structured variant embedded as JSON in Message.Email.
type EmailBody struct {
	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Details map[string]any `json:"details"`
}
