package contract

type Privilege string

const (
	PrivilegeStandard Privilege = "standard"
	PrivilegeElevated Privilege = "elevated"
)

// Allows reports whether a caller holding p may run a tool that requires required.
func (p Privilege) Allows(required Privilege) bool {
	if required != PrivilegeElevated {
		return true
	}
	return p == PrivilegeElevated
}

// CallerContext is what the boundary knows about the current request.
// Text is the raw inbound message; CallerID is the channel address when known.
type CallerContext struct {
	Text     string `json:"text,omitempty"`
	CallerID string `json:"caller_id,omitempty"`
}

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the only shape that crosses the dispatcher boundary.
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`

	Kind ErrorKind `json:"-"`
}

func Success(data any) Envelope {
	return Envelope{Status: StatusSuccess, Data: data}
}

func Failure(err error) Envelope {
	return Envelope{
		Status:  StatusError,
		Message: PublicMessage(err),
		Kind:    KindOf(err),
	}
}

func (e Envelope) OK() bool {
	return e.Status == StatusSuccess
}
