package chat

// Role tags the speaker of a Turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the conversation. Treat it as immutable.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// UserTurn wraps a question.
func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

// AssistantTurn wraps an answer.
func AssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Text: text}
}

// Transcript is the ordered history of one session, oldest first.
// It only ever grows by complete user/assistant exchanges.
type Transcript []Turn

// WithExchange returns a new transcript with the question and its answer appended,
// in that order. The receiver is left untouched.
func (t Transcript) WithExchange(question, answer string) Transcript {
	out := make(Transcript, len(t), len(t)+2)
	copy(out, t)
	return append(out, UserTurn(question), AssistantTurn(answer))
}

// Clone returns an independent copy.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return Transcript{}
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}

// Len 返回轮次数量。
func (t Transcript) Len() int {
	return len(t)
}

// Last returns the most recent turn, if any.
func (t Transcript) Last() (Turn, bool) {
	if len(t) == 0 {
		return Turn{}, false
	}
	return t[len(t)-1], true
}
