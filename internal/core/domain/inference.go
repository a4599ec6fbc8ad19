package domain

// PromptPayload is a model-ready request. Built once per file and sent once.
type PromptPayload struct {
	Model       string  `json:"model"`
	System      string  `json:"system"`
	User        string  `json:"user"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Truncated   bool    `json:"truncated"`
}

type TokenUsage struct {
	Prompt     int `json:"prompt_tokens"`
	Completion int `json:"completion_tokens"`
	Total      int `json:"total_tokens"`
}

func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		Prompt:     u.Prompt + other.Prompt,
		Completion: u.Completion + other.Completion,
		Total:      u.Total + other.Total,
	}
}

// InferenceResult is the raw outcome of one completion call.
type InferenceResult struct {
	Success      bool       `json:"success"`
	Text         string     `json:"text,omitempty"`
	Usage        TokenUsage `json:"usage"`
	Model        string     `json:"model,omitempty"`
	FinishReason string     `json:"finish_reason,omitempty"`
	ErrorKind    ErrorKind  `json:"error_kind,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

func FailedInference(kind ErrorKind, message string) InferenceResult {
	return InferenceResult{
		Success:      false,
		ErrorKind:    kind,
		ErrorMessage: message,
	}
}
