package server

import "time"

type PromptRequest struct {
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream,omitempty"`
}

type PromptResponse struct {
	ID        string `json:"id"`
	Session   string `json:"session"`
	Model     string `json:"model"`
	Text      string `json:"text"`
	Reasoning string `json:"reasoning,omitempty"`
	Truncated bool   `json:"truncated"`
}

type SessionInfo struct {
	Key     string    `json:"key"`
	ID      string    `json:"id"`
	Model   string    `json:"model,omitempty"`
	SavedAt time.Time `json:"saved_at"`
	Size    int64     `json:"size"`
}

type SessionList struct {
	Object string        `json:"object"`
	Data   []SessionInfo `json:"data"`
}

type tokenEvent struct {
	Text string `json:"text"`
}
