package coze

import "encoding/json"

// Content types for additional_messages entries.
const (
	ContentTypeText         = "text"
	ContentTypeObjectString = "object_string"
)

// Business codes returned in response envelopes.
const (
	CodeOK                = 0
	CodeAuthExpired       = 4100
	CodeUploadAuthExpired = 700012006
)

// Message types in the message-list response and stream events.
const (
	MessageTypeAnswer   = "answer"
	MessageTypeFollowUp = "follow_up"
)

// Chat lifecycle statuses reported by the retrieve endpoint.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Message is one entry in additional_messages on the chat submit call.
type Message struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
}

// ContentPart is one element of an object_string content array.
type ContentPart struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	FileID string `json:"file_id,omitempty"`
}

// EncodeContent serializes message text and uploaded attachment ids into the
// wire content form: a JSON array of typed parts. The content type is "text"
// when the message carries text only, "object_string" once any file or image
// part is present.
func EncodeContent(text string, fileIDs, imageIDs []string) (content, contentType string, err error) {
	var parts []ContentPart
	contentType = ContentTypeText
	if text != "" {
		parts = append(parts, ContentPart{Type: "text", Text: text})
	}
	for _, id := range fileIDs {
		parts = append(parts, ContentPart{Type: "file", FileID: id})
	}
	for _, id := range imageIDs {
		parts = append(parts, ContentPart{Type: "image", FileID: id})
	}
	if len(fileIDs) > 0 || len(imageIDs) > 0 {
		contentType = ContentTypeObjectString
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return "", "", err
	}
	return string(data), contentType, nil
}

// ChatRequest is the POST /v3/chat body.
type ChatRequest struct {
	BotID              string    `json:"bot_id"`
	UserID             string    `json:"user_id"`
	Stream             bool      `json:"stream"`
	AutoSaveHistory    bool      `json:"auto_save_history"`
	AdditionalMessages []Message `json:"additional_messages"`
}

// ChatData identifies the conversation and turn created by a submit call.
type ChatData struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status,omitempty"`
}

// RetrieveResult is the decoded GET /v3/chat/retrieve envelope.
type RetrieveResult struct {
	Code   int
	Msg    string
	Status string
}

// MessageItem is one entry of the message-list response.
type MessageItem struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// MessageListResult is the decoded GET /v3/chat/message/list envelope.
type MessageListResult struct {
	Code  int
	Msg   string
	Items []MessageItem
}

// UploadResult is the decoded POST /v1/files/upload envelope.
type UploadResult struct {
	Code   int
	Msg    string
	FileID string
}

// TokenPair is a successful response from the OAuth token endpoint.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
