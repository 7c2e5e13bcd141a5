// Package chat drives one conversational turn against the service: it
// submits the user's message, assembles the assistant reply from either a
// live event stream or a polled status endpoint, and recovers once from an
// expired credential.
package chat

import (
	"github.com/google/uuid"

	"github.com/OctoberEnd/chatbox/internal/coze"
)

// Roles used in wire messages and replies.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attachment kinds.
const (
	AttachmentFile  = "file"
	AttachmentImage = "image"
)

// UploadStatus tracks an attachment through its upload lifecycle.
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusUploading UploadStatus = "uploading"
	StatusUploaded  UploadStatus = "uploaded"
	StatusFailed    UploadStatus = "failed"
)

// Attachment is one file or image attached to a turn. ID is client-local;
// FileID is issued by the server once the upload succeeds. Status is mutated
// only by the upload component.
type Attachment struct {
	ID     string
	Name   string
	Path   string
	Kind   string
	Status UploadStatus
	FileID string
	Err    string
}

// NewAttachment creates a pending attachment with a fresh client-local id.
func NewAttachment(name, path, kind string) *Attachment {
	return &Attachment{
		ID:     uuid.NewString(),
		Name:   name,
		Path:   path,
		Kind:   kind,
		Status: StatusPending,
	}
}

// Turn is one user contribution: text plus attachments. A Turn is immutable
// once submitted except for attachment upload state.
type Turn struct {
	Text        string
	Attachments []*Attachment
}

// Message serializes the turn into its wire form. Attachments that did not
// reach uploaded status are excluded; a turn may still be sent with a mix of
// uploaded and failed attachments.
func (t *Turn) Message() (coze.Message, error) {
	var fileIDs, imageIDs []string
	for _, a := range t.Attachments {
		if a.Status != StatusUploaded {
			continue
		}
		if a.Kind == AttachmentImage {
			imageIDs = append(imageIDs, a.FileID)
		} else {
			fileIDs = append(fileIDs, a.FileID)
		}
	}
	content, contentType, err := coze.EncodeContent(t.Text, fileIDs, imageIDs)
	if err != nil {
		return coze.Message{}, err
	}
	return coze.Message{Role: RoleUser, Content: content, ContentType: contentType}, nil
}

// Reply is the assistant's answer as it accumulates. Text is append-only
// until the turn reaches a terminal state. Suggestions is non-nil and empty
// while the turn is live ("none yet") and normalized to nil at terminal when
// the turn finished without any ("absent"). Err is set only for terminal
// failures: a cancelled turn ends with its partial text and no error.
type Reply struct {
	Role        string
	Text        string
	Suggestions []string
	Err         string
	Done        bool
}

func (r *Reply) snapshot() Reply {
	out := *r
	if r.Suggestions != nil {
		out.Suggestions = append([]string(nil), r.Suggestions...)
	}
	return out
}

// Session is the in-memory history of the current process: every message
// sent so far plus completed assistant answers. It is never persisted.
type Session struct {
	history []coze.Message
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// History returns a copy of the accumulated messages.
func (s *Session) History() []coze.Message {
	return append([]coze.Message(nil), s.history...)
}

func (s *Session) append(msgs ...coze.Message) {
	s.history = append(s.history, msgs...)
}
