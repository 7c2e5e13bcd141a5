// Package upload pushes turn attachments to the file endpoint, applying the
// same refresh-once recovery as chat submission and a content-hash cache so
// identical files are not uploaded twice.
package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/OctoberEnd/chatbox/internal/auth"
	"github.com/OctoberEnd/chatbox/internal/chat"
	"github.com/OctoberEnd/chatbox/internal/coze"
	"github.com/OctoberEnd/chatbox/internal/storage"
)

// maxConcurrentUploads bounds the fan-out of UploadAll.
const maxConcurrentUploads = 4

// Cache is the dedup cache, implemented by *storage.Store.
type Cache interface {
	LookupUpload(sha string) (storage.UploadRecord, error)
	RecordUpload(storage.UploadRecord) error
}

// Uploader uploads attachments and drives their status transitions.
type Uploader struct {
	client *coze.Client
	creds  *auth.Manager
	cache  Cache
}

// New creates an Uploader. cache may be nil to disable deduplication.
func New(client *coze.Client, creds *auth.Manager, cache Cache) *Uploader {
	return &Uploader{client: client, creds: creds, cache: cache}
}

// Upload uploads one attachment. On success the attachment moves to
// uploaded with its server file id recorded; on failure it moves to failed
// with the error kept on the attachment. The returned error mirrors the
// attachment state for callers that want it.
func (u *Uploader) Upload(ctx context.Context, att *chat.Attachment) error {
	att.Status = chat.StatusUploading
	fileID, err := u.upload(ctx, att)
	if err != nil {
		att.Status = chat.StatusFailed
		att.Err = err.Error()
		return err
	}
	att.FileID = fileID
	att.Status = chat.StatusUploaded
	att.Err = ""
	return nil
}

// UploadAll uploads every non-uploaded attachment concurrently. A failed
// attachment never aborts its siblings; the turn is sent with whatever
// reached uploaded status.
func (u *Uploader) UploadAll(ctx context.Context, atts []*chat.Attachment) {
	var g errgroup.Group
	g.SetLimit(maxConcurrentUploads)
	for _, att := range atts {
		g.Go(func() error {
			if att.Status == chat.StatusUploaded {
				return nil
			}
			if err := u.Upload(ctx, att); err != nil {
				slog.Debug("attachment upload failed", "name", att.Name, "error", err)
			}
			return nil
		})
	}
	g.Wait()
}

func (u *Uploader) upload(ctx context.Context, att *chat.Attachment) (string, error) {
	data, err := os.ReadFile(att.Path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", att.Name, err)
	}

	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])
	if u.cache != nil {
		if rec, err := u.cache.LookupUpload(sha); err == nil {
			slog.Debug("upload cache hit", "name", att.Name, "file_id", rec.FileID)
			return rec.FileID, nil
		}
	}

	res, err := u.client.UploadFile(ctx, att.Name, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	if res.Code == coze.CodeUploadAuthExpired {
		// Same recovery as chat submission: refresh once, replay the same
		// upload. A second failure is terminal.
		if err := u.creds.Refresh(ctx); err != nil {
			return "", err
		}
		res, err = u.client.UploadFile(ctx, att.Name, bytes.NewReader(data))
		if err != nil {
			return "", err
		}
	}
	if res.Code != coze.CodeOK {
		if res.Msg != "" {
			return "", errors.New(res.Msg)
		}
		return "", errors.New("upload failed")
	}

	if u.cache != nil {
		if err := u.cache.RecordUpload(storage.UploadRecord{
			SHA256: sha,
			FileID: res.FileID,
			Name:   att.Name,
			Size:   int64(len(data)),
		}); err != nil {
			slog.Warn("recording upload in cache", "error", err)
		}
	}
	return res.FileID, nil
}
