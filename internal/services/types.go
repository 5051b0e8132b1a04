// Package services provides the handlers the long-lived process serves over
// the request/response channels. It holds no transport code: handlers take
// decoded request data and return plain values or *Error.
package services

import (
	"time"

	"github.com/rescale/bucketdesk/internal/storage"
)

// TransferType identifies whether a transfer is an upload or download.
type TransferType string

const (
	TransferTypeUpload   TransferType = "upload"
	TransferTypeDownload TransferType = "download"
)

// TransferState represents the current state of a transfer.
type TransferState string

const (
	TransferStateQueued    TransferState = "queued"    // Waiting to start
	TransferStateActive    TransferState = "active"    // Actively transferring bytes
	TransferStateCompleted TransferState = "completed" // Successfully completed
	TransferStateFailed    TransferState = "failed"    // Failed with error
	TransferStateCancelled TransferState = "cancelled" // Cancelled by user
)

// Valid reports whether s is one of the known states.
func (s TransferState) Valid() bool {
	switch s {
	case TransferStateQueued, TransferStateActive, TransferStateCompleted, TransferStateFailed, TransferStateCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if the state is completed, failed, or cancelled.
func (s TransferState) IsTerminal() bool {
	return s == TransferStateCompleted || s == TransferStateFailed || s == TransferStateCancelled
}

// Transfer is one upload or download record.
type Transfer struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Key        string        `json:"key,omitempty"`
	Type       TransferType  `json:"type"`
	Size       int64         `json:"size"`
	State      TransferState `json:"state"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
}

// Done reports whether the transfer reached a terminal state.
func (t Transfer) Done() bool {
	return t.State.IsTerminal()
}

// AppNameRequest is the request data of delete-app and init-app.
type AppNameRequest struct {
	Name string `json:"name"`
}

// BucketRequest is the request data of switch-bucket.
type BucketRequest struct {
	Bucket string `json:"bucket"`
}

// MarkdownRequest is the request data of set-markdown.
type MarkdownRequest struct {
	Enabled bool `json:"enabled"`
}

// AddTransferRequest is the request data of add-transfer.
type AddTransferRequest struct {
	Name string       `json:"name"`
	Key  string       `json:"key,omitempty"`
	Type TransferType `json:"type"`
	Size int64        `json:"size"`
}

// UpdateTransferRequest is the request data of update-transfer.
type UpdateTransferRequest struct {
	ID    string        `json:"id"`
	State TransferState `json:"state"`
	Error string        `json:"error,omitempty"`
}

// RecentLinksRequest is the request data of get-recent-links. Count <= 0
// means constants.RecentTransferCount.
type RecentLinksRequest struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count,omitempty"`
}

// TransferQuery is the request data of get-transfer.
type TransferQuery struct {
	Done bool `json:"done"`
}

// BucketListing is the result of switch-bucket: the flat key listing the
// initiating side builds its tree from.
type BucketListing struct {
	Bucket  string           `json:"bucket"`
	Files   []storage.Object `json:"files"`
	Domains []string         `json:"domains"`
}

// ConfigView is the result of get-config and set-markdown.
type ConfigView struct {
	Current            string `json:"current"`
	Markdown           bool   `json:"markdown"`
	CallTimeoutSeconds int    `json:"callTimeoutSeconds"`
}

// DeleteResult is the result of delete-app.
type DeleteResult struct {
	Deleted string `json:"deleted"`
}

// ClearResult is the result of clear-transfer-done-list.
type ClearResult struct {
	Removed int `json:"removed"`
}
