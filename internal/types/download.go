//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// TaskState is the lifecycle state of a DownloadTask.
type TaskState string

// Task states
const (
	TaskStatePending    TaskState = "pending"
	TaskStateDownloaded TaskState = "downloaded"
	TaskStateFailed     TaskState = "failed"
)

// Task kinds, one per document index a task originates from.
const (
	TaskKindTenderDoc = "tender_doc"
	TaskKindAgencyDoc = "agency_doc"
	TaskKindContract  = "contract_doc"
)

// DownloadTask is a file scheduled for retrieval. OwnerID is the application
// id of the tender the file belongs to; SourceURL is unique.
type DownloadTask struct {
	ID           int64      `json:"id"`
	OwnerID      int64      `json:"owner_id"`
	Kind         string     `json:"kind"`
	SourceURL    string     `json:"source_url"`
	OriginalName string     `json:"original_name,omitempty"`
	CPVCode      string     `json:"cpv_code,omitempty"`
	State        TaskState  `json:"state"`
	LocalPath    string     `json:"local_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// TaskKindForTab maps a document's source tab to the task kind.
func TaskKindForTab(tab string) string {
	switch tab {
	case "agency_docs":
		return TaskKindAgencyDoc
	case "agr_docs":
		return TaskKindContract
	default:
		return TaskKindTenderDoc
	}
}

// NewDownloadTask builds a pending task for a document.
func NewDownloadTask(doc Document, cpv string) DownloadTask {
	return DownloadTask{
		OwnerID:      doc.ApplicationID,
		Kind:         TaskKindForTab(doc.SourceTab),
		SourceURL:    doc.Link,
		OriginalName: doc.Name,
		CPVCode:      cpv,
		State:        TaskStatePending,
	}
}
