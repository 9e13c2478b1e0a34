//nolint:revive // types is a standard Go package name pattern
package types

// MainDocumentationSection is the section id of app_docs file-list entries.
const MainDocumentationSection = "main_documentation"

// Document is a file referenced from one of a tender's document indexes.
// (ApplicationID, SourceTab, DocIndex) identifies it.
type Document struct {
	ApplicationID int64  `json:"application_id"`
	SourceTab     string `json:"source_tab"`
	DocIndex      int    `json:"doc_index"`
	SectionID     string `json:"section_id,omitempty"`
	Name          string `json:"name"`
	Link          string `json:"link"`
	UploadedAt    string `json:"uploaded_at,omitempty"`
	Author        string `json:"author,omitempty"`
	FileType      string `json:"file_type,omitempty"`
	Obsolete      bool   `json:"obsolete,omitempty"`
}

// DocSection is a question/answer section of the app_docs tab.
type DocSection struct {
	ApplicationID int64  `json:"application_id"`
	SectionID     string `json:"section_id"`
	Title         string `json:"title"`
	Body          string `json:"body"`
}

// DocumentIndex is the result of assembling an app_docs page.
type DocumentIndex struct {
	Layout    string       `json:"layout"`
	Sections  []DocSection `json:"sections,omitempty"`
	Documents []Document   `json:"documents"`
}

// Disqualification records a bidder removed from a tender.
type Disqualification struct {
	ApplicationID int64  `json:"application_id"`
	CompanyName   string `json:"company_name"`
	Date          string `json:"date"`
	Reason        string `json:"reason,omitempty"`
}

// AgencyDocs is the result of assembling an agency_docs page.
type AgencyDocs struct {
	Documents         []Document         `json:"documents"`
	Disqualifications []Disqualification `json:"disqualifications,omitempty"`
}
