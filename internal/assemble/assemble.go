// Package assemble turns parsed tender snapshots into typed records. There is
// one assembler per tab; each reads its page through extraction tables and
// normalizes the values it finds.
package assemble

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/tender-ingest/internal/extract"
	"github.com/jonathan/tender-ingest/internal/normalize"
	"github.com/jonathan/tender-ingest/internal/snapshot"
	"github.com/jonathan/tender-ingest/internal/types"
)

// DefaultBaseURL is the portal root relative document links resolve against.
const DefaultBaseURL = "https://tenders.procurement.gov.ge/public/"

// ErrUnrecognizedShape marks a page none of the known layouts match.
var ErrUnrecognizedShape = errors.New("unrecognized document shape")

// ShapeError reports a snapshot whose markup matches no known layout.
type ShapeError struct {
	File    string
	Tab     snapshot.Tab
	Message string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("unrecognized document shape in %s (%s): %s", e.File, e.Tab, e.Message)
}

func (e *ShapeError) Unwrap() error {
	return ErrUnrecognizedShape
}

// Options configures an Assembler.
type Options struct {
	BaseURL string
	CPVCode string
}

// Assembler builds records from snapshots.
type Assembler struct {
	norm    *normalize.Normalizer
	logger  *zap.Logger
	baseURL *url.URL
	cpv     string
}

// New creates an Assembler. A nil logger discards output.
func New(logger *zap.Logger, opts *Options) (*Assembler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts == nil {
		opts = &Options{}
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", base)
	}
	return &Assembler{
		norm:    normalize.New(logger),
		logger:  logger,
		baseURL: u,
		cpv:     opts.CPVCode,
	}, nil
}

// Output holds whatever one snapshot produced. Exactly one of the record
// fields is set, matching the snapshot's tab.
type Output struct {
	Snapshot  snapshot.Snapshot
	Tender    *types.Tender
	Documents *types.DocumentIndex
	Bids      *types.BidTable
	Agency    *types.AgencyDocs
	Contract  *types.ContractBundle
}

// AssembleFile loads a snapshot from disk and assembles it.
func (a *Assembler) AssembleFile(s snapshot.Snapshot) (*Output, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return a.Assemble(s, doc)
}

// Assemble dispatches to the assembler for the snapshot's tab.
func (a *Assembler) Assemble(s snapshot.Snapshot, doc *extract.Document) (*Output, error) {
	out := &Output{Snapshot: s}
	var err error
	switch s.Tab {
	case snapshot.TabMain:
		out.Tender = a.Tender(s, doc)
	case snapshot.TabDocs:
		out.Documents, err = a.DocumentIndex(s, doc)
	case snapshot.TabBids:
		out.Bids = a.Bids(s, doc)
	case snapshot.TabAgencyDocs:
		out.Agency, err = a.AgencyDocs(s, doc)
	case snapshot.TabContract:
		out.Contract = a.Contract(s, doc)
	default:
		err = &ShapeError{File: s.Name(), Tab: s.Tab, Message: "no assembler for tab"}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// resolve makes href absolute against the portal base URL.
func (a *Assembler) resolve(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return a.baseURL.String() + strings.TrimPrefix(href, "/")
	}
	return a.baseURL.ResolveReference(ref).String()
}

func (a *Assembler) fileLogger(s snapshot.Snapshot) *zap.Logger {
	return a.logger.With(zap.String("file", s.Name()), zap.Int64("application_id", s.ApplicationID))
}

// splitMeta splits "left :: right" text. Either side may be empty.
func splitMeta(text, sep string) (string, string) {
	left, right, found := strings.Cut(text, sep)
	if !found {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(left), strings.TrimSpace(right)
}

// dateAndPerson splits "person :: date" or "date :: person" into its parts.
func (a *Assembler) dateAndPerson(text string) (date, person string) {
	left, right := splitMeta(text, "::")
	if d, ok := a.norm.ParseDateTime(left); ok {
		return d, right
	}
	if d, ok := a.norm.ParseDateTime(right); ok {
		return d, left
	}
	return "", normalize.CleanText(left + " " + right)
}
