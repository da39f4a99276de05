// Package types contains the data model shared by the crawlers, the
// classification pipeline, and the stores.
package types

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies which family of municipal sources a candidate or
// crawl job belongs to.
type SourceType string

const (
	SourceRIS       SourceType = "ris"
	SourceAmtsblatt SourceType = "amtsblatt"
	SourceMunicipal SourceType = "municipal_website"
)

// AllSourceTypes lists every source family a municipality is crawled under.
var AllSourceTypes = []SourceType{SourceRIS, SourceAmtsblatt, SourceMunicipal}

// CandidateStatus is the lifecycle state of a discovered candidate.
type CandidateStatus string

const (
	CandidateNew      CandidateStatus = "NEW"
	CandidateEnqueued CandidateStatus = "ENQUEUED"
	CandidateSkipped  CandidateStatus = "SKIPPED"
	CandidateDone     CandidateStatus = "DONE"
	CandidateError    CandidateStatus = "ERROR"
)

// ProcedureType tags what kind of planning or permitting step a procedure
// documents.
type ProcedureType string

const (
	PermitBauvorbescheid ProcedureType = "PERMIT_BAUVORBESCHEID"
	PermitBaugenehmigung ProcedureType = "PERMIT_BAUGENEHMIGUNG"
	Permit36Einvernehmen ProcedureType = "PERMIT_36_EINVERNEHMEN"
	PermitOther          ProcedureType = "PERMIT_OTHER"
	BPlanAufstellung     ProcedureType = "BPLAN_AUFSTELLUNG"
	BPlanFruehzeitig31   ProcedureType = "BPLAN_FRUEHZEITIG_3_1"
	BPlanAuslegung32     ProcedureType = "BPLAN_AUSLEGUNG_3_2"
	BPlanSatzung         ProcedureType = "BPLAN_SATZUNG"
	BPlanOther           ProcedureType = "BPLAN_OTHER"
	ProcedureTypeUnknown ProcedureType = "UNKNOWN"
)

// LegalBasis is the legal foundation of the procedure under the BauGB.
type LegalBasis string

const (
	LegalBasis35      LegalBasis = "§ 35 BauGB"
	LegalBasis34      LegalBasis = "§ 34 BauGB"
	LegalBasis36      LegalBasis = "§ 36 BauGB"
	LegalBasisUnknown LegalBasis = "unknown"
)

// Components describes what the project combines with the storage system.
type Components string

const (
	ComponentsPVBESS   Components = "PV+BESS"
	ComponentsWindBESS Components = "WIND+BESS"
	ComponentsBESSOnly Components = "BESS_ONLY"
	ComponentsUnclear  Components = "OTHER/UNCLEAR"
)

// MaturityStage orders projects by how far along the planning process they
// are. Later stages take precedence when procedures are merged into a
// project.
type MaturityStage string

const (
	MaturityBaugenehmigung   MaturityStage = "BAUGENEHMIGUNG"
	MaturityBauvorbescheid   MaturityStage = "BAUVORBESCHEID"
	MaturityPermit36         MaturityStage = "PERMIT_36"
	MaturityBPlanSatzung     MaturityStage = "BPLAN_SATZUNG"
	MaturityBPlanAuslegung   MaturityStage = "BPLAN_AUSLEGUNG"
	MaturityBPlanAufstellung MaturityStage = "BPLAN_AUFSTELLUNG"
	MaturityDiscovered       MaturityStage = "DISCOVERED"
)

// Municipality is one administrative unit to crawl.
type Municipality struct {
	ID              int64
	Name            string
	Key             string
	State           string
	District        string
	Population      int64
	OfficialWebsite string
	RISURL          string
	AmtsblattURL    string
	LastCrawledAt   *time.Time
}

// Candidate is a URL discovered by a crawler that may document a relevant
// procedure. Candidates are persisted before the prefilter decides whether
// an extraction job is worth enqueuing.
type Candidate struct {
	ID              int64
	RunID           string
	MunicipalityKey string
	SourceType      SourceType
	URL             string
	Title           string
	DetectedAt      time.Time
	PrefilterScore  float64
	Status          CandidateStatus
	StatusReason    string
}

// Procedure is one classified planning or permitting step.
type Procedure struct {
	ID                uuid.UUID
	MunicipalityKey   string
	Title             string
	ProcedureType     ProcedureType
	LegalBasis        LegalBasis
	Components        Components
	CapacityMW        *float64
	CapacityMWH       *float64
	AreaHA            *float64
	DecisionDate      *time.Time
	Developer         string
	Location          string
	Confidence        float64
	ReviewRecommended bool
	AmbiguityFlag     bool
	EvidenceSnippets  []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Source records where a procedure (or rejected candidate) was fetched from.
// ProcedureID is nil for pages the container gate rejected.
type Source struct {
	ID            int64
	ProcedureID   *uuid.UUID
	CandidateID   int64
	URL           string
	SourceType    SourceType
	FetchedAt     time.Time
	HTTPStatus    int
	ContentSHA256 string
}

// Document is a fetched file, stored content-addressed on disk.
type Document struct {
	SHA256        string
	URL           string
	ContentType   string
	SizeBytes     int64
	StoragePath   string
	TextExtracted bool
	PageCount     int
	FetchedAt     time.Time
}

// ProjectEntity is the rolled-up view of all procedures that concern the
// same physical storage project.
type ProjectEntity struct {
	ID               uuid.UUID
	MunicipalityKey  string
	CanonicalName    string
	PlanToken        string
	SiteLocationBest string
	DeveloperBest    string
	CapacityMWBest   *float64
	CapacityMWHBest  *float64
	AreaHABest       *float64
	LegalBasisBest   LegalBasis
	MaturityStage    MaturityStage
	FirstSeen        time.Time
	LastSeen         time.Time
	MaxConfidence    float64
	NeedsReview      bool
}

// ProjectLink connects a procedure to the project it was resolved into.
type ProjectLink struct {
	ProjectID   uuid.UUID
	ProcedureID uuid.UUID
	MatchRule   string
	MatchScore  float64
}

// JobStatus summarizes the outcome of one crawl job.
type JobStatus string

const (
	JobDone         JobStatus = "DONE"
	JobErrorSSL     JobStatus = "ERROR_SSL"
	JobErrorNetwork JobStatus = "ERROR_NETWORK"
	JobErrorOther   JobStatus = "ERROR_OTHER"
)

// CrawlCounts are the per-job volume counters.
type CrawlCounts struct {
	PagesFetched       int64 `json:"pages_fetched"`
	PDFsDownloaded     int64 `json:"pdfs_downloaded"`
	PDFsSkipped        int64 `json:"pdfs_skipped"`
	CandidatesFound    int64 `json:"candidates_found"`
	CandidatesEnqueued int64 `json:"candidates_enqueued"`
	CandidatesSkipped  int64 `json:"candidates_skipped"`
	ProceduresSaved    int64 `json:"procedures_saved"`
	ProceduresSkipped  int64 `json:"procedures_skipped"`
}

// CrawlTimings are the per-job phase durations in milliseconds.
type CrawlTimings struct {
	FetchHTMLMs  int64 `json:"fetch_html_ms"`
	FetchPDFMs   int64 `json:"fetch_pdf_ms"`
	ExtractPDFMs int64 `json:"extract_pdf_ms"`
	ClassifyMs   int64 `json:"classify_ms"`
	DBWriteMs    int64 `json:"db_write_ms"`
	TotalMs      int64 `json:"total_ms"`
}

// CrawlStats is one row of per-job bookkeeping used by the scheduler and by
// the municipality summaries.
type CrawlStats struct {
	RunID           string
	MunicipalityKey string
	SourceType      SourceType
	JobStatus       JobStatus
	Counts          CrawlCounts
	Timings         CrawlTimings
	ErrorClass      string
	CreatedAt       time.Time
}

// DiscoveryJob asks a worker to crawl one source family of a municipality.
type DiscoveryJob struct {
	RunID            string     `json:"run_id"`
	MunicipalityKey  string     `json:"municipality_key"`
	MunicipalityName string     `json:"municipality_name"`
	SourceType       SourceType `json:"source_type"`
	EntrypointURL    string     `json:"entrypoint_url,omitempty"`
}

// ExtractionJob asks a worker to extract and classify one candidate. A queue
// payload with a nonzero CandidateID is an extraction job; anything else is a
// discovery job.
type ExtractionJob struct {
	RunID           string `json:"run_id"`
	CandidateID     int64  `json:"candidate_id"`
	MunicipalityKey string `json:"municipality_key"`
}
