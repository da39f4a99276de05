// Package store is the Postgres persistence layer: candidates, procedures,
// sources, documents, project entities, and crawl stats.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/witto13/BESS-Crawler/bess/go/types"
	"github.com/witto13/BESS-Crawler/go/skerr"
	"github.com/witto13/BESS-Crawler/go/sql/pool"
)

// Store wraps the connection pool with the crawler's queries.
type Store struct {
	db pool.Pool
}

// New connects to the database and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, skerr.Wrapf(err, "parsing database config")
	}
	db, err := pgxpool.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, skerr.Wrapf(err, "connecting to database")
	}
	s := &Store{db: db}
	if _, err := db.Exec(ctx, Schema); err != nil {
		return nil, skerr.Wrapf(err, "applying schema")
	}
	return s, nil
}

// NewForPool returns a Store on an existing pool. Used by tests.
func NewForPool(db pool.Pool) *Store {
	return &Store{db: db}
}

// Close shuts down the pool.
func (s *Store) Close() {
	s.db.Close()
}

// InsertCandidate inserts a candidate and returns its ID. Re-discovering a
// known URL updates the title and returns the existing row, preserving its
// status.
func (s *Store) InsertCandidate(ctx context.Context, c *types.Candidate) (int64, error) {
	const stmt = `
		INSERT INTO candidates (run_id, municipality_key, source_type, url, title, detected_at, prefilter_score, status, status_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (municipality_key, source_type, url) DO UPDATE SET title = excluded.title
		RETURNING id`
	var id int64
	if err := s.db.QueryRow(ctx, stmt, c.RunID, c.MunicipalityKey, string(c.SourceType), c.URL, c.Title, c.DetectedAt, c.PrefilterScore, string(c.Status), c.StatusReason).Scan(&id); err != nil {
		return 0, skerr.Wrapf(err, "inserting candidate %s", c.URL)
	}
	return id, nil
}

// GetCandidate loads one candidate by ID.
func (s *Store) GetCandidate(ctx context.Context, id int64) (*types.Candidate, error) {
	const stmt = `
		SELECT id, run_id, municipality_key, source_type, url, title, detected_at, prefilter_score, status, status_reason
		FROM candidates WHERE id = $1`
	c := types.Candidate{}
	var sourceType, status string
	if err := s.db.QueryRow(ctx, stmt, id).Scan(&c.ID, &c.RunID, &c.MunicipalityKey, &sourceType, &c.URL, &c.Title, &c.DetectedAt, &c.PrefilterScore, &status, &c.StatusReason); err != nil {
		return nil, skerr.Wrapf(err, "loading candidate %d", id)
	}
	c.SourceType = types.SourceType(sourceType)
	c.Status = types.CandidateStatus(status)
	return &c, nil
}

const candidateStatusStmt = `
	UPDATE candidates SET status = $2, status_reason = COALESCE(NULLIF($3, ''), status_reason)
	WHERE id = $1`

// UpdateCandidateStatus sets a candidate's status. An empty reason keeps
// the existing one.
func (s *Store) UpdateCandidateStatus(ctx context.Context, id int64, status types.CandidateStatus, reason string) error {
	if _, err := s.db.Exec(ctx, candidateStatusStmt, id, string(status), reason); err != nil {
		return skerr.Wrapf(err, "updating candidate %d to %s", id, status)
	}
	return nil
}

func upsertProcedure(ctx context.Context, tx pgx.Tx, p *types.Procedure) error {
	const stmt = `
		INSERT INTO procedures (id, municipality_key, title, procedure_type, legal_basis, components,
			capacity_mw, capacity_mwh, area_hectares, decision_date, developer_company, site_location_raw,
			confidence_score, review_recommended, ambiguity_flag, evidence_snippets, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			procedure_type = excluded.procedure_type,
			legal_basis = excluded.legal_basis,
			components = excluded.components,
			capacity_mw = excluded.capacity_mw,
			capacity_mwh = excluded.capacity_mwh,
			area_hectares = excluded.area_hectares,
			decision_date = excluded.decision_date,
			developer_company = excluded.developer_company,
			site_location_raw = excluded.site_location_raw,
			confidence_score = excluded.confidence_score,
			review_recommended = excluded.review_recommended,
			ambiguity_flag = excluded.ambiguity_flag,
			evidence_snippets = excluded.evidence_snippets,
			updated_at = now()`
	snippets := p.EvidenceSnippets
	if snippets == nil {
		snippets = []string{}
	}
	_, err := tx.Exec(ctx, stmt, p.ID, p.MunicipalityKey, p.Title, string(p.ProcedureType), string(p.LegalBasis), string(p.Components),
		p.CapacityMW, p.CapacityMWH, p.AreaHA, p.DecisionDate, p.Developer, p.Location,
		p.Confidence, p.ReviewRecommended, p.AmbiguityFlag, snippets)
	return skerr.Wrapf(err, "upserting procedure %s", p.ID)
}

func insertSource(ctx context.Context, tx pgx.Tx, src *types.Source) error {
	const stmt = `
		INSERT INTO sources (procedure_id, candidate_id, url, source_type, fetched_at, http_status, content_sha256)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (url, content_sha256) DO NOTHING`
	_, err := tx.Exec(ctx, stmt, src.ProcedureID, src.CandidateID, src.URL, string(src.SourceType), src.FetchedAt, src.HTTPStatus, src.ContentSHA256)
	return skerr.Wrapf(err, "inserting source %s", src.URL)
}

func insertDocument(ctx context.Context, tx pgx.Tx, doc *types.Document) error {
	const stmt = `
		INSERT INTO documents (sha256, url, content_type, size_bytes, storage_path, text_extracted, page_count, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sha256) DO NOTHING`
	_, err := tx.Exec(ctx, stmt, doc.SHA256, doc.URL, doc.ContentType, doc.SizeBytes, doc.StoragePath, doc.TextExtracted, doc.PageCount, doc.FetchedAt)
	return skerr.Wrapf(err, "inserting document %s", doc.SHA256)
}

func linkProcedureDocument(ctx context.Context, tx pgx.Tx, procedureID uuid.UUID, sha256 string) error {
	const stmt = `
		INSERT INTO procedure_documents (procedure_id, document_sha256)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`
	_, err := tx.Exec(ctx, stmt, procedureID, sha256)
	return skerr.Wrap(err)
}

// rankMaturity and rankLegalBasis order the enum columns for the monotone
// merge below. array_position is NULL for values outside the list; COALESCE
// ranks those lowest.
const (
	rankMaturity   = `COALESCE(array_position(ARRAY['DISCOVERED','BPLAN_AUFSTELLUNG','BPLAN_AUSLEGUNG','BPLAN_SATZUNG','PERMIT_36','BAUVORBESCHEID','BAUGENEHMIGUNG'], %[1]s.maturity_stage), 0)`
	rankLegalBasis = `COALESCE(array_position(ARRAY['unknown','§ 36 BauGB','§ 34 BauGB','§ 35 BauGB'], %[1]s.legal_basis_best), 0)`
)

// projectEntityUpsert merges a recomputed project row into an existing one.
// legal_basis_best and maturity_stage only ever move up their precedence
// order, so a concurrent writer that saw fewer procedures cannot downgrade
// them.
var projectEntityUpsert = fmt.Sprintf(`
		INSERT INTO project_entities (project_id, municipality_key, canonical_project_name, plan_token,
			site_location_best, developer_company_best, capacity_mw_best, capacity_mwh_best, area_hectares_best,
			legal_basis_best, maturity_stage, first_seen_date, last_seen_date, max_confidence, needs_review)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (project_id) DO UPDATE SET
			canonical_project_name = excluded.canonical_project_name,
			plan_token = CASE WHEN excluded.plan_token <> '' THEN excluded.plan_token ELSE project_entities.plan_token END,
			site_location_best = excluded.site_location_best,
			developer_company_best = excluded.developer_company_best,
			capacity_mw_best = GREATEST(project_entities.capacity_mw_best, excluded.capacity_mw_best),
			capacity_mwh_best = GREATEST(project_entities.capacity_mwh_best, excluded.capacity_mwh_best),
			area_hectares_best = GREATEST(project_entities.area_hectares_best, excluded.area_hectares_best),
			legal_basis_best = CASE WHEN %s > %s THEN excluded.legal_basis_best ELSE project_entities.legal_basis_best END,
			maturity_stage = CASE WHEN %s > %s THEN excluded.maturity_stage ELSE project_entities.maturity_stage END,
			first_seen_date = LEAST(project_entities.first_seen_date, excluded.first_seen_date),
			last_seen_date = GREATEST(project_entities.last_seen_date, excluded.last_seen_date),
			max_confidence = GREATEST(project_entities.max_confidence, excluded.max_confidence),
			needs_review = project_entities.needs_review OR excluded.needs_review`,
	fmt.Sprintf(rankLegalBasis, "excluded"), fmt.Sprintf(rankLegalBasis, "project_entities"),
	fmt.Sprintf(rankMaturity, "excluded"), fmt.Sprintf(rankMaturity, "project_entities"))

func upsertProjectEntity(ctx context.Context, tx pgx.Tx, pe *types.ProjectEntity) error {
	stmt := projectEntityUpsert
	var firstSeen, lastSeen *time.Time
	if !pe.FirstSeen.IsZero() {
		firstSeen = &pe.FirstSeen
	}
	if !pe.LastSeen.IsZero() {
		lastSeen = &pe.LastSeen
	}
	_, err := tx.Exec(ctx, stmt, pe.ID, pe.MunicipalityKey, pe.CanonicalName, pe.PlanToken,
		pe.SiteLocationBest, pe.DeveloperBest, pe.CapacityMWBest, pe.CapacityMWHBest, pe.AreaHABest,
		string(pe.LegalBasisBest), string(pe.MaturityStage), firstSeen, lastSeen, pe.MaxConfidence, pe.NeedsReview)
	return skerr.Wrapf(err, "upserting project %s", pe.ID)
}

func insertProjectLink(ctx context.Context, tx pgx.Tx, link *types.ProjectLink) error {
	const stmt = `
		INSERT INTO project_links (project_id, procedure_id, match_rule, match_score)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, procedure_id) DO UPDATE SET
			match_rule = excluded.match_rule,
			match_score = excluded.match_score`
	_, err := tx.Exec(ctx, stmt, link.ProjectID, link.ProcedureID, link.MatchRule, link.MatchScore)
	return skerr.Wrap(err)
}

// ExtractionResult is everything one extraction job persists atomically.
type ExtractionResult struct {
	CandidateID int64
	Procedure   *types.Procedure
	Source      *types.Source
	Documents   []*types.Document
	Project     *types.ProjectEntity
	Link        *types.ProjectLink
}

// SaveExtractionResult writes the procedure, its source, documents, project
// entity, link, and the candidate's DONE status in one transaction. A reader
// observing the candidate as DONE therefore sees all linked rows.
func (s *Store) SaveExtractionResult(ctx context.Context, res *ExtractionResult) error {
	err := s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := upsertProcedure(ctx, tx, res.Procedure); err != nil {
			return err
		}
		if res.Source != nil {
			if err := insertSource(ctx, tx, res.Source); err != nil {
				return err
			}
		}
		for _, doc := range res.Documents {
			if err := insertDocument(ctx, tx, doc); err != nil {
				return err
			}
			if err := linkProcedureDocument(ctx, tx, res.Procedure.ID, doc.SHA256); err != nil {
				return err
			}
		}
		if res.Project != nil {
			if err := upsertProjectEntity(ctx, tx, res.Project); err != nil {
				return err
			}
		}
		if res.Link != nil {
			if err := insertProjectLink(ctx, tx, res.Link); err != nil {
				return err
			}
		}
		if res.CandidateID != 0 {
			if _, err := tx.Exec(ctx, candidateStatusStmt, res.CandidateID, string(types.CandidateDone), ""); err != nil {
				return skerr.Wrapf(err, "marking candidate %d done", res.CandidateID)
			}
		}
		return nil
	})
	return skerr.Wrap(err)
}

// InsertRejectedSource records a page the container gate rejected, with no
// procedure attached.
func (s *Store) InsertRejectedSource(ctx context.Context, src *types.Source) error {
	err := s.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		return insertSource(ctx, tx, src)
	})
	return skerr.Wrap(err)
}

// ProjectEntities lists the projects of a municipality, for entity
// resolution.
func (s *Store) ProjectEntities(ctx context.Context, municipalityKey string) ([]*types.ProjectEntity, error) {
	const stmt = `
		SELECT project_id, municipality_key, canonical_project_name, plan_token, site_location_best,
			developer_company_best, capacity_mw_best, capacity_mwh_best, area_hectares_best,
			legal_basis_best, maturity_stage, first_seen_date, last_seen_date, max_confidence, needs_review
		FROM project_entities WHERE municipality_key = $1`
	rows, err := s.db.Query(ctx, stmt, municipalityKey)
	if err != nil {
		return nil, skerr.Wrapf(err, "listing projects for %s", municipalityKey)
	}
	defer rows.Close()
	rv := []*types.ProjectEntity{}
	for rows.Next() {
		pe := types.ProjectEntity{}
		var legalBasis, maturity string
		var firstSeen, lastSeen *time.Time
		if err := rows.Scan(&pe.ID, &pe.MunicipalityKey, &pe.CanonicalName, &pe.PlanToken, &pe.SiteLocationBest,
			&pe.DeveloperBest, &pe.CapacityMWBest, &pe.CapacityMWHBest, &pe.AreaHABest,
			&legalBasis, &maturity, &firstSeen, &lastSeen, &pe.MaxConfidence, &pe.NeedsReview); err != nil {
			return nil, skerr.Wrap(err)
		}
		pe.LegalBasisBest = types.LegalBasis(legalBasis)
		pe.MaturityStage = types.MaturityStage(maturity)
		if firstSeen != nil {
			pe.FirstSeen = *firstSeen
		}
		if lastSeen != nil {
			pe.LastSeen = *lastSeen
		}
		rv = append(rv, &pe)
	}
	return rv, skerr.Wrap(rows.Err())
}

// ProceduresForProject loads all procedures linked to a project, for the
// rollup.
func (s *Store) ProceduresForProject(ctx context.Context, projectID uuid.UUID) ([]*types.Procedure, error) {
	const stmt = `
		SELECT p.id, p.municipality_key, p.title, p.procedure_type, p.legal_basis, p.components,
			p.capacity_mw, p.capacity_mwh, p.area_hectares, p.decision_date, p.developer_company,
			p.site_location_raw, p.confidence_score, p.review_recommended, p.ambiguity_flag,
			p.evidence_snippets, p.created_at, p.updated_at
		FROM procedures p
		JOIN project_links pl ON pl.procedure_id = p.id
		WHERE pl.project_id = $1`
	rows, err := s.db.Query(ctx, stmt, projectID)
	if err != nil {
		return nil, skerr.Wrapf(err, "listing procedures for project %s", projectID)
	}
	defer rows.Close()
	rv := []*types.Procedure{}
	for rows.Next() {
		p := types.Procedure{}
		var procedureType, legalBasis, components string
		if err := rows.Scan(&p.ID, &p.MunicipalityKey, &p.Title, &procedureType, &legalBasis, &components,
			&p.CapacityMW, &p.CapacityMWH, &p.AreaHA, &p.DecisionDate, &p.Developer,
			&p.Location, &p.Confidence, &p.ReviewRecommended, &p.AmbiguityFlag,
			&p.EvidenceSnippets, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, skerr.Wrap(err)
		}
		p.ProcedureType = types.ProcedureType(procedureType)
		p.LegalBasis = types.LegalBasis(legalBasis)
		p.Components = types.Components(components)
		rv = append(rv, &p)
	}
	return rv, skerr.Wrap(rows.Err())
}

// InsertCrawlStats writes one per-job stats row. Counts and timings land in
// JSONB columns so the summary queries can reach into them.
func (s *Store) InsertCrawlStats(ctx context.Context, stats *types.CrawlStats) error {
	const stmt = `
		INSERT INTO crawl_stats (run_id, municipality_key, source_type, job_status, counts, timings, error_class)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var counts, timings pgtype.JSONB
	if err := counts.Set(stats.Counts); err != nil {
		return skerr.Wrap(err)
	}
	if err := timings.Set(stats.Timings); err != nil {
		return skerr.Wrap(err)
	}
	if _, err := s.db.Exec(ctx, stmt, stats.RunID, stats.MunicipalityKey, string(stats.SourceType), string(stats.JobStatus), counts, timings, stats.ErrorClass); err != nil {
		return skerr.Wrapf(err, "inserting crawl stats for %s/%s", stats.MunicipalityKey, stats.SourceType)
	}
	return nil
}

// SourceSummary is the per-source digest of one run for a municipality.
type SourceSummary struct {
	SourceType      types.SourceType
	JobStatus       types.JobStatus
	ProceduresSaved int64
}

// RunSourceSummaries lists the crawl outcome per source family for one
// municipality and run, for the per-municipality summary log line.
func (s *Store) RunSourceSummaries(ctx context.Context, municipalityKey, runID string) ([]SourceSummary, error) {
	const stmt = `
		SELECT source_type, job_status, COALESCE((counts->>'procedures_saved')::bigint, 0)
		FROM crawl_stats
		WHERE municipality_key = $1 AND run_id = $2
		ORDER BY source_type`
	rows, err := s.db.Query(ctx, stmt, municipalityKey, runID)
	if err != nil {
		return nil, skerr.Wrapf(err, "summarizing run %s for %s", runID, municipalityKey)
	}
	defer rows.Close()
	rv := []SourceSummary{}
	for rows.Next() {
		var sourceType, status string
		var saved int64
		if err := rows.Scan(&sourceType, &status, &saved); err != nil {
			return nil, skerr.Wrap(err)
		}
		rv = append(rv, SourceSummary{
			SourceType:      types.SourceType(sourceType),
			JobStatus:       types.JobStatus(status),
			ProceduresSaved: saved,
		})
	}
	return rv, skerr.Wrap(rows.Err())
}

// DueMunicipalities lists municipalities never crawled or last crawled
// before the rescan interval, never-crawled first.
func (s *Store) DueMunicipalities(ctx context.Context, rescanInterval time.Duration, limit int) ([]*types.Municipality, error) {
	const stmt = `
		SELECT id, name, municipality_key, state, district, population, official_website, ris_url, amtsblatt_url, last_crawled_at
		FROM municipalities
		WHERE last_crawled_at IS NULL OR last_crawled_at < now() - make_interval(secs => $1)
		ORDER BY last_crawled_at ASC NULLS FIRST
		LIMIT $2`
	rows, err := s.db.Query(ctx, stmt, rescanInterval.Seconds(), limit)
	if err != nil {
		return nil, skerr.Wrapf(err, "listing due municipalities")
	}
	defer rows.Close()
	rv := []*types.Municipality{}
	for rows.Next() {
		m := types.Municipality{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Key, &m.State, &m.District, &m.Population, &m.OfficialWebsite, &m.RISURL, &m.AmtsblattURL, &m.LastCrawledAt); err != nil {
			return nil, skerr.Wrap(err)
		}
		rv = append(rv, &m)
	}
	return rv, skerr.Wrap(rows.Err())
}

// MunicipalityWebsite returns the official website URL on file, or "".
func (s *Store) MunicipalityWebsite(ctx context.Context, municipalityKey string) (string, error) {
	const stmt = `SELECT official_website FROM municipalities WHERE municipality_key = $1`
	var website string
	if err := s.db.QueryRow(ctx, stmt, municipalityKey).Scan(&website); err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		return "", skerr.Wrap(err)
	}
	return website, nil
}

// TouchMunicipalityCrawled stamps last_crawled_at.
func (s *Store) TouchMunicipalityCrawled(ctx context.Context, municipalityKey string, when time.Time) error {
	const stmt = `UPDATE municipalities SET last_crawled_at = $2 WHERE municipality_key = $1`
	if _, err := s.db.Exec(ctx, stmt, municipalityKey, when); err != nil {
		return skerr.Wrapf(err, "touching municipality %s", municipalityKey)
	}
	return nil
}
