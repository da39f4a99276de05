package store

// Schema is the database schema for the crawler. Applied with CREATE TABLE
// IF NOT EXISTS so repeated startups are harmless.
const Schema = `
CREATE TABLE IF NOT EXISTS municipalities (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	municipality_key TEXT NOT NULL UNIQUE,
	state TEXT NOT NULL DEFAULT '',
	district TEXT NOT NULL DEFAULT '',
	population BIGINT NOT NULL DEFAULT 0,
	official_website TEXT NOT NULL DEFAULT '',
	ris_url TEXT NOT NULL DEFAULT '',
	amtsblatt_url TEXT NOT NULL DEFAULT '',
	last_crawled_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS candidates (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	municipality_key TEXT NOT NULL,
	source_type TEXT NOT NULL,
	url TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	detected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	prefilter_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'NEW',
	status_reason TEXT NOT NULL DEFAULT '',
	UNIQUE (municipality_key, source_type, url)
);
CREATE INDEX IF NOT EXISTS candidates_status_idx ON candidates (status);

CREATE TABLE IF NOT EXISTS procedures (
	id UUID PRIMARY KEY,
	municipality_key TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	procedure_type TEXT NOT NULL DEFAULT 'UNKNOWN',
	legal_basis TEXT NOT NULL DEFAULT 'unknown',
	components TEXT NOT NULL DEFAULT 'OTHER/UNCLEAR',
	capacity_mw DOUBLE PRECISION,
	capacity_mwh DOUBLE PRECISION,
	area_hectares DOUBLE PRECISION,
	decision_date DATE,
	developer_company TEXT NOT NULL DEFAULT '',
	site_location_raw TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_recommended BOOLEAN NOT NULL DEFAULT FALSE,
	ambiguity_flag BOOLEAN NOT NULL DEFAULT FALSE,
	evidence_snippets TEXT[] NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS procedures_municipality_idx ON procedures (municipality_key);

CREATE TABLE IF NOT EXISTS sources (
	id BIGSERIAL PRIMARY KEY,
	procedure_id UUID REFERENCES procedures (id),
	candidate_id BIGINT NOT NULL DEFAULT 0,
	url TEXT NOT NULL,
	source_type TEXT NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	http_status INT NOT NULL DEFAULT 0,
	content_sha256 TEXT NOT NULL DEFAULT '',
	UNIQUE (url, content_sha256)
);

CREATE TABLE IF NOT EXISTS documents (
	sha256 TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	content_type TEXT NOT NULL DEFAULT '',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	storage_path TEXT NOT NULL DEFAULT '',
	text_extracted BOOLEAN NOT NULL DEFAULT FALSE,
	page_count INT NOT NULL DEFAULT 0,
	fetched_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS procedure_documents (
	procedure_id UUID NOT NULL REFERENCES procedures (id),
	document_sha256 TEXT NOT NULL REFERENCES documents (sha256),
	PRIMARY KEY (procedure_id, document_sha256)
);

CREATE TABLE IF NOT EXISTS project_entities (
	project_id UUID PRIMARY KEY,
	municipality_key TEXT NOT NULL,
	canonical_project_name TEXT NOT NULL DEFAULT '',
	plan_token TEXT NOT NULL DEFAULT '',
	site_location_best TEXT NOT NULL DEFAULT '',
	developer_company_best TEXT NOT NULL DEFAULT '',
	capacity_mw_best DOUBLE PRECISION,
	capacity_mwh_best DOUBLE PRECISION,
	area_hectares_best DOUBLE PRECISION,
	legal_basis_best TEXT NOT NULL DEFAULT 'unknown',
	maturity_stage TEXT NOT NULL DEFAULT 'DISCOVERED',
	first_seen_date TIMESTAMPTZ,
	last_seen_date TIMESTAMPTZ,
	max_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	needs_review BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS project_entities_municipality_idx ON project_entities (municipality_key);

CREATE TABLE IF NOT EXISTS project_links (
	project_id UUID NOT NULL REFERENCES project_entities (project_id),
	procedure_id UUID NOT NULL REFERENCES procedures (id),
	match_rule TEXT NOT NULL DEFAULT '',
	match_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, procedure_id)
);

CREATE TABLE IF NOT EXISTS crawl_stats (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	municipality_key TEXT NOT NULL,
	source_type TEXT NOT NULL,
	job_status TEXT NOT NULL,
	counts JSONB NOT NULL DEFAULT '{}',
	timings JSONB NOT NULL DEFAULT '{}',
	error_class TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS crawl_stats_run_idx ON crawl_stats (run_id);
`
