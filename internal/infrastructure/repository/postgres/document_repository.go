package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type DocumentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db, now: time.Now}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026031501)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS stored_documents (
	id TEXT PRIMARY KEY,
	company_id TEXT NOT NULL,
	uploaded_by TEXT NOT NULL,
	original_name TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	storage_path TEXT NOT NULL,
	declared_context TEXT NOT NULL,
	checksum TEXT NOT NULL,
	perceptual_hash TEXT,
	content_analysis JSONB,
	relevance_score DOUBLE PRECISION,
	duplicate_analysis JSONB,
	recommended_action TEXT,
	analyzed_at TIMESTAMPTZ,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stored_documents_company_created ON stored_documents(company_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_stored_documents_uploader_created ON stored_documents(uploaded_by, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_stored_documents_checksum ON stored_documents(checksum);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const documentColumns = `id, company_id, uploaded_by, original_name, mime_type, size_bytes, storage_path, declared_context,
	checksum, perceptual_hash, content_analysis, relevance_score, duplicate_analysis, recommended_action, analyzed_at,
	is_deleted, created_at, updated_at`

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.StoredDocument) error {
	contentJSON, err := marshalNullable(doc.ContentAnalysis)
	if err != nil {
		return fmt.Errorf("marshal content analysis: %w", err)
	}
	duplicatesJSON, err := marshalNullable(doc.DuplicateAnalysis)
	if err != nil {
		return fmt.Errorf("marshal duplicate analysis: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO stored_documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		doc.ID, doc.CompanyID, doc.UploadedBy, doc.OriginalName, doc.MimeType, doc.Size, doc.StoragePath,
		string(doc.DeclaredContext), doc.Checksum, nullString(doc.PerceptualHash), contentJSON,
		nullFloat(doc.RelevanceScore), duplicatesJSON, nullString(string(doc.RecommendedAction)), nullTime(doc.AnalyzedAt),
		doc.IsDeleted, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.StoredDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM stored_documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// FindCandidates returns documents matching the filter, newest first.
func (r *DocumentRepository) FindCandidates(ctx context.Context, filter domain.CandidateFilter) ([]domain.StoredDocument, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	add("created_at >= $%d", filter.CreatedAfter)
	switch {
	case filter.CompanyID != "":
		add("company_id = $%d", filter.CompanyID)
	case filter.UploadedBy != "":
		add("uploaded_by = $%d", filter.UploadedBy)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "find candidates", errors.New("scope owner is required"))
	}
	if filter.ExcludeID != "" {
		add("id <> $%d", filter.ExcludeID)
	}
	if filter.Checksum != "" {
		add("checksum = $%d", filter.Checksum)
	}
	if !filter.IncludeArchived {
		clauses = append(clauses, "is_deleted = FALSE")
	}

	query := `SELECT ` + documentColumns + `
FROM stored_documents
WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	out := make([]domain.StoredDocument, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// PersistAnalysis overwrites every analysis column in one statement so a
// reader never sees a mix of old and new analysis.
func (r *DocumentRepository) PersistAnalysis(ctx context.Context, id string, fields domain.AnalysisFields) error {
	contentJSON, err := marshalNullable(fields.ContentAnalysis)
	if err != nil {
		return fmt.Errorf("marshal content analysis: %w", err)
	}
	duplicatesJSON, err := marshalNullable(fields.DuplicateAnalysis)
	if err != nil {
		return fmt.Errorf("marshal duplicate analysis: %w", err)
	}
	analyzedAt := fields.AnalyzedAt.UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE stored_documents
SET content_analysis = $2, relevance_score = $3, duplicate_analysis = $4, recommended_action = $5, analyzed_at = $6, updated_at = $7
WHERE id = $1
`, id, contentJSON, nullFloat(fields.RelevanceScore), duplicatesJSON, nullString(string(fields.RecommendedAction)),
		nullTime(&analyzedAt), r.now().UTC())
	if err != nil {
		return fmt.Errorf("persist analysis: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("persist analysis rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "persist analysis", fmt.Errorf("id=%s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.StoredDocument, error) {
	var (
		doc            domain.StoredDocument
		declared       string
		perceptualHash sql.NullString
		contentRaw     []byte
		relevance      sql.NullFloat64
		duplicatesRaw  []byte
		action         sql.NullString
		analyzedAt     sql.NullTime
	)
	err := row.Scan(
		&doc.ID, &doc.CompanyID, &doc.UploadedBy, &doc.OriginalName, &doc.MimeType, &doc.Size, &doc.StoragePath, &declared,
		&doc.Checksum, &perceptualHash, &contentRaw, &relevance, &duplicatesRaw, &action, &analyzedAt,
		&doc.IsDeleted, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.DeclaredContext = domain.DocumentContext(declared)
	doc.PerceptualHash = perceptualHash.String
	doc.RecommendedAction = domain.Action(action.String)
	if relevance.Valid {
		v := relevance.Float64
		doc.RelevanceScore = &v
	}
	if analyzedAt.Valid {
		v := analyzedAt.Time
		doc.AnalyzedAt = &v
	}
	if len(contentRaw) > 0 {
		doc.ContentAnalysis = &domain.ContentAnalysis{}
		if err := json.Unmarshal(contentRaw, doc.ContentAnalysis); err != nil {
			return nil, fmt.Errorf("unmarshal content analysis: %w", err)
		}
	}
	if len(duplicatesRaw) > 0 {
		doc.DuplicateAnalysis = &domain.DuplicateAnalysis{}
		if err := json.Unmarshal(duplicatesRaw, doc.DuplicateAnalysis); err != nil {
			return nil, fmt.Errorf("unmarshal duplicate analysis: %w", err)
		}
	}
	return &doc, nil
}

// marshalNullable maps a nil pointer to SQL NULL.
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil || v.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}
