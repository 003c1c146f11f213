package docs

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"orgdocs/backend/internal/apperr"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Create inserts the document and its department links in one transaction.
func (r *PostgresRepo) Create(ctx context.Context, doc *Document) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO documents (title, source_url, status) VALUES ($1, $2, $3) RETURNING id`
	if err := tx.QueryRowContext(ctx, query, doc.Title, doc.SourceURL, doc.Status).Scan(&doc.ID); err != nil {
		return err
	}
	if err := insertLinks(ctx, tx, doc.ID, doc.DepartmentIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func insertLinks(ctx context.Context, tx *sql.Tx, docID int64, departmentIDs []int64) error {
	query := `INSERT INTO department_documents (document_id, department_id) VALUES ($1, $2)`
	for _, deptID := range departmentIDs {
		if _, err := tx.ExecContext(ctx, query, docID, deptID); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id int64) (*Document, error) {
	doc := &Document{}
	query := `SELECT d.id, d.title, d.source_url, d.status,
		COALESCE(array_agg(dd.department_id) FILTER (WHERE dd.department_id IS NOT NULL), '{}')
		FROM documents d
		LEFT JOIN department_documents dd ON dd.document_id = d.id
		WHERE d.id = $1
		GROUP BY d.id`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&doc.ID, &doc.Title, &doc.SourceURL, &doc.Status, pq.Array(&doc.DepartmentIDs))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Newf(apperr.ErrNotFound, "document %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT d.id, d.title, d.source_url, d.status,
		COALESCE(array_agg(dd.department_id) FILTER (WHERE dd.department_id IS NOT NULL), '{}')
		FROM documents d
		LEFT JOIN department_documents dd ON dd.document_id = d.id
		GROUP BY d.id
		ORDER BY d.created_at DESC`
	return r.scanDocuments(ctx, query)
}

func (r *PostgresRepo) ListByDepartment(ctx context.Context, departmentID int64) ([]Document, error) {
	query := `SELECT d.id, d.title, d.source_url, d.status,
		COALESCE(array_agg(dd.department_id) FILTER (WHERE dd.department_id IS NOT NULL), '{}')
		FROM documents d
		LEFT JOIN department_documents dd ON dd.document_id = d.id
		WHERE d.id IN (SELECT document_id FROM department_documents WHERE department_id = $1)
		GROUP BY d.id
		ORDER BY d.created_at DESC`
	return r.scanDocuments(ctx, query, departmentID)
}

func (r *PostgresRepo) scanDocuments(ctx context.Context, query string, args ...interface{}) ([]Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Title, &d.SourceURL, &d.Status, pq.Array(&d.DepartmentIDs)); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) DocIDsByDepartment(ctx context.Context, departmentID int64) ([]int64, error) {
	query := `SELECT document_id FROM department_documents WHERE department_id = $1 ORDER BY document_id`
	rows, err := r.db.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateStatus is the reconciler's write. RowsAffected 0 means the document
// was deleted while the event was in flight; callers treat that as NotFound.
func (r *PostgresRepo) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Newf(apperr.ErrNotFound, "document %d not found", id)
	}
	return nil
}

// SetDepartments replaces the document's department links.
func (r *PostgresRepo) SetDepartments(ctx context.Context, id int64, departmentIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM department_documents WHERE document_id = $1`, id); err != nil {
		return err
	}
	if err := insertLinks(ctx, tx, id, departmentIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresRepo) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM department_documents WHERE document_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.Newf(apperr.ErrNotFound, "document %d not found", id)
	}
	return tx.Commit()
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
