package docs_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"orgdocs/backend/features/docs"
	"orgdocs/backend/internal/apperr"
)

func TestPostgresRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		doc := &docs.Document{
			Title:         "Handbook",
			SourceURL:     "https://example.com/handbook.pdf",
			Status:        "pending",
			DepartmentIDs: []int64{1, 2},
		}

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents (title, source_url, status) VALUES ($1, $2, $3) RETURNING id")).
			WithArgs(doc.Title, doc.SourceURL, doc.Status).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO department_documents (document_id, department_id) VALUES ($1, $2)")).
			WithArgs(int64(42), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO department_documents (document_id, department_id) VALUES ($1, $2)")).
			WithArgs(int64(42), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Create(context.Background(), doc)
		assert.NoError(t, err)
		assert.Equal(t, int64(42), doc.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsertFailureRollsBack", func(t *testing.T) {
		doc := &docs.Document{Title: "Bad", SourceURL: "u", Status: "pending", DepartmentIDs: []int64{1}}

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO documents")).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := repo.Create(context.Background(), doc)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "title", "source_url", "status", "coalesce"}).
			AddRow(int64(7), "Handbook", "https://example.com/handbook.pdf", "ingested", pq.Array([]int64{1, 2}))

		mock.ExpectQuery(regexp.QuoteMeta("SELECT d.id, d.title, d.source_url, d.status,")).
			WithArgs(int64(7)).
			WillReturnRows(rows)

		doc, err := repo.Get(context.Background(), 7)
		assert.NoError(t, err)
		assert.Equal(t, "Handbook", doc.Title)
		assert.Equal(t, []int64{1, 2}, doc.DepartmentIDs)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT d.id, d.title, d.source_url, d.status,")).
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "source_url", "status", "coalesce"}))

		_, err := repo.Get(context.Background(), 99)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestPostgresRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"id", "title", "source_url", "status", "coalesce"}).
		AddRow(int64(1), "A", "https://a", "ingested", pq.Array([]int64{1})).
		AddRow(int64(2), "B", "https://b", "pending", pq.Array([]int64{}))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT d.id, d.title, d.source_url, d.status,")).
		WillReturnRows(rows)

	list, err := repo.List(context.Background())
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Title)
	assert.Empty(t, list[1].DepartmentIDs)
}

func TestPostgresRepo_ListByDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"id", "title", "source_url", "status", "coalesce"}).
		AddRow(int64(3), "C", "https://c", "ingested", pq.Array([]int64{5, 6}))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT d.id, d.title, d.source_url, d.status,")).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	list, err := repo.ListByDepartment(context.Background(), 5)
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, int64(3), list[0].ID)
}

func TestPostgresRepo_DocIDsByDepartment(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"document_id"}).AddRow(int64(1)).AddRow(int64(4))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT document_id FROM department_documents WHERE department_id = $1 ORDER BY document_id")).
		WithArgs(int64(2)).
		WillReturnRows(rows)

	ids, err := repo.DocIDsByDepartment(context.Background(), 2)
	assert.NoError(t, err)
	assert.Equal(t, []int64{1, 4}, ids)
}

func TestPostgresRepo_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2")).
			WithArgs("ingested", int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateStatus(context.Background(), 7, "ingested")
		assert.NoError(t, err)
	})

	t.Run("MissingDocument", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2")).
			WithArgs("failed", int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), 99, "failed")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestPostgresRepo_SetDepartments(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM department_documents WHERE document_id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO department_documents (document_id, department_id) VALUES ($1, $2)")).
		WithArgs(int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = repo.SetDepartments(context.Background(), 7, []int64{3})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM department_documents WHERE document_id = $1")).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
			WithArgs(int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.Delete(context.Background(), 7)
		assert.NoError(t, err)
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM department_documents WHERE document_id = $1")).
			WithArgs(int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM documents WHERE id = $1")).
			WithArgs(int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := repo.Delete(context.Background(), 99)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}

func TestPostgresRepo_CountByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := docs.NewPostgresRepo(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("ingested", 3).
		AddRow("pending", 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM documents GROUP BY status")).
		WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, map[string]int{"ingested": 3, "pending": 1}, counts)
}
