package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paud-api/internal/models"
)

func TestReportCardGetOrCreateReturnsExistingCard(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectExec("(?s)INSERT INTO report_cards .* ON CONFLICT \\(student_id, academic_term_id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_cards rc WHERE rc.student_id = $1 AND rc.academic_term_id = $2")).
		WithArgs("s1", "term-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "academic_term_id", "status"}).
			AddRow("card-1", "s1", "term-1", "published"))

	card, created, err := repo.GetOrCreate(context.Background(), nil, &models.ReportCard{StudentID: "s1", AcademicTermID: "term-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "card-1", card.ID)
	assert.Equal(t, models.ReportCardPublished, card.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardPublishIfDraft(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)
	at := time.Date(2024, 12, 20, 8, 0, 0, 0, time.UTC)

	publish := regexp.QuoteMeta("UPDATE report_cards SET status = 'published'")
	mock.ExpectExec(publish).WithArgs("card-1", at, "admin-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(publish).WithArgs("card-1", at, "admin-1").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.PublishIfDraft(context.Background(), nil, "card-1", "admin-1", at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.PublishIfDraft(context.Background(), nil, "card-1", "admin-1", at)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportCardMissingNarrativesCoversEveryDetail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportCardRepository(db)

	mock.ExpectQuery(`JOIN assessment_aspects a ON a\.id = d\.assessment_aspect_id\s+WHERE d\.report_card_id = \$1 AND \(d\.narrative IS NULL OR TRIM\(d\.narrative\) = ''\)`).
		WithArgs("card-1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Doa harian").AddRow("Motorik halus"))

	names, err := repo.ListMissingNarratives(context.Background(), nil, "card-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Doa harian", "Motorik halus"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE report_cards").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := NewTransactor(db).WithinTx(context.Background(), func(exec sqlx.ExtContext) error {
		if _, err := exec.ExecContext(context.Background(), "UPDATE report_cards SET notes = $1", "x"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermActivateUnknownRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_terms SET is_active = FALSE")).
		WithArgs(sqlmock.AnyArg(), "term-9").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE academic_terms SET is_active = TRUE")).
		WithArgs("term-9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ActivateTerm(context.Background(), "term-9")
	assert.ErrorIs(t, err, ErrNoRowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
