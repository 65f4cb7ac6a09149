package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paud-api/internal/models"
)

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "full_name", "gender", "date_of_birth", "status", "classroom_id", "classroom_name"}).
		AddRow("s1", "Budi Santoso", "male", time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC), "active", "room-1", "Kelompok A")
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s LEFT JOIN classrooms c ON c.id = s.classroom_id WHERE s.deleted_at IS NULL AND s.classroom_id = $1 AND (LOWER(s.full_name) LIKE $2 OR s.nisn LIKE $2) ORDER BY s.full_name ASC LIMIT 20 OFFSET 0")).
		WithArgs("room-1", "%budi%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s")).
		WithArgs("room-1", "%budi%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{ClassroomID: "room-1", Search: "Budi", SortBy: "unknown"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Kelompok A", *students[0].ClassroomName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateOrGetByNISN(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)
	nisn := "0012345678"

	mock.ExpectExec("(?s)INSERT INTO students .* ON CONFLICT \\(nisn\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s WHERE s.nisn = $1")).
		WithArgs(nisn).
		WillReturnRows(sqlmock.NewRows([]string{"id", "nisn", "full_name", "status"}).AddRow("existing", nisn, "Budi", "active"))

	student, created, err := repo.CreateOrGetByNISN(context.Background(), nil, &models.Student{NISN: &nisn, FullName: "Budi S"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing", student.ID)
	assert.Equal(t, "Budi", student.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").WillReturnResult(sqlmock.NewResult(0, 1))

	student := &models.Student{FullName: "Citra", Gender: models.GenderFemale}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.Equal(t, models.StudentStatusActive, student.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByNISN(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE nisn = $1 AND id <> $2 LIMIT 1")).
		WithArgs("001", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	exists, err := repo.ExistsByNISN(context.Background(), "001", "s1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
