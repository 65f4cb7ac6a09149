package repository

import (
	"context"
	"database/sql"
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

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var userRowColumns = []string{"id", "full_name", "email", "phone_number", "password_hash", "role", "active", "last_login", "created_at", "updated_at"}

func TestFindByEmailIsCaseInsensitive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(userRowColumns).
		AddRow("1", "Bu Sari", "sari@paud.sch.id", "081234567890", "hash", string(models.RoleTeacher), true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Sari@PAUD.sch.id").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Sari@PAUD.sch.id")
	require.NoError(t, err)
	require.NotNil(t, user.Email)
	assert.Equal(t, "sari@paud.sch.id", *user.Email)
	assert.Nil(t, user.LastLogin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPhoneNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE phone_number = $1 LIMIT 1")).
		WithArgs("0811").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByPhone(context.Background(), nil, "0811")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersFiltersByRoleAndSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	role := models.RoleParent
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 AND role = $1 AND (LOWER(full_name) LIKE $2 OR phone_number LIKE $2) ORDER BY full_name ASC LIMIT 10 OFFSET 10")).
		WithArgs(string(role), "%budi%").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("p1", "Pak Budi", nil, "0812", "hash", string(role), true, nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND role = $1")).
		WithArgs(string(role), "%budi%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role, Search: "Budi", Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetByPhoneReturnsExisting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	mock.ExpectExec("(?s)INSERT INTO users .* ON CONFLICT \\(phone_number\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE phone_number = $1")).
		WithArgs("081234567890").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("existing", "Ibu Rina", nil, "081234567890", "hash", string(models.RoleParent), true, nil, now, now))

	user, created, err := repo.CreateOrGetByPhone(context.Background(), nil, &models.User{FullName: "Rina", PhoneNumber: "081234567890", Role: models.RoleParent})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "existing", user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrGetByPhoneInserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 1))

	user, created, err := repo.CreateOrGetByPhone(context.Background(), nil, &models.User{FullName: "Rina", PhoneNumber: "081234567890", Role: models.RoleParent})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLogAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.AuditLog{Action: models.AuditActionRosterImport, Resource: "roster"}
	require.NoError(t, repo.CreateAuditLog(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
