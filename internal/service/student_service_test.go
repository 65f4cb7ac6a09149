package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/paud-api/internal/models"
	appErrors "github.com/noah-isme/paud-api/pkg/errors"
)

type mockStudentRepo struct {
	students   map[string]models.Student
	nisnOwners map[string]string
	deleted    []string
	lastFilter models.StudentFilter
	listTotal  int
	err        error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	details := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		details = append(details, models.StudentDetail{Student: s})
	}
	return details, m.listTotal, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		detail := models.StudentDetail{Student: s}
		return &detail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByNISN(ctx context.Context, nisn string, excludeID string) (bool, error) {
	if id, ok := m.nisnOwners[nisn]; ok {
		return excludeID == "" || id != excludeID, nil
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	if student.Status == "" {
		student.Status = models.StudentStatusActive
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) AssignClassroom(ctx context.Context, id string, classroomID *string) error {
	s := m.students[id]
	s.ClassroomID = classroomID
	m.students[id] = s
	return nil
}

func (m *mockStudentRepo) SoftDelete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.students, id)
	return nil
}

type studentSideStub struct {
	published int
	parents   []models.ParentContact
	rooms     map[string]bool
	audits    []models.AuditLog
}

func (s *studentSideStub) ListParents(ctx context.Context, studentID string) ([]models.ParentContact, error) {
	return s.parents, nil
}

func (s *studentSideStub) CountPublishedForStudent(ctx context.Context, studentID string) (int, error) {
	return s.published, nil
}

func (s *studentSideStub) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if s.rooms[id] {
		return &models.Classroom{ID: id}, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentSideStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.audits = append(s.audits, *log)
	return nil
}

func newStudentFixture() (*StudentService, *mockStudentRepo, *studentSideStub) {
	repo := &mockStudentRepo{
		students:   map[string]models.Student{"s1": {ID: "s1", FullName: "Budi", Status: models.StudentStatusActive}},
		nisnOwners: map[string]string{"0012345678": "s1"},
	}
	side := &studentSideStub{rooms: map[string]bool{"room-a": true}}
	svc := NewStudentService(repo, side, side, side, side, validator.New(), zap.NewNop())
	return svc, repo, side
}

func TestStudentServiceListDefaultsPagination(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	repo.listTotal = 1

	items, pagination, err := svc.List(context.Background(), models.StudentFilter{Search: "bud"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, "bud", repo.lastFilter.Search)
}

func TestStudentServiceListRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newStudentFixture()

	_, _, err := svc.List(context.Background(), models.StudentFilter{Status: "expelled"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceCreate(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	nisn := " 0099 "
	room := "room-a"

	student, err := svc.Create(context.Background(), StudentRequest{
		NISN:        &nisn,
		FullName:    "  Citra   Lestari ",
		Gender:      models.GenderFemale,
		DateOfBirth: "2019-03-05",
		ClassroomID: &room,
	})
	require.NoError(t, err)
	assert.Equal(t, "Citra Lestari", student.FullName)
	assert.Equal(t, "0099", *student.NISN)
	assert.Equal(t, models.StudentStatusActive, repo.students["generated"].Status)
	assert.False(t, student.EnrollmentDate.IsZero())
}

func TestStudentServiceCreateDuplicateNISN(t *testing.T) {
	svc, _, _ := newStudentFixture()
	nisn := "0012345678"

	_, err := svc.Create(context.Background(), StudentRequest{NISN: &nisn, FullName: "X", Gender: models.GenderMale, DateOfBirth: "2019-01-01"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestStudentServiceCreateUnknownClassroom(t *testing.T) {
	svc, _, _ := newStudentFixture()
	room := "room-z"

	_, err := svc.Create(context.Background(), StudentRequest{FullName: "X", Gender: models.GenderMale, DateOfBirth: "2019-01-01", ClassroomID: &room})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceUpdateKeepsOwnNISN(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	nisn := "0012345678"

	_, err := svc.Update(context.Background(), "s1", StudentRequest{NISN: &nisn, FullName: "Budi S", Gender: models.GenderMale, DateOfBirth: "2019-01-01", Status: models.StudentStatusGraduated})
	require.NoError(t, err)
	assert.Equal(t, models.StudentStatusGraduated, repo.students["s1"].Status)
}

func TestStudentServiceAssignClassroom(t *testing.T) {
	svc, repo, _ := newStudentFixture()
	room := "room-a"

	_, err := svc.AssignClassroom(context.Background(), "s1", AssignClassroomRequest{ClassroomID: &room})
	require.NoError(t, err)
	require.NotNil(t, repo.students["s1"].ClassroomID)
	assert.Equal(t, "room-a", *repo.students["s1"].ClassroomID)
}

func TestStudentServiceDeleteRefusedWhenPublished(t *testing.T) {
	svc, repo, side := newStudentFixture()
	side.published = 1

	err := svc.Delete(context.Background(), "admin-1", "s1")
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, repo.deleted)
}

func TestStudentServiceDelete(t *testing.T) {
	svc, repo, side := newStudentFixture()

	require.NoError(t, svc.Delete(context.Background(), "admin-1", "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)
	require.Len(t, side.audits, 1)
	assert.Equal(t, models.AuditActionStudentDelete, side.audits[0].Action)

	err := svc.Delete(context.Background(), "admin-1", "s1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestStudentServiceParents(t *testing.T) {
	svc, _, side := newStudentFixture()
	side.parents = []models.ParentContact{{UserID: "p1", FullName: "Siti", RelationshipType: models.RelationshipMother}}

	parents, err := svc.Parents(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, parents, 1)
}
