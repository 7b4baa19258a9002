package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
	"github.com/noah-isme/sma-bulletin-api/internal/repository"
)

type memBulletinStore struct {
	mu        sync.Mutex
	seq       int
	lineSeq   int
	bulletins map[string]*models.Bulletin
	failFor   map[string]error
	rankCalls int
	rankErr   error
}

func newMemBulletinStore() *memBulletinStore {
	return &memBulletinStore{bulletins: map[string]*models.Bulletin{}, failFor: map[string]error{}}
}

func cloneBulletin(b *models.Bulletin) *models.Bulletin {
	out := *b
	out.Lines = append([]models.BulletinLine(nil), b.Lines...)
	return &out
}

func (s *memBulletinStore) put(b models.Bulletin) *models.Bulletin {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		s.seq++
		b.ID = fmt.Sprintf("b-%d", s.seq)
	}
	for i := range b.Lines {
		if b.Lines[i].ID == "" {
			s.lineSeq++
			b.Lines[i].ID = fmt.Sprintf("l-%d", s.lineSeq)
		}
		b.Lines[i].BulletinID = b.ID
	}
	s.bulletins[b.ID] = cloneBulletin(&b)
	return cloneBulletin(&b)
}

func (s *memBulletinStore) get(id string) *models.Bulletin {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bulletins[id]; ok {
		return cloneBulletin(b)
	}
	return nil
}

func (s *memBulletinStore) FindByID(ctx context.Context, id string) (*models.Bulletin, error) {
	if b := s.get(id); b != nil {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (s *memBulletinStore) FindActiveByStudentTerm(ctx context.Context, studentID, termID string) (*models.Bulletin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bulletins {
		if b.StudentID == studentID && b.TermID == termID && b.State != models.BulletinStateArchived {
			return cloneBulletin(b), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memBulletinStore) ListByCohort(ctx context.Context, key models.CohortKey) ([]models.Bulletin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Bulletin
	for _, b := range s.bulletins {
		if b.BatchID == key.BatchID && b.TermID == key.TermID && b.State != models.BulletinStateArchived {
			out = append(out, *cloneBulletin(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (s *memBulletinStore) List(ctx context.Context, filter models.BulletinFilter) ([]models.Bulletin, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Bulletin
	for _, b := range s.bulletins {
		if filter.BatchID != "" && b.BatchID != filter.BatchID {
			continue
		}
		if filter.State != "" && b.State != filter.State {
			continue
		}
		out = append(out, *cloneBulletin(b))
	}
	return out, len(out), nil
}

func (s *memBulletinStore) Create(ctx context.Context, bulletin *models.Bulletin) error {
	if err := s.failFor[bulletin.StudentID]; err != nil {
		return err
	}
	if _, err := s.FindActiveByStudentTerm(ctx, bulletin.StudentID, bulletin.TermID); err == nil {
		return repository.ErrDuplicateActiveBulletin
	}
	stored := s.put(*bulletin)
	*bulletin = *stored
	return nil
}

func (s *memBulletinStore) Update(ctx context.Context, bulletin *models.Bulletin) error {
	current := s.get(bulletin.ID)
	if current == nil {
		return sql.ErrNoRows
	}
	next := *bulletin
	next.Lines = current.Lines
	s.put(next)
	return nil
}

func (s *memBulletinStore) UpdateWithLines(ctx context.Context, bulletin *models.Bulletin) error {
	if s.get(bulletin.ID) == nil {
		return sql.ErrNoRows
	}
	stored := s.put(*bulletin)
	copy(bulletin.Lines, stored.Lines)
	return nil
}

func (s *memBulletinStore) SaveRanking(ctx context.Context, key models.CohortKey, assignments []models.RankAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankCalls++
	if s.rankErr != nil {
		return s.rankErr
	}
	byID := map[string]models.RankAssignment{}
	for _, a := range assignments {
		byID[a.BulletinID] = a
	}
	for _, b := range s.bulletins {
		if b.BatchID != key.BatchID || b.TermID != key.TermID {
			continue
		}
		a, ok := byID[b.ID]
		if !ok {
			b.ClassRank, b.ClassSize, b.ClassAverage = nil, nil, nil
			for i := range b.Lines {
				b.Lines[i].SubjectRank = nil
			}
			continue
		}
		applyAssignment(b, a)
	}
	return nil
}

func (s *memBulletinStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bulletins[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.bulletins, id)
	return nil
}

func (s *memBulletinStore) Stats(ctx context.Context, key models.CohortKey, topThreshold, lowThreshold float64, limit int) (*models.BulletinStats, error) {
	list, _ := s.ListByCohort(ctx, key)
	stats := &models.BulletinStats{Cohort: key, ByState: map[models.BulletinState]int{}}
	var sum float64
	for _, b := range list {
		stats.Total++
		stats.ByState[b.State]++
		sum += b.OverallAverage
	}
	if stats.Total > 0 {
		stats.AverageOverall = sum / float64(stats.Total)
	}
	return stats, nil
}

type memBatches map[string]*models.Batch

func (m memBatches) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	if b, ok := m[id]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

type memRoster struct {
	students map[string][]string
	err      error
}

func (m memRoster) StudentIDs(ctx context.Context, batchID, termID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.students[batchID+":"+termID], nil
}

func (m memRoster) IsEnrolled(ctx context.Context, studentID, batchID, termID string) (bool, error) {
	for _, id := range m.students[batchID+":"+termID] {
		if id == studentID {
			return true, nil
		}
	}
	return false, nil
}

type memSubjects map[string][]models.Subject

func (m memSubjects) ListByCourse(ctx context.Context, courseID string) ([]models.Subject, error) {
	return m[courseID], nil
}

func (m memSubjects) FindInCourse(ctx context.Context, courseID, subjectID string) (*models.Subject, error) {
	for _, s := range m[courseID] {
		if s.ID == subjectID {
			subject := s
			return &subject, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memAssessments struct {
	mu     sync.Mutex
	scores map[string][]models.AssessmentScore
	errFor map[string]error
}

func newMemAssessments() *memAssessments {
	return &memAssessments{scores: map[string][]models.AssessmentScore{}, errFor: map[string]error{}}
}

func (m *memAssessments) add(studentID, subjectID string, kind models.AssessmentKind, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[studentID] = append(m.scores[studentID], models.AssessmentScore{
		StudentID: studentID, SubjectID: subjectID, TermID: "t1", Kind: kind, Value: value,
	})
}

func (m *memAssessments) Scores(ctx context.Context, studentID, termID string) ([]models.AssessmentScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.errFor[studentID]; err != nil {
		return nil, err
	}
	return append([]models.AssessmentScore(nil), m.scores[studentID]...), nil
}

type memAttendance struct {
	mu        sync.Mutex
	summaries map[string]models.AttendanceSummary
	err       error
	calls     int
}

func newMemAttendance() *memAttendance {
	return &memAttendance{summaries: map[string]models.AttendanceSummary{}}
}

func (m *memAttendance) set(studentID string, summary models.AttendanceSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[studentID] = summary
}

func (m *memAttendance) Summary(ctx context.Context, studentID, batchID, termID string) (*models.AttendanceSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	summary := m.summaries[studentID]
	return &summary, nil
}

type recordingScheduler struct {
	mu   sync.Mutex
	keys []models.CohortKey
}

func (r *recordingScheduler) Schedule(key models.CohortKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

var errBoom = errors.New("boom")

type bulletinFixture struct {
	store       *memBulletinStore
	assessments *memAssessments
	attendance  *memAttendance
	roster      memRoster
	service     *BulletinService
	batch       *BatchGenerationService
}

// newBulletinFixture wires a secondary-level class c1 (course co1, term t1) with
// math (coefficient 2) and french (coefficient 1) and the given roster.
func newBulletinFixture(students ...string) *bulletinFixture {
	store := newMemBulletinStore()
	assessments := newMemAssessments()
	attendance := newMemAttendance()
	roster := memRoster{students: map[string][]string{"c1:t1": students}}
	batches := memBatches{
		"c1": {ID: "c1", Name: "Grade 10A", CourseID: "co1", EducationLevel: models.EducationLevelUpper},
		"c2": {ID: "c2", Name: "Grade 3B", CourseID: "co1", EducationLevel: models.EducationLevelPrimary},
		"c3": {ID: "c3", Name: "Unlabelled", CourseID: "co1"},
	}
	subjects := memSubjects{"co1": {
		{ID: "math", Name: "Mathematics", Coefficient: 2},
		{ID: "fr", Name: "French", Coefficient: 1},
	}}
	svc := NewBulletinService(BulletinDeps{
		Store:       store,
		Batches:     batches,
		Roster:      roster,
		Subjects:    subjects,
		Assessments: assessments,
		Attendance:  attendance,
	}, NewGradeAggregator(20), nil, nil)
	return &bulletinFixture{
		store:       store,
		assessments: assessments,
		attendance:  attendance,
		roster:      roster,
		service:     svc,
		batch:       NewBatchGenerationService(svc, 4, 0, nil, nil),
	}
}

func (f *bulletinFixture) seed(studentID string, state models.BulletinState, overall float64) *models.Bulletin {
	return f.store.put(models.Bulletin{
		StudentID:      studentID,
		BatchID:        "c1",
		CourseID:       "co1",
		TermID:         "t1",
		State:          state,
		OverallAverage: overall,
	})
}
