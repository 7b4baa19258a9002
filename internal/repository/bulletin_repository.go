package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
)

// ErrDuplicateActiveBulletin is returned when a student already holds a non-archived bulletin for the term.
var ErrDuplicateActiveBulletin = errors.New("active bulletin already exists for student and term")

const uniqueViolation = "23505"

const bulletinColumns = `b.id, b.number, b.student_id, COALESCE(s.full_name, '') AS student_name, b.batch_id, b.course_id, b.term_id,
        b.overall_average, b.class_rank, b.class_size, b.class_average,
        b.unjustified_absences, b.justified_absences, b.tardies, b.attendance_manual, b.general_appreciation, b.council_decision,
        b.state, b.validated_by, b.validated_at, b.published_by, b.published_at, b.archived_at, b.archive_reason,
        b.edition_date, b.created_at, b.updated_at`

const bulletinFrom = `FROM bulletins b LEFT JOIN students s ON s.id = b.student_id`

const lineColumns = `id, bulletin_id, subject_id, subject_name, control_score, composition_score, homework_score, oral_score,
        practical_score, subject_average, coefficient, appreciation, subject_rank, incomplete, preserved, updated_at`

// BulletinRepository persists bulletins and their subject lines.
type BulletinRepository struct {
	db *sqlx.DB
}

// NewBulletinRepository constructs the repository.
func NewBulletinRepository(db *sqlx.DB) *BulletinRepository {
	return &BulletinRepository{db: db}
}

// FindByID loads a bulletin with its lines.
func (r *BulletinRepository) FindByID(ctx context.Context, id string) (*models.Bulletin, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE b.id = $1`, bulletinColumns, bulletinFrom)
	var bulletin models.Bulletin
	if err := r.db.GetContext(ctx, &bulletin, query, id); err != nil {
		return nil, err
	}
	lines, err := r.linesFor(ctx, []string{bulletin.ID})
	if err != nil {
		return nil, err
	}
	bulletin.Lines = lines[bulletin.ID]
	return &bulletin, nil
}

// FindActiveByStudentTerm returns the non-archived bulletin of a student for a term.
func (r *BulletinRepository) FindActiveByStudentTerm(ctx context.Context, studentID, termID string) (*models.Bulletin, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE b.student_id = $1 AND b.term_id = $2 AND b.state <> $3`, bulletinColumns, bulletinFrom)
	var bulletin models.Bulletin
	if err := r.db.GetContext(ctx, &bulletin, query, studentID, termID, models.BulletinStateArchived); err != nil {
		return nil, err
	}
	return &bulletin, nil
}

// ListByCohort returns every non-archived bulletin of the cohort, lines included.
func (r *BulletinRepository) ListByCohort(ctx context.Context, key models.CohortKey) ([]models.Bulletin, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE b.batch_id = $1 AND b.term_id = $2 AND b.state <> $3 ORDER BY b.student_id`, bulletinColumns, bulletinFrom)
	var bulletins []models.Bulletin
	if err := r.db.SelectContext(ctx, &bulletins, query, key.BatchID, key.TermID, models.BulletinStateArchived); err != nil {
		return nil, fmt.Errorf("list cohort bulletins: %w", err)
	}
	if len(bulletins) == 0 {
		return bulletins, nil
	}
	ids := make([]string, len(bulletins))
	for i := range bulletins {
		ids[i] = bulletins[i].ID
	}
	lines, err := r.linesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range bulletins {
		bulletins[i].Lines = lines[bulletins[i].ID]
	}
	return bulletins, nil
}

// List returns bulletin headers matching the filter.
func (r *BulletinRepository) List(ctx context.Context, filter models.BulletinFilter) ([]models.Bulletin, int, error) {
	var conditions []string
	var args []interface{}

	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("b.batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("b.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("b.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("b.state = $%d", len(args)+1))
		args = append(args, filter.State)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY b.class_rank NULLS LAST, s.full_name LIMIT %d OFFSET %d`, bulletinColumns, bulletinFrom, clause, size, offset)
	var bulletins []models.Bulletin
	if err := r.db.SelectContext(ctx, &bulletins, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bulletins: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM bulletins b%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bulletins: %w", err)
	}
	return bulletins, total, nil
}

// Create inserts a draft bulletin and assigns its number from the bulletin sequence.
func (r *BulletinRepository) Create(ctx context.Context, bulletin *models.Bulletin) error {
	if bulletin.ID == "" {
		bulletin.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	bulletin.CreatedAt = now
	bulletin.UpdatedAt = now
	if bulletin.State == "" {
		bulletin.State = models.BulletinStateDraft
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create bulletin: %w", err)
	}

	var seq int64
	if err := tx.GetContext(ctx, &seq, `SELECT nextval('bulletin_number_seq')`); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("next bulletin number: %w", err)
	}
	bulletin.Number = fmt.Sprintf("BUL/%d/%06d", now.Year(), seq)

	const query = `INSERT INTO bulletins (id, number, student_id, batch_id, course_id, term_id, overall_average,
        unjustified_absences, justified_absences, tardies, attendance_manual, general_appreciation, council_decision, state, created_at, updated_at)
        VALUES (:id, :number, :student_id, :batch_id, :course_id, :term_id, :overall_average,
        :unjustified_absences, :justified_absences, :tardies, :attendance_manual, :general_appreciation, :council_decision, :state, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, bulletin); err != nil {
		tx.Rollback() //nolint:errcheck
		if isUniqueViolation(err) {
			return ErrDuplicateActiveBulletin
		}
		return fmt.Errorf("create bulletin: %w", err)
	}
	if err := insertLines(ctx, tx, bulletin.ID, bulletin.Lines, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulletin: %w", err)
	}
	return nil
}

// Update writes header, state and audit columns. Rank columns are owned by SaveRanking.
func (r *BulletinRepository) Update(ctx context.Context, bulletin *models.Bulletin) error {
	bulletin.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, updateBulletinQuery, bulletin); err != nil {
		return fmt.Errorf("update bulletin: %w", err)
	}
	return nil
}

// UpdateWithLines writes the header and replaces the full line set atomically.
func (r *BulletinRepository) UpdateWithLines(ctx context.Context, bulletin *models.Bulletin) error {
	now := time.Now().UTC()
	bulletin.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update bulletin: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, updateBulletinQuery, bulletin); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update bulletin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bulletin_lines WHERE bulletin_id = $1`, bulletin.ID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear bulletin lines: %w", err)
	}
	if err := insertLines(ctx, tx, bulletin.ID, bulletin.Lines, now); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulletin lines: %w", err)
	}
	return nil
}

const updateBulletinQuery = `UPDATE bulletins SET overall_average = :overall_average,
        unjustified_absences = :unjustified_absences, justified_absences = :justified_absences, tardies = :tardies, attendance_manual = :attendance_manual,
        general_appreciation = :general_appreciation, council_decision = :council_decision, state = :state,
        validated_by = :validated_by, validated_at = :validated_at, published_by = :published_by, published_at = :published_at,
        archived_at = :archived_at, archive_reason = :archive_reason, edition_date = :edition_date, updated_at = :updated_at
        WHERE id = :id`

// SaveRanking stores a cohort ranking pass. Bulletins of the cohort missing from
// assignments have their rank columns and line subject ranks cleared.
func (r *BulletinRepository) SaveRanking(ctx context.Context, key models.CohortKey, assignments []models.RankAssignment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save ranking: %w", err)
	}

	ranked := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ranked = append(ranked, a.BulletinID)
	}
	const clearStale = `UPDATE bulletins SET class_rank = NULL, class_size = NULL, class_average = NULL
        WHERE batch_id = $1 AND term_id = $2 AND NOT (id = ANY($3))`
	if _, err := tx.ExecContext(ctx, clearStale, key.BatchID, key.TermID, pq.Array(ranked)); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear stale ranks: %w", err)
	}
	const clearStaleLines = `UPDATE bulletin_lines SET subject_rank = NULL WHERE bulletin_id IN
        (SELECT id FROM bulletins WHERE batch_id = $1 AND term_id = $2 AND NOT (id = ANY($3)))`
	if _, err := tx.ExecContext(ctx, clearStaleLines, key.BatchID, key.TermID, pq.Array(ranked)); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear stale subject ranks: %w", err)
	}

	for _, a := range assignments {
		const query = `UPDATE bulletins SET class_rank = $2, class_size = $3, class_average = $4 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, query, a.BulletinID, a.ClassRank, a.ClassSize, a.ClassAverage); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("save class rank: %w", err)
		}
		for lineID, rank := range a.LineRanks {
			if _, err := tx.ExecContext(ctx, `UPDATE bulletin_lines SET subject_rank = $2 WHERE id = $1`, lineID, rank); err != nil {
				tx.Rollback() //nolint:errcheck
				return fmt.Errorf("save subject rank: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ranking: %w", err)
	}
	return nil
}

// Delete removes a bulletin and its lines.
func (r *BulletinRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete bulletin: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bulletin_lines WHERE bulletin_id = $1`, id); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete bulletin lines: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM bulletins WHERE id = $1`, id)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("delete bulletin: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete bulletin: %w", err)
	}
	return nil
}

// Stats aggregates a cohort: state counts, mean overall average, leaderboards and subject spreads.
func (r *BulletinRepository) Stats(ctx context.Context, key models.CohortKey, topThreshold, lowThreshold float64, limit int) (*models.BulletinStats, error) {
	stats := &models.BulletinStats{Cohort: key, ByState: map[models.BulletinState]int{}}

	rows, err := r.db.QueryxContext(ctx, `SELECT state, COUNT(*) FROM bulletins WHERE batch_id = $1 AND term_id = $2 GROUP BY state`, key.BatchID, key.TermID)
	if err != nil {
		return nil, fmt.Errorf("count bulletins by state: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var state models.BulletinState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("scan state count: %w", err)
		}
		stats.ByState[state] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state counts: %w", err)
	}

	const avgQuery = `SELECT COALESCE(AVG(overall_average), 0) FROM bulletins
        WHERE batch_id = $1 AND term_id = $2 AND state IN ('calculated', 'validated', 'published')`
	if err := r.db.GetContext(ctx, &stats.AverageOverall, avgQuery, key.BatchID, key.TermID); err != nil {
		return nil, fmt.Errorf("average overall: %w", err)
	}

	const leaderboard = `SELECT b.id AS bulletin_id, b.student_id, COALESCE(s.full_name, '') AS student_name, b.overall_average, b.class_rank
        FROM bulletins b LEFT JOIN students s ON s.id = b.student_id
        WHERE b.batch_id = $1 AND b.term_id = $2 AND b.state IN ('calculated', 'validated', 'published') AND %s
        ORDER BY b.overall_average %s, b.student_id LIMIT $4`
	if err := r.db.SelectContext(ctx, &stats.TopStudents, fmt.Sprintf(leaderboard, "b.overall_average >= $3", "DESC"), key.BatchID, key.TermID, topThreshold, limit); err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.LowPerformers, fmt.Sprintf(leaderboard, "b.overall_average < $3", "ASC"), key.BatchID, key.TermID, lowThreshold, limit); err != nil {
		return nil, fmt.Errorf("low performers: %w", err)
	}

	const subjectQuery = `SELECT l.subject_id, MAX(l.subject_name) AS subject_name, AVG(l.subject_average) AS average,
        MIN(l.subject_average) AS min, MAX(l.subject_average) AS max
        FROM bulletin_lines l JOIN bulletins b ON b.id = l.bulletin_id
        WHERE b.batch_id = $1 AND b.term_id = $2 AND b.state IN ('calculated', 'validated', 'published')
        GROUP BY l.subject_id ORDER BY subject_name`
	if err := r.db.SelectContext(ctx, &stats.SubjectAverages, subjectQuery, key.BatchID, key.TermID); err != nil {
		return nil, fmt.Errorf("subject averages: %w", err)
	}

	return stats, nil
}

func (r *BulletinRepository) linesFor(ctx context.Context, bulletinIDs []string) (map[string][]models.BulletinLine, error) {
	query := fmt.Sprintf(`SELECT %s FROM bulletin_lines WHERE bulletin_id = ANY($1) ORDER BY subject_name, subject_id`, lineColumns)
	var lines []models.BulletinLine
	if err := r.db.SelectContext(ctx, &lines, query, pq.Array(bulletinIDs)); err != nil {
		return nil, fmt.Errorf("list bulletin lines: %w", err)
	}
	result := make(map[string][]models.BulletinLine, len(bulletinIDs))
	for _, line := range lines {
		result[line.BulletinID] = append(result[line.BulletinID], line)
	}
	return result, nil
}

func insertLines(ctx context.Context, tx *sqlx.Tx, bulletinID string, lines []models.BulletinLine, now time.Time) error {
	const query = `INSERT INTO bulletin_lines (id, bulletin_id, subject_id, subject_name, control_score, composition_score,
        homework_score, oral_score, practical_score, subject_average, coefficient, appreciation, subject_rank, incomplete, preserved, updated_at)
        VALUES (:id, :bulletin_id, :subject_id, :subject_name, :control_score, :composition_score,
        :homework_score, :oral_score, :practical_score, :subject_average, :coefficient, :appreciation, :subject_rank, :incomplete, :preserved, :updated_at)`
	for i := range lines {
		if lines[i].ID == "" {
			lines[i].ID = uuid.NewString()
		}
		lines[i].BulletinID = bulletinID
		lines[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, &lines[i]); err != nil {
			return fmt.Errorf("insert bulletin line: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
