package service

import (
	"sort"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
)

// BulletinCalculator computes overall averages and cohort ranks.
type BulletinCalculator struct{}

// NewBulletinCalculator constructs the calculator.
func NewBulletinCalculator() *BulletinCalculator {
	return &BulletinCalculator{}
}

// OverallAverage is the coefficient-weighted mean of the line averages, 0 without lines.
func (c *BulletinCalculator) OverallAverage(lines []models.BulletinLine) float64 {
	var weighted, coefficients float64
	for _, line := range lines {
		if line.Coefficient <= 0 {
			continue
		}
		weighted += line.SubjectAverage * line.Coefficient
		coefficients += line.Coefficient
	}
	if coefficients == 0 {
		return 0
	}
	return roundGrade(weighted / coefficients)
}

// Rank orders the ranked bulletins of one cohort by overall average, highest first.
// Ties are broken by student ID so the order is reproducible. Drafts and archived
// bulletins are excluded and receive no assignment.
func (c *BulletinCalculator) Rank(bulletins []models.Bulletin) []models.RankAssignment {
	participants := make([]*models.Bulletin, 0, len(bulletins))
	for i := range bulletins {
		if bulletins[i].State.Ranked() {
			participants = append(participants, &bulletins[i])
		}
	}
	if len(participants) == 0 {
		return nil
	}

	sort.SliceStable(participants, func(i, j int) bool {
		return before(participants[i].OverallAverage, participants[i].StudentID, participants[j].OverallAverage, participants[j].StudentID)
	})

	var total float64
	for _, b := range participants {
		total += b.OverallAverage
	}
	size := len(participants)
	classAverage := roundGrade(total / float64(size))

	lineRanks := c.subjectRanks(participants)

	assignments := make([]models.RankAssignment, size)
	for i, b := range participants {
		assignments[i] = models.RankAssignment{
			BulletinID:   b.ID,
			ClassRank:    i + 1,
			ClassSize:    size,
			ClassAverage: classAverage,
			LineRanks:    lineRanks[b.ID],
		}
	}
	return assignments
}

// Apply copies assignments onto the matching bulletins in place.
func (c *BulletinCalculator) Apply(bulletins []models.Bulletin, assignments []models.RankAssignment) {
	byID := make(map[string]models.RankAssignment, len(assignments))
	for _, a := range assignments {
		byID[a.BulletinID] = a
	}
	for i := range bulletins {
		a, ok := byID[bulletins[i].ID]
		if !ok {
			bulletins[i].ClassRank, bulletins[i].ClassSize, bulletins[i].ClassAverage = nil, nil, nil
			continue
		}
		applyAssignment(&bulletins[i], a)
	}
}

func applyAssignment(b *models.Bulletin, a models.RankAssignment) {
	rank, size, avg := a.ClassRank, a.ClassSize, a.ClassAverage
	b.ClassRank, b.ClassSize, b.ClassAverage = &rank, &size, &avg
	for j := range b.Lines {
		if r, ok := a.LineRanks[b.Lines[j].ID]; ok {
			r := r
			b.Lines[j].SubjectRank = &r
		}
	}
}

type subjectEntry struct {
	bulletinID string
	lineID     string
	studentID  string
	average    float64
}

// subjectRanks ranks every subject independently across participants, keyed by bulletin then line.
func (c *BulletinCalculator) subjectRanks(participants []*models.Bulletin) map[string]map[string]int {
	bySubject := make(map[string][]subjectEntry)
	for _, b := range participants {
		for _, line := range b.Lines {
			if line.ID == "" {
				continue
			}
			bySubject[line.SubjectID] = append(bySubject[line.SubjectID], subjectEntry{
				bulletinID: b.ID,
				lineID:     line.ID,
				studentID:  b.StudentID,
				average:    line.SubjectAverage,
			})
		}
	}

	out := make(map[string]map[string]int, len(participants))
	for _, entries := range bySubject {
		sort.SliceStable(entries, func(i, j int) bool {
			return before(entries[i].average, entries[i].studentID, entries[j].average, entries[j].studentID)
		})
		for pos, e := range entries {
			if out[e.bulletinID] == nil {
				out[e.bulletinID] = make(map[string]int)
			}
			out[e.bulletinID][e.lineID] = pos + 1
		}
	}
	return out
}

func before(avgA float64, studentA string, avgB float64, studentB string) bool {
	if avgA != avgB {
		return avgA > avgB
	}
	return studentA < studentB
}
