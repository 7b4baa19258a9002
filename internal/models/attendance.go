package models

// AttendanceStatus is the daily attendance code recorded per enrollment.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "H"
	AttendanceStatusSick    AttendanceStatus = "S"
	AttendanceStatusExcused AttendanceStatus = "I"
	AttendanceStatusAbsent  AttendanceStatus = "A"
)

// AttendanceSummary counts a student's attendance days inside one term.
// Sick and excused days are justified absences; absent days are unjustified.
type AttendanceSummary struct {
	Present     int `json:"present"`
	Justified   int `json:"justified"`
	Unjustified int `json:"unjustified"`
	Total       int `json:"total"`
}
