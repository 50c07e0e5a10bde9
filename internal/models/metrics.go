package models

import "time"

// SchedulingMetrics summarises conflict engine activity since process start.
type SchedulingMetrics struct {
	RequestsTotal      uint64    `json:"requests_total"`
	Detections         uint64    `json:"detections"`
	BlockingDetections uint64    `json:"blocking_detections"`
	AverageDetectionMs float64   `json:"average_detection_ms"`
	Committed          uint64    `json:"committed"`
	Rejected           uint64    `json:"rejected"`
	StaleSnapshots     uint64    `json:"stale_snapshots"`
	RoomConflicts      uint64    `json:"room_conflicts"`
	FacultyConflicts   uint64    `json:"faculty_conflicts"`
	StudentConflicts   uint64    `json:"student_conflicts"`
	Goroutines         int       `json:"goroutines"`
	GeneratedAt        time.Time `json:"generated_at"`
}
