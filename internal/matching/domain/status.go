// Package domain holds the marketplace entities and their lifecycle states.
//
// Match lifecycle:
//
//	PENDING ──► ACCEPTED ──► UNLOCKED
//	   │
//	   ├──────► REJECTED
//	   └──────► EXPIRED
//
// REJECTED, EXPIRED and UNLOCKED are terminal.
package domain

import (
	"fmt"
	"strings"
)

// WorkerStatus mirrors the worker_status enum in PostgreSQL.
type WorkerStatus string

const (
	WorkerStatusPending   WorkerStatus = "pending"
	WorkerStatusActive    WorkerStatus = "active"
	WorkerStatusInactive  WorkerStatus = "inactive"
	WorkerStatusSuspended WorkerStatus = "suspended"
)

// ParseWorkerStatus converts a raw string to a WorkerStatus.
func ParseWorkerStatus(s string) (WorkerStatus, error) {
	st := WorkerStatus(strings.ToLower(s))
	switch st {
	case WorkerStatusPending, WorkerStatusActive, WorkerStatusInactive, WorkerStatusSuspended:
		return st, nil
	}
	return "", fmt.Errorf("unknown worker status %q", s)
}

// JobStatus mirrors the job_status enum in PostgreSQL.
type JobStatus string

const (
	JobStatusDraft     JobStatus = "draft"
	JobStatusOpen      JobStatus = "open"
	JobStatusMatching  JobStatus = "matching"
	JobStatusFilled    JobStatus = "filled"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusCompleted JobStatus = "completed"
)

// ParseJobStatus converts a raw string to a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(strings.ToLower(s))
	switch st {
	case JobStatusDraft, JobStatusOpen, JobStatusMatching, JobStatusFilled, JobStatusCancelled, JobStatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsMatchable reports whether leads may be generated for a job in status s.
func (s JobStatus) IsMatchable() bool {
	return s == JobStatusOpen || s == JobStatusMatching
}

// MatchStatus mirrors the match_status enum in PostgreSQL.
type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusAccepted MatchStatus = "accepted"
	MatchStatusRejected MatchStatus = "rejected"
	MatchStatusExpired  MatchStatus = "expired"
	MatchStatusUnlocked MatchStatus = "unlocked"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:  {MatchStatusAccepted, MatchStatusRejected, MatchStatusExpired},
	MatchStatusAccepted: {MatchStatusUnlocked},
}

// ParseMatchStatus converts a raw string to a MatchStatus.
func ParseMatchStatus(s string) (MatchStatus, error) {
	st := MatchStatus(strings.ToLower(s))
	switch st {
	case MatchStatusPending, MatchStatusAccepted, MatchStatusRejected, MatchStatusExpired, MatchStatusUnlocked:
		return st, nil
	}
	return "", fmt.Errorf("unknown match status %q", s)
}

// CanTransition returns true when moving a match from s to the given status is permitted.
func (s MatchStatus) CanTransition(to MatchStatus) bool {
	for _, next := range matchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s MatchStatus) IsTerminal() bool {
	return len(matchTransitions[s]) == 0
}

// DayOfWeek mirrors the day_of_week enum in PostgreSQL.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// ParseDayOfWeek converts a raw string to a DayOfWeek, ignoring case and
// surrounding whitespace.
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	d := DayOfWeek(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday:
		return d, nil
	}
	return "", fmt.Errorf("unknown day of week %q", s)
}
