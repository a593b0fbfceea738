package domain

import "time"

// DefaultLeadPrice is the fixed price an employer pays to unlock a lead.
const DefaultLeadPrice = 3.0

// Worker represents a worker profile as read from the workers table
type Worker struct {
	ID               int64        `db:"id"`
	FullName         string       `db:"full_name"`
	Age              *int         `db:"age"`
	Gender           string       `db:"gender"`
	City             string       `db:"city"`
	Latitude         *float64     `db:"latitude"`
	Longitude        *float64     `db:"longitude"`
	MaxCommuteKm     float64      `db:"max_commute_km"`
	Skills           string       `db:"skills"`
	ExperienceYears  int          `db:"experience_years"`
	ReliabilityScore float64      `db:"reliability_score"`
	Status           WorkerStatus `db:"status"`
	TotalAccepted    int          `db:"total_jobs_accepted"`
	TotalRejected    int          `db:"total_jobs_rejected"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

// HasLocation reports whether both coordinates are known.
func (w *Worker) HasLocation() bool {
	return w.Latitude != nil && w.Longitude != nil
}

// Availability is a recurring weekly slot in which a worker is willing to work
type Availability struct {
	ID        int64     `db:"id"`
	WorkerID  int64     `db:"worker_id"`
	DayOfWeek DayOfWeek `db:"day_of_week"`
	StartTime string    `db:"start_time"` // HH:MM
	EndTime   string    `db:"end_time"`   // HH:MM
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

// Job represents an employer's posting for part-time workers
type Job struct {
	ID                    int64      `db:"id"`
	EmployerID            int64      `db:"employer_id"`
	Title                 string     `db:"title"`
	City                  string     `db:"city"`
	Latitude              *float64   `db:"latitude"`
	Longitude             *float64   `db:"longitude"`
	WorkDays              string     `db:"work_days"` // comma-separated, empty means any day
	WorkHoursStart        string     `db:"work_hours_start"`
	WorkHoursEnd          string     `db:"work_hours_end"`
	RequiredSkills        string     `db:"required_skills"`
	MinAge                *int       `db:"min_age"`
	GenderPreference      string     `db:"gender_preference"`
	MaxRadiusKm           float64    `db:"max_radius_km"`
	ResponseDeadlineHours int        `db:"response_deadline_hours"`
	WorkersNeeded         int        `db:"workers_needed"`
	WorkersMatched        int        `db:"workers_matched"`
	Status                JobStatus  `db:"status"`
	PublishedAt           *time.Time `db:"published_at"`
	CreatedAt             time.Time  `db:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at"`
}

// HasLocation reports whether both coordinates are known.
func (j *Job) HasLocation() bool {
	return j.Latitude != nil && j.Longitude != nil
}

// JobMatch is a lead: one job offered to one worker.
type JobMatch struct {
	ID               int64       `db:"id"`
	JobID            int64       `db:"job_id"`
	WorkerID         int64       `db:"worker_id"`
	MatchScore       float64     `db:"match_score"`
	DistanceKm       float64     `db:"distance_km"`
	Status           MatchStatus `db:"status"`
	SentAt           time.Time   `db:"sent_at"`
	ResponseDeadline time.Time   `db:"response_deadline"`
	RespondedAt      *time.Time  `db:"responded_at"`
	WorkerResponse   string      `db:"worker_response"`
	LeadPrice        float64     `db:"lead_price"`
	IsUnlocked       bool        `db:"is_unlocked"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

// MatchResult is reported back to callers of a matching run
type MatchResult struct {
	JobID          int64     `json:"job_id"`
	MatchesCreated int       `json:"matches_created"`
	JobStatus      JobStatus `json:"job_status"`
}

// MatchingRequest is the queue message asking the worker service to run matching for a job
type MatchingRequest struct {
	JobID      int64 `json:"job_id"`
	MaxMatches int   `json:"max_matches,omitempty"`
}

// MatchMessage pairs a MatchingRequest with its RabbitMQ delivery tag
type MatchMessage struct {
	Request     MatchingRequest
	DeliveryTag uint64
}
