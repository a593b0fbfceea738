package dto

import (
	"time"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

type TriggerMatchingRequest struct {
	MaxMatches int `json:"max_matches" binding:"omitempty,min=1,max=100"`
}

type ExpireMatchesResponse struct {
	MatchesExpired int    `json:"matches_expired"`
	Message        string `json:"message"`
}

type PublishJobResponse struct {
	JobID          int64      `json:"job_id"`
	Status         string     `json:"status"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	MatchingQueued bool       `json:"matching_queued"`
}

type ListMatchesRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListMatchesResponse struct {
	Matches    []MatchDTO `json:"matches"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

type RespondRequest struct {
	Response string `json:"response" binding:"required,oneof=yes no"`
}

type MatchDTO struct {
	MatchID          int64      `json:"match_id"`
	JobID            int64      `json:"job_id"`
	WorkerID         int64      `json:"worker_id"`
	MatchScore       float64    `json:"match_score"`
	DistanceKm       float64    `json:"distance_km"`
	Status           string     `json:"status"`
	SentAt           time.Time  `json:"sent_at"`
	ResponseDeadline time.Time  `json:"response_deadline"`
	RespondedAt      *time.Time `json:"responded_at,omitempty"`
	WorkerResponse   string     `json:"worker_response,omitempty"`
	LeadPrice        float64    `json:"lead_price"`
	IsUnlocked       bool       `json:"is_unlocked"`
}

// NewMatchDTO converts a stored match to its API representation
func NewMatchDTO(m domain.JobMatch) MatchDTO {
	return MatchDTO{
		MatchID:          m.ID,
		JobID:            m.JobID,
		WorkerID:         m.WorkerID,
		MatchScore:       m.MatchScore,
		DistanceKm:       m.DistanceKm,
		Status:           string(m.Status),
		SentAt:           m.SentAt,
		ResponseDeadline: m.ResponseDeadline,
		RespondedAt:      m.RespondedAt,
		WorkerResponse:   m.WorkerResponse,
		LeadPrice:        m.LeadPrice,
		IsUnlocked:       m.IsUnlocked,
	}
}
