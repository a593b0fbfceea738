package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/partimer-be/internal/api/dto"
	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// TriggerMatching handles POST /api/v1/matching/jobs/:job_id/trigger
func (h *MatchingHandler) TriggerMatching(c *gin.Context) {
	jobID, ok := parseID(c, "job_id")
	if !ok {
		return
	}

	// The body is optional
	var req dto.TriggerMatchingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	h.logger.Info("TriggerMatching called",
		slog.Int64("job_id", jobID),
		slog.Int("max_matches", req.MaxMatches),
	)

	result, err := h.matching.TriggerMatching(c.Request.Context(), jobID, req.MaxMatches)
	if err != nil {
		respondError(c, h.logger, err, "Failed to run matching")
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExpireMatches handles POST /api/v1/matching/expire
func (h *MatchingHandler) ExpireMatches(c *gin.Context) {
	count, err := h.matching.ExpireNow(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to expire matches")
		return
	}

	c.JSON(http.StatusOK, dto.ExpireMatchesResponse{
		MatchesExpired: count,
		Message:        fmt.Sprintf("Marked %d matches as expired", count),
	})
}

// PublishJob handles POST /api/v1/jobs/:job_id/publish
// Opens a DRAFT job and queues a matching run for it
func (h *MatchingHandler) PublishJob(c *gin.Context) {
	jobID, ok := parseID(c, "job_id")
	if !ok {
		return
	}

	job, err := h.matching.PublishJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to publish job")
		return
	}

	queued := true
	if err := h.queue.PublishJSON(c.Request.Context(), domain.MatchingRequest{JobID: job.ID}); err != nil {
		// The job stays OPEN and can be matched through the trigger endpoint
		queued = false
		h.logger.Error("Failed to enqueue matching request",
			slog.Int64("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Info("Job published",
		slog.Int64("job_id", job.ID),
		slog.Bool("matching_queued", queued),
	)

	c.JSON(http.StatusOK, dto.PublishJobResponse{
		JobID:          job.ID,
		Status:         string(job.Status),
		PublishedAt:    job.PublishedAt,
		MatchingQueued: queued,
	})
}

// ListJobMatches handles GET /api/v1/jobs/:job_id/matches
// Lists the leads of a job, ACCEPTED ones unless another status is requested
func (h *MatchingHandler) ListJobMatches(c *gin.Context) {
	jobID, ok := parseID(c, "job_id")
	if !ok {
		return
	}

	var req dto.ListMatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}
	status, ok := parseMatchStatus(c, req.Status, domain.MatchStatusAccepted)
	if !ok {
		return
	}

	matches, err := h.matching.ListJobMatches(c.Request.Context(), jobID, status)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list matches")
		return
	}

	h.writePage(c, matches, req)
}

// ListWorkerOffers handles GET /api/v1/workers/:worker_id/offers
func (h *MatchingHandler) ListWorkerOffers(c *gin.Context) {
	workerID, ok := parseID(c, "worker_id")
	if !ok {
		return
	}

	var req dto.ListMatchesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}
	status, ok := parseMatchStatus(c, req.Status, "")
	if !ok {
		return
	}

	offers, err := h.matching.ListWorkerOffers(c.Request.Context(), workerID, status)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list offers")
		return
	}

	h.writePage(c, offers, req)
}

func (h *MatchingHandler) writePage(c *gin.Context, matches []domain.JobMatch, req dto.ListMatchesRequest) {
	cursor, err := DecodeMatchCursor(req.Cursor)
	if err != nil {
		h.logger.Debug("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	page, next := paginate(matches, cursor, req.PageSize)

	out := make([]dto.MatchDTO, 0, len(page))
	for _, m := range page {
		out = append(out, dto.NewMatchDTO(m))
	}

	c.JSON(http.StatusOK, dto.ListMatchesResponse{
		Matches:    out,
		NextCursor: next,
	})
}

// RespondToOffer handles POST /api/v1/workers/:worker_id/offers/:match_id/respond
func (h *MatchingHandler) RespondToOffer(c *gin.Context) {
	workerID, ok := parseID(c, "worker_id")
	if !ok {
		return
	}
	matchID, ok := parseID(c, "match_id")
	if !ok {
		return
	}

	var req dto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "response must be yes or no",
		})
		return
	}

	match, err := h.matching.RespondToMatch(c.Request.Context(), workerID, matchID, req.Response)
	if err != nil {
		if errors.Is(err, domain.ErrDeadlinePassed) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Response deadline has passed",
				"match": dto.NewMatchDTO(*match),
			})
			return
		}
		respondError(c, h.logger, err, "Failed to record response")
		return
	}

	c.JSON(http.StatusOK, dto.NewMatchDTO(*match))
}
