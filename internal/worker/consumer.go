package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/partimer-be/internal/matching/domain"
)

// setupConsumer applies QoS and starts consuming with manual acknowledgement
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	if err := w.broker.Qos(w.prefetchCount); err != nil {
		return nil, err
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	deliveries, err := w.broker.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.String("consumer_tag", w.workerID),
		slog.String("queue", w.queueName),
	)
	return deliveries, nil
}

// decodeRequest parses and validates a matching request body
func decodeRequest(body []byte) (domain.MatchingRequest, error) {
	var req domain.MatchingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("malformed message: %w", err)
	}
	if req.JobID <= 0 {
		return req, &domain.ValidationError{Field: "job_id", Msg: "must be a positive integer"}
	}
	if req.MaxMatches < 0 {
		return req, &domain.ValidationError{Field: "max_matches", Msg: "must not be negative"}
	}
	return req, nil
}

// startMessageDispatcher hands deliveries to the pool until ctx is done or
// the delivery channel closes
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			req, err := decodeRequest(delivery.Body)
			if err != nil {
				w.logger.Error("Rejecting invalid matching request",
					slog.String("error", err.Error()),
					slog.String("body", string(delivery.Body)),
				)
				// Invalid payloads go to the dead-letter exchange, if any
				if nackErr := delivery.Nack(false, false); nackErr != nil {
					w.logger.Error("Failed to NACK invalid message",
						slog.String("error", nackErr.Error()),
					)
				}
				continue
			}

			msg := &domain.MatchMessage{
				Request:     req,
				DeliveryTag: delivery.DeliveryTag,
			}

			select {
			case w.jobsChan <- msg:
				w.logger.Debug("Matching request dispatched to worker pool",
					slog.Int64("job_id", req.JobID),
					slog.Uint64("delivery_tag", delivery.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching request")
				if nackErr := delivery.Nack(false, true); nackErr != nil {
					w.logger.Error("Failed to NACK message on shutdown",
						slog.String("error", nackErr.Error()),
					)
				}
				return
			}
		}
	}
}
