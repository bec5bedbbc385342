package reports

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// outcomeMessage mirrors the payload the orchestrator publishes to the
// pipeline-outcomes topic
type outcomeMessage struct {
	EventID            uint      `json:"event_id"`
	Title              string    `json:"title"`
	Status             string    `json:"status"`
	ConfirmationNumber string    `json:"confirmation_number"`
	Message            string    `json:"message"`
	AttemptedAt        time.Time `json:"attempted_at"`
}

// StartOutcomeConsumer drains the pipeline-outcomes topic into Postgres so
// reports can be built without replaying Kafka. Blocks until ctx is done.
func StartOutcomeConsumer(ctx context.Context, reader *kafka.Reader, repo Repository) {
	log.Println("📥 Outcome consumer started")
	defer reader.Close()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("📥 Outcome consumer stopped")
				return
			}
			log.Printf("⚠️ Failed to read outcome message: %v", err)
			continue
		}

		var payload outcomeMessage
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			log.Printf("⚠️ Skipping malformed outcome message at offset %d: %v", msg.Offset, err)
			continue
		}

		outcome := &PipelineOutcome{
			EventID:            payload.EventID,
			Title:              payload.Title,
			Status:             payload.Status,
			ConfirmationNumber: payload.ConfirmationNumber,
			Message:            payload.Message,
			AttemptedAt:        payload.AttemptedAt,
		}
		if err := repo.Create(ctx, outcome); err != nil {
			log.Printf("❌ Failed to persist outcome for event %d: %v", payload.EventID, err)
		}
	}
}
