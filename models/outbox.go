package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

const (
	EventChitCreated         = "chit.created"
	EventChitUpdated         = "chit.updated"
	EventChitStatusChanged   = "chit.status_changed"
	EventChitDeleted         = "chit.deleted"
	EventChitPaymentRecorded = "chit.payment_recorded"
	EventChitSettled         = "chit.settled"
	EventRateUpdated         = "rate.updated"
	EventOrderCreated        = "order.created"
	EventOrderCancelled      = "order.cancelled"
)

const (
	AggregateChit  = "chit"
	AggregateRate  = "rate"
	AggregateOrder = "order"
)

// OutboxRecord is written in the same transaction as the change it
// describes and published after commit by workflow.OutboxDispatcher.
type OutboxRecord struct {
	ID               int        `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	BusinessId       string     `gorm:"size:64;not null;index" json:"business_id"`
	EventType        string     `gorm:"size:64;not null;index" json:"event_type"`
	AggregateType    string     `gorm:"size:32;not null" json:"aggregate_type"`
	AggregateId      int        `gorm:"index;not null" json:"aggregate_id"`
	Payload          []byte     `gorm:"type:blob" json:"payload"`
	OccurredAt       time.Time  `gorm:"not null" json:"occurred_at"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (r OutboxRecord) ToDomainEvent() config.DomainEvent {
	return config.DomainEvent{
		ID:            r.ID,
		BusinessId:    r.BusinessId,
		EventType:     r.EventType,
		AggregateType: r.AggregateType,
		AggregateId:   r.AggregateId,
		OccurredAt:    r.OccurredAt,
		Payload:       json.RawMessage(r.Payload),
		CorrelationId: r.CorrelationId,
	}
}

func enqueueEvent(tx *gorm.DB, eventType string, aggregateType string, aggregateId int, payload interface{}) error {
	ctx := tx.Statement.Context
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return utils.ErrBusinessIdRequired
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	record := OutboxRecord{
		BusinessId:    businessId,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateId:   aggregateId,
		Payload:       data,
		OccurredAt:    time.Now().UTC(),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}

// GetOutboxEvents lists an aggregate's events, oldest first.
func GetOutboxEvents(ctx context.Context, aggregateType string, aggregateId int) ([]*OutboxRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	var results []*OutboxRecord
	err := config.GetDB().WithContext(ctx).
		Where("business_id = ? AND aggregate_type = ? AND aggregate_id = ?", businessId, aggregateType, aggregateId).
		Order("id").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ReplayOutboxRecord puts a FAILED or DEAD event back in the dispatch queue.
func ReplayOutboxRecord(ctx context.Context, id int) (*OutboxRecord, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	record, err := utils.FetchModel[OutboxRecord](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	if record.PublishStatus != OutboxPublishStatusFailed && record.PublishStatus != OutboxPublishStatusDead {
		return nil, utils.NewValidationError("only failed or dead events can be replayed")
	}

	now := time.Now().UTC()
	err = config.GetDB().WithContext(ctx).Model(record).Updates(map[string]interface{}{
		"publish_status":     OutboxPublishStatusFailed,
		"publish_attempts":   0,
		"next_attempt_at":    &now,
		"locked_at":          nil,
		"locked_by":          nil,
		"last_publish_error": nil,
	}).Error
	if err != nil {
		return nil, err
	}
	return utils.FetchModel[OutboxRecord](ctx, businessId, id)
}
