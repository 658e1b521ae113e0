package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jewelshot/internal/infra"
	"jewelshot/internal/optimize"
	"jewelshot/internal/sqlinline"
)

// ErrNoItem signals an empty queue on claim, or an unknown id on lookup.
var ErrNoItem = errors.New("queue: no item available")

// QueueItem is one image's persisted journey through the optimization queue.
type QueueItem struct {
	ID           string
	ImageURL     string
	FileID       string
	Prompt       string
	Settings     optimize.Settings
	Status       string
	Progress     int
	OptimizedURL string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// QueueRepository persists queue items. One item is processed by at most one
// worker at a time; the claim query's status transition is the guard.
type QueueRepository struct {
	sql infra.SQLExecutor
}

// NewQueueRepository constructs the repository.
func NewQueueRepository(sql infra.SQLExecutor) *QueueRepository {
	return &QueueRepository{sql: sql}
}

// Enqueue inserts a pending item and returns its id.
func (r *QueueRepository) Enqueue(ctx context.Context, imageURL, fileID, prompt string, settings optimize.Settings) (string, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("queue: encode settings: %w", err)
	}
	id := uuid.NewString()
	row := r.sql.QueryRow(ctx, sqlinline.QEnqueueQueueItem, id, imageURL, fileID, prompt, settingsJSON)
	var inserted string
	if err := row.Scan(&inserted); err != nil {
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return inserted, nil
}

// Claim atomically moves the oldest pending item to processing and reports
// the first checkpoint. Returns ErrNoItem when the queue is empty.
func (r *QueueRepository) Claim(ctx context.Context) (*QueueItem, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QClaimQueueItem)
	var item QueueItem
	var settingsJSON []byte
	if err := row.Scan(&item.ID, &item.ImageURL, &item.FileID, &item.Prompt, &settingsJSON); err != nil {
		if infra.IsNoRows(err) {
			return nil, ErrNoItem
		}
		return nil, fmt.Errorf("queue: claim: %w", err)
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &item.Settings); err != nil {
			return nil, fmt.Errorf("queue: decode settings: %w", err)
		}
	}
	item.Status = "processing"
	item.Progress = optimize.CheckpointClaimed
	return &item, nil
}

// Progress advances the item's checkpoint. The query refuses to move the
// percentage backwards.
func (r *QueueRepository) Progress(ctx context.Context, id string, percent int) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateQueueProgress, id, percent)
	if err != nil {
		return fmt.Errorf("queue: progress: %w", err)
	}
	return nil
}

// Complete writes the terminal status, the final artifact URL, and 100%.
func (r *QueueRepository) Complete(ctx context.Context, id, status, optimizedURL, errMessage string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QCompleteQueueItem, id, status, optimizedURL, errMessage)
	if err != nil {
		return fmt.Errorf("queue: complete: %w", err)
	}
	return nil
}

// ItemByID fetches one queue item.
func (r *QueueRepository) ItemByID(ctx context.Context, id string) (*QueueItem, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectQueueItem, id)
	var item QueueItem
	var settingsJSON []byte
	if err := row.Scan(
		&item.ID,
		&item.ImageURL,
		&item.FileID,
		&item.Prompt,
		&settingsJSON,
		&item.Status,
		&item.Progress,
		&item.OptimizedURL,
		&item.ErrorMessage,
		&item.CreatedAt,
		&item.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, ErrNoItem
		}
		return nil, fmt.Errorf("queue: item lookup: %w", err)
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &item.Settings); err != nil {
			return nil, fmt.Errorf("queue: decode settings: %w", err)
		}
	}
	return &item, nil
}

// HistoryRecord captures one finished optimization for the history view.
type HistoryRecord struct {
	QueueItemID  string
	Title        string
	OriginalURL  string
	OptimizedURL string
	Status       string
	TaskID       string
}

// InsertHistory appends a history record.
func (r *QueueRepository) InsertHistory(ctx context.Context, rec HistoryRecord) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertHistory,
		rec.QueueItemID, rec.Title, rec.OriginalURL, rec.OptimizedURL, rec.Status, rec.TaskID)
	if err != nil {
		return fmt.Errorf("queue: insert history: %w", err)
	}
	return nil
}
