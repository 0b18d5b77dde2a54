package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sejf-plikow/internal/models"
)

func (q *Queries) InsertAuditEvent(ctx context.Context, event *models.AuditEvent) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit detail: %w", err)
	}

	query := `
		INSERT INTO audit_events (actor_id, username, role, action, target_id, target_type, outcome, detail, client_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = q.db.Exec(ctx, query,
		event.ActorID,
		event.Username,
		event.Role,
		event.Action,
		event.TargetID,
		event.TargetType,
		event.Outcome,
		detail,
		event.ClientIP,
		event.UserAgent,
	)
	return err
}

// AuditFilter narrows ListAuditEvents. Zero values mean "no filter".
type AuditFilter struct {
	From          time.Time
	To            time.Time
	Action        models.AuditAction
	Outcome       models.AuditOutcome
	ActorContains string
	Limit         int
	Offset        int
}

func (q *Queries) ListAuditEvents(ctx context.Context, filter AuditFilter) ([]models.AuditEvent, error) {
	var conditions []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.Outcome != "" {
		add("outcome = $%d", filter.Outcome)
	}
	if filter.ActorContains != "" {
		add("username ILIKE $%d", "%"+filter.ActorContains+"%")
	}

	query := `
		SELECT id, actor_id, username, role, action, target_id, target_type, outcome, detail, client_ip, user_agent, created_at
		FROM audit_events
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var event models.AuditEvent
		var detail []byte
		err := rows.Scan(
			&event.ID,
			&event.ActorID,
			&event.Username,
			&event.Role,
			&event.Action,
			&event.TargetID,
			&event.TargetType,
			&event.Outcome,
			&detail,
			&event.ClientIP,
			&event.UserAgent,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &event.Detail); err != nil {
				return nil, err
			}
		}
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if events == nil {
		return []models.AuditEvent{}, nil
	}
	return events, nil
}

// PruneAuditEvents enforces the count cap by evicting the oldest rows.
func (q *Queries) PruneAuditEvents(ctx context.Context, keep int) error {
	query := `
		DELETE FROM audit_events
		WHERE id < (
			SELECT COALESCE(MIN(id), 0)
			FROM (SELECT id FROM audit_events ORDER BY id DESC LIMIT $1) newest
		)
	`
	_, err := q.db.Exec(ctx, query, keep)
	return err
}
