package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hrleave/internal/platform/querier"
)

const (
	ActionRequestSubmit      = "request.submit"
	ActionRequestApprove     = "request.approve"
	ActionRequestReject      = "request.reject"
	ActionRequestCancel      = "request.cancel"
	ActionEmployeeCreate     = "employee.create"
	ActionEmployeeUpdate     = "employee.update"
	ActionEmployeeDeactivate = "employee.deactivate"
	ActionDepartmentCreate   = "department.create"
	ActionDepartmentUpdate   = "department.update"
	ActionDepartmentDelete   = "department.delete"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	ActorID    string
}

func (f Filter) Matches(evt Event) bool {
	if f.Action != "" && evt.Action != f.Action {
		return false
	}
	if f.EntityType != "" && evt.EntityType != f.EntityType {
		return false
	}
	if f.ActorID != "" && evt.ActorID != f.ActorID {
		return false
	}
	return true
}

type Store interface {
	InsertEvent(ctx context.Context, evt Event) error
	ListEvents(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error)
}

type Service struct {
	Store Store
}

func New(store Store) *Service {
	return &Service{Store: store}
}

func (s *Service) Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error {
	if s == nil || s.Store == nil {
		return nil
	}
	evt := Event{
		ID:         uuid.NewString(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  requestID,
		IP:         ip,
		CreatedAt:  time.Now().UTC(),
	}
	if before != nil {
		payload, err := json.Marshal(before)
		if err != nil {
			return err
		}
		evt.Before = payload
	}
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return err
		}
		evt.After = payload
	}
	return s.Store.InsertEvent(ctx, evt)
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error) {
	return s.Store.ListEvents(ctx, filter, limit, offset)
}

type PGStore struct {
	DB querier.Querier
}

func NewPGStore(db querier.Querier) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) InsertEvent(ctx context.Context, evt Event) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (id, actor_id, action, entity_type, entity_id, before_json, after_json, request_id, ip, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  `, evt.ID, nullable(evt.ActorID), evt.Action, evt.EntityType, evt.EntityID, rawOrNil(evt.Before), rawOrNil(evt.After), evt.RequestID, evt.IP, evt.CreatedAt)
	return err
}

func (s *PGStore) ListEvents(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error) {
	where, args := buildFilter(filter)

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM audit_events"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, coalesce(actor_id::text, ''), action, entity_type, entity_id, request_id, ip, created_at, before_json, after_json
    FROM audit_events` + where + " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		var before, after []byte
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt, &before, &after); err != nil {
			return nil, 0, err
		}
		evt.Before = before
		evt.After = after
		out = append(out, evt)
	}
	return out, total, rows.Err()
}

func buildFilter(filter Filter) (string, []any) {
	query := " WHERE 1=1"
	var args []any
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		query += fmt.Sprintf(" AND actor_id::text = $%d", len(args))
	}
	return query, args
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func rawOrNil(v json.RawMessage) []byte {
	if len(v) == 0 {
		return nil
	}
	return v
}
