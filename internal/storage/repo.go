package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var ErrNotFound = errors.New("not found")

func (s *Store) CreateGroup(ctx context.Context, name, description string) (int64, error) {
	q := s.sql.Insert("chat_groups").
		Columns("name", "description").
		Values(name, description)

	id, err := s.execInsert(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("create group: %w", err)
	}

	// Every group gets a settings row with the defaults.
	settings := s.sql.Insert("conversation_settings").
		Columns("group_id").
		Values(id)
	sqlStr, args, err := settings.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build settings insert query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return 0, fmt.Errorf("create group settings: %w", err)
	}
	return id, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]GroupSummary, error) {
	q := s.sql.Select(
		"id", "name", "description", "created_at",
		"(SELECT COUNT(*) FROM messages WHERE group_id = cg.id) AS message_count",
		"(SELECT MAX(timestamp) FROM messages WHERE group_id = cg.id) AS last_activity",
	).
		From("chat_groups cg").
		Where(sq.Eq{"is_active": true}).
		OrderBy("last_activity DESC NULLS LAST")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list groups query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	out := make([]GroupSummary, 0)
	for rows.Next() {
		var g GroupSummary
		var last sql.NullTime
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.MessageCount, &last); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		if last.Valid {
			t := last.Time
			g.LastActivity = &t
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}
	return out, nil
}

func (s *Store) GetGroup(ctx context.Context, groupID int64) (Group, error) {
	q := s.sql.Select("id", "name", "description", "rules", "is_active", "created_at", "updated_at").
		From("chat_groups").
		Where(sq.Eq{"id": groupID, "is_active": true})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Group{}, fmt.Errorf("build get group query: %w", err)
	}

	var g Group
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&g.ID, &g.Name, &g.Description, &g.Rules, &g.Active, &g.CreatedAt, &g.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Group{}, ErrNotFound
		}
		return Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *Store) GetGroupRules(ctx context.Context, groupID int64) (string, error) {
	q := s.sql.Select("rules").From("chat_groups").Where(sq.Eq{"id": groupID, "is_active": true})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", fmt.Errorf("build group rules query: %w", err)
	}
	var rules string
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&rules); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get group rules: %w", err)
	}
	return rules, nil
}

func (s *Store) UpdateGroupRules(ctx context.Context, groupID int64, rules string) error {
	q := s.sql.Update("chat_groups").
		Set("rules", rules).
		Set("updated_at", nowExpr(s.driver)).
		Where(sq.Eq{"id": groupID, "is_active": true})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update rules query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update group rules: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteGroup flips the active flag; rows are never physically removed so
// historical messages stay referenceable.
func (s *Store) SoftDeleteGroup(ctx context.Context, groupID int64) error {
	q := s.sql.Update("chat_groups").
		Set("is_active", false).
		Where(sq.Eq{"id": groupID, "is_active": true})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete group query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) GetGroupInfo(ctx context.Context, groupID int64) (GroupInfo, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return GroupInfo{}, err
	}
	info := GroupInfo{Group: g}

	pq := s.sql.Select("COUNT(*)").From("participants").Where(sq.Eq{"group_id": groupID, "is_active": true})
	sqlStr, args, err := pq.ToSql()
	if err != nil {
		return GroupInfo{}, fmt.Errorf("build participant count query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&info.ParticipantCount); err != nil {
		return GroupInfo{}, fmt.Errorf("count participants: %w", err)
	}

	mq := s.sql.Select("COUNT(*)").From("messages").Where(sq.Eq{"group_id": groupID})
	sqlStr, args, err = mq.ToSql()
	if err != nil {
		return GroupInfo{}, fmt.Errorf("build message count query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&info.MessageCount); err != nil {
		return GroupInfo{}, fmt.Errorf("count messages: %w", err)
	}

	last, err := s.RecentMessages(ctx, groupID, 1)
	if err != nil {
		return GroupInfo{}, err
	}
	if len(last) > 0 {
		info.LastMessage = &last[0]
	}
	return info, nil
}

func (s *Store) AddParticipant(ctx context.Context, p Participant) (int64, error) {
	// display_order is assigned monotonically per group.
	q := s.sql.Insert("participants").
		Columns("group_id", "name", "kind", "provider", "model", "persona", "display_order").
		Values(
			p.GroupID, p.Name, p.Kind,
			nullIfEmpty(p.Provider), nullIfEmpty(p.Model), nullIfEmpty(p.Persona),
			sq.Expr("(SELECT COALESCE(MAX(display_order), 0) + 1 FROM participants WHERE group_id = ?)", p.GroupID),
		)
	id, err := s.execInsert(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("add participant: %w", err)
	}
	return id, nil
}

func (s *Store) GetParticipant(ctx context.Context, participantID int64) (Participant, error) {
	q := s.sql.Select("id", "group_id", "name", "kind", "provider", "model", "persona", "display_order", "is_active", "created_at").
		From("participants").
		Where(sq.Eq{"id": participantID, "is_active": true})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return Participant{}, fmt.Errorf("build get participant query: %w", err)
	}

	p, err := scanParticipant(s.db.QueryRowContext(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Participant{}, ErrNotFound
		}
		return Participant{}, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *Store) ListParticipants(ctx context.Context, groupID int64) ([]Participant, error) {
	q := s.sql.Select("id", "group_id", "name", "kind", "provider", "model", "persona", "display_order", "is_active", "created_at").
		From("participants").
		Where(sq.Eq{"group_id": groupID, "is_active": true}).
		OrderBy("display_order ASC", "id ASC")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list participants query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := make([]Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant rows: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateParticipant(ctx context.Context, p Participant) error {
	q := s.sql.Update("participants").
		Set("name", p.Name).
		Set("kind", p.Kind).
		Set("provider", nullIfEmpty(p.Provider)).
		Set("model", nullIfEmpty(p.Model)).
		Set("persona", nullIfEmpty(p.Persona)).
		Where(sq.Eq{"id": p.ID, "is_active": true})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update participant query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SoftDeleteParticipant(ctx context.Context, participantID int64) error {
	q := s.sql.Update("participants").
		Set("is_active", false).
		Where(sq.Eq{"id": participantID, "is_active": true})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete participant query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentMessages returns up to limit rows, newest first. Ties on the
// second-resolution timestamp are broken by id so repeated reads are stable.
func (s *Store) RecentMessages(ctx context.Context, groupID int64, limit int64) ([]MessageView, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.sql.Select(
		"m.id", "m.content", "m.message_type", "m.timestamp",
		"p.name", "p.kind", "COALESCE(p.provider, '')",
	).
		From("messages m").
		Join("participants p ON m.participant_id = p.id").
		Where(sq.Eq{"m.group_id": groupID}).
		OrderBy("m.timestamp DESC", "m.id DESC").
		Limit(uint64(limit))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build recent messages query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	out := make([]MessageView, 0)
	for rows.Next() {
		var m MessageView
		if err := rows.Scan(&m.ID, &m.Content, &m.Kind, &m.Timestamp, &m.SpeakerName, &m.SpeakerKind, &m.Provider); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return out, nil
}

func (s *Store) InsertMessage(ctx context.Context, m NewMessage) (int64, error) {
	if m.Kind == "" {
		m.Kind = "normal"
	}
	q := s.sql.Insert("messages").
		Columns("group_id", "participant_id", "content", "message_type", "response_time_ms", "tokens_used", "parent_message_id").
		Values(m.GroupID, m.ParticipantID, m.Content, m.Kind, m.ResponseTimeMs, m.TokensUsed, m.ParentMessageID)
	id, err := s.execInsert(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	return id, nil
}

// GetConversationSettings falls back to the defaults when the group has no
// settings row.
func (s *Store) GetConversationSettings(ctx context.Context, groupID int64) (ConversationSettings, error) {
	q := s.sql.Select("group_id", "max_messages", "context_length", "turn_timeout_seconds", "auto_save").
		From("conversation_settings").
		Where(sq.Eq{"group_id": groupID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return ConversationSettings{}, fmt.Errorf("build settings query: %w", err)
	}

	var cs ConversationSettings
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&cs.GroupID, &cs.MaxMessages, &cs.ContextLength, &cs.TurnTimeoutSeconds, &cs.AutoSave,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DefaultSettings(groupID), nil
		}
		return ConversationSettings{}, fmt.Errorf("get settings: %w", err)
	}
	return cs, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	queries := []struct {
		q    sq.SelectBuilder
		dest *int64
	}{
		{s.sql.Select("COUNT(*)").From("chat_groups").Where(sq.Eq{"is_active": true}), &st.GroupCount},
		{s.sql.Select("COUNT(*)").From("participants").Where(sq.Eq{"is_active": true}), &st.ParticipantCount},
		{s.sql.Select("COUNT(*)").From("messages"), &st.MessageCount},
	}
	for _, item := range queries {
		sqlStr, args, err := item.q.ToSql()
		if err != nil {
			return Stats{}, fmt.Errorf("build stats query: %w", err)
		}
		if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(item.dest); err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (Participant, error) {
	var p Participant
	var provider, model, persona sql.NullString
	if err := row.Scan(
		&p.ID, &p.GroupID, &p.Name, &p.Kind,
		&provider, &model, &persona,
		&p.DisplayOrder, &p.Active, &p.CreatedAt,
	); err != nil {
		return Participant{}, err
	}
	p.Provider = provider.String
	p.Model = model.String
	p.Persona = persona.String
	return p, nil
}

// execInsert runs an insert and reports the new row id. Postgres needs
// RETURNING; sqlite supports LastInsertId.
func (s *Store) execInsert(ctx context.Context, q sq.InsertBuilder) (int64, error) {
	if s.driver == "postgres" {
		sqlStr, args, err := q.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert query: %w", err)
		}
		var id int64
		if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nowExpr(driver string) any {
	if driver == "postgres" {
		return sq.Expr("NOW()")
	}
	return sq.Expr("CURRENT_TIMESTAMP")
}
