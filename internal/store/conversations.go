// Package store holds the SQL the service runs through leased connections:
// conversation history and the menu.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"restoassist/internal/db"
)

type Turn struct {
	Role      string
	Content   string
	Tokens    int
	CreatedAt time.Time
}

// LoadHistory returns the most recent limit turns of a conversation, oldest
// first. An unknown conversation yields no turns.
func LoadHistory(ctx context.Context, q db.Querier, conversationID uuid.UUID, limit int) ([]Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `
		select role, content, tokens, created_at
		from (
			select id, role, content, tokens, created_at
			from conversation_messages
			where conversation_id = $1
			order by id desc
			limit $2
		) recent
		order by id asc
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.Tokens, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return out, nil
}

// AppendTurns stores turns on a conversation, creating the conversation on
// first use. One statement, so either every turn lands or none does.
func AppendTurns(ctx context.Context, q db.Querier, conversationID uuid.UUID, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	roles := make([]string, len(turns))
	contents := make([]string, len(turns))
	tokens := make([]int32, len(turns))
	for i, t := range turns {
		roles[i] = t.Role
		contents[i] = t.Content
		tokens[i] = int32(t.Tokens)
	}

	_, err := q.Exec(ctx, `
		with conv as (
			insert into conversations (id) values ($1)
			on conflict (id) do update set updated_at = now()
			returning id
		)
		insert into conversation_messages (conversation_id, role, content, tokens)
		select conv.id, m.role, m.content, m.tokens
		from conv, unnest($2::text[], $3::text[], $4::int[]) with ordinality as m(role, content, tokens, ord)
		order by m.ord
	`, conversationID, roles, contents, tokens)
	if err != nil {
		return fmt.Errorf("append turns: %w", err)
	}
	return nil
}

// PruneConversations deletes conversations idle for longer than olderThan,
// messages included (on delete cascade). Returns the number of conversations
// removed.
func PruneConversations(ctx context.Context, q db.Querier, olderThan time.Duration) (int64, error) {
	tag, err := q.Exec(ctx, `
		delete from conversations
		where updated_at < now() - make_interval(secs => $1)
	`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("prune conversations: %w", err)
	}
	return tag.RowsAffected(), nil
}
