package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/errorz"
	"github.com/dlokwo/portfolio/internal/inbox"
)

func insertMessage(ctx context.Context, db *sql.DB, m *inbox.Message) error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	const q = `INSERT INTO messages (id, name, email, body, attachment, processed, received_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, q, m.ID.String(), m.Name, string(m.Email), m.Body, m.Attachment, m.Processed, m.ReceivedAt)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func selectMessages(ctx context.Context, db *sql.DB, f *inbox.MessageFilter) ([]inbox.Message, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, name, email, body, attachment, processed, received_at FROM messages WHERE 1=1 `)

	params := make([]any, 0)

	if len(f.IDs) > 0 {
		b.WriteString(`AND id IN (` + placeholders(len(f.IDs)) + `) `)
		for _, id := range f.IDs {
			params = append(params, id.String())
		}
	}

	if f.Processed != nil {
		b.WriteString(`AND processed = ? `)
		params = append(params, *f.Processed)
	}

	b.WriteString(`ORDER BY received_at DESC`)

	rows, err := db.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	out := make([]inbox.Message, 0)
	for rows.Next() {
		var (
			m    inbox.Message
			id   string
			addr string
		)

		err := rows.Scan(&id, &m.Name, &addr, &m.Body, &m.Attachment, &m.Processed, &m.ReceivedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		m.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, err
		}

		m.Email, err = email.ParseAddress(addr)
		if err != nil {
			return nil, err
		}

		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func insertRecommendation(ctx context.Context, db *sql.DB, r *inbox.Recommendation) error {
	if r.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	const q = `INSERT INTO recommendations (id, name, role, email, content, featured, received_at) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, q, r.ID.String(), r.Name, r.Role, string(r.Email), r.Content, r.Featured, r.ReceivedAt)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func selectRecommendations(ctx context.Context, db *sql.DB, f *inbox.RecommendationFilter) ([]inbox.Recommendation, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, name, role, email, content, featured, received_at FROM recommendations WHERE 1=1 `)

	params := make([]any, 0)

	if len(f.IDs) > 0 {
		b.WriteString(`AND id IN (` + placeholders(len(f.IDs)) + `) `)
		for _, id := range f.IDs {
			params = append(params, id.String())
		}
	}

	if f.Featured != nil {
		b.WriteString(`AND featured = ? `)
		params = append(params, *f.Featured)
	}

	b.WriteString(`ORDER BY received_at DESC`)

	rows, err := db.QueryContext(ctx, b.String(), params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	out := make([]inbox.Recommendation, 0)
	for rows.Next() {
		var (
			r    inbox.Recommendation
			id   string
			addr string
		)

		err := rows.Scan(&id, &r.Name, &r.Role, &addr, &r.Content, &r.Featured, &r.ReceivedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		r.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, err
		}

		r.Email, err = email.ParseAddress(addr)
		if err != nil {
			return nil, err
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
