package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dlokwo/portfolio/internal/email"
	"github.com/dlokwo/portfolio/internal/errorz"
	"github.com/dlokwo/portfolio/internal/krypto"
	"github.com/dlokwo/portfolio/internal/newsletter"
)

type execFunc func(query string, params ...any) (sql.Result, error)
type queryFunc func(query string, params ...any) (*sql.Rows, error)

func insertSubscriber(ef execFunc, s *newsletter.Subscriber) error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	const q = `INSERT INTO subscribers (id, email, state, token, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := ef(q, s.ID.String(), string(s.Email), string(s.State), s.Token.String(), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

// updateSubscriber writes all subscriber fields in a single statement
// guarded on the current token. The guard is what makes transition and
// rotation atomic from the perspective of concurrent writers.
func updateSubscriber(ef execFunc, s *newsletter.Subscriber, currentToken krypto.Token) error {
	const q = `UPDATE subscribers SET email = ?, state = ?, token = ?, updated_at = ? WHERE id = ? AND token = ?`

	result, err := ef(q, string(s.Email), string(s.State), s.Token.String(), s.UpdatedAt, s.ID.String(), currentToken.String())
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("subscriber not found: %w", errorz.ErrNotFound)
	}

	return nil
}

func selectSubscribers(qf queryFunc, f *newsletter.SubscriberFilter) ([]newsletter.Subscriber, error) {
	var b strings.Builder
	b.WriteString(`SELECT id, email, state, token, created_at, updated_at FROM subscribers WHERE 1=1 `)

	params := make([]any, 0)

	if len(f.IDs) > 0 {
		b.WriteString(`AND id IN (` + placeholders(len(f.IDs)) + `) `)
		for _, id := range f.IDs {
			params = append(params, id.String())
		}
	}

	if len(f.Emails) > 0 {
		b.WriteString(`AND email IN (` + placeholders(len(f.Emails)) + `) `)
		for _, addr := range f.Emails {
			params = append(params, string(addr))
		}
	}

	if len(f.Tokens) > 0 {
		b.WriteString(`AND token IN (` + placeholders(len(f.Tokens)) + `) `)
		for _, tok := range f.Tokens {
			params = append(params, tok.String())
		}
	}

	if len(f.States) > 0 {
		b.WriteString(`AND state IN (` + placeholders(len(f.States)) + `) `)
		for _, state := range f.States {
			params = append(params, string(state))
		}
	}

	b.WriteString(`ORDER BY created_at ASC`)

	rows, err := qf(b.String(), params...)
	if err != nil {
		return nil, errorz.MapDBErr(err)
	}

	defer rows.Close()

	out := make([]newsletter.Subscriber, 0)
	for rows.Next() {
		var (
			s        newsletter.Subscriber
			id       string
			addr     string
			state    string
			rawToken string
		)

		err := rows.Scan(&id, &addr, &state, &rawToken, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, errorz.MapDBErr(err)
		}

		s.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, err
		}

		s.Email, err = email.ParseAddress(addr)
		if err != nil {
			return nil, err
		}

		s.State, err = newsletter.ParseState(state)
		if err != nil {
			return nil, err
		}

		s.Token, err = krypto.ParseToken(rawToken)
		if err != nil {
			return nil, err
		}

		out = append(out, s)
	}

	if err := rows.Err(); err != nil {
		return nil, errorz.MapDBErr(err)
	}

	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
