package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"bridgeai/internal/profile"
	"bridgeai/internal/session"
)

//go:embed migrations/*.sql
var migrations embed.FS

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{db: db}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// Gateway and shield worker may start together. The lock is session
	// scoped, so it is taken and released on one pinned connection; the
	// loser blocks until the winner's migrations are done, then finds
	// nothing left to apply.
	const lockID = 731902114

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetTableName("schema_migrations")
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, flow, state, data, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6)`,
		sess.ID, sess.Flow, sess.State, data, sess.CreatedAt, sess.UpdatedAt)
	return err
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	var data []byte
	row := s.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE id=$1`, id)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, ErrSessionNotFound
		}
		return session.Session{}, fmt.Errorf("failed to get session %s: %w", id, err)
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return session.Session{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return sess, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET state=$1, data=$2, updated_at=$3 WHERE id=$4`,
		sess.State, data, sess.UpdatedAt, sess.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) SaveCandidate(ctx context.Context, c Candidate) error {
	var (
		title, impact, reasoning sql.NullString
		hard, soft               any
	)
	if c.Profile != nil {
		title = sql.NullString{String: c.Profile.Title, Valid: true}
		impact = sql.NullString{String: c.Profile.ImpactStatement, Valid: true}
		reasoning = sql.NullString{String: c.Profile.Reasoning, Valid: true}
		hard = pq.Array(pqStringArray(c.Profile.HardSkills))
		soft = pq.Array(pqStringArray(c.Profile.SoftSkills))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates(id, original, anonymized, status, failure_kind, epoch, title, hard_skills, soft_skills, impact_statement, reasoning, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
			original=excluded.original,
			anonymized=excluded.anonymized,
			status=excluded.status,
			failure_kind=excluded.failure_kind,
			epoch=excluded.epoch,
			title=excluded.title,
			hard_skills=excluded.hard_skills,
			soft_skills=excluded.soft_skills,
			impact_statement=excluded.impact_statement,
			reasoning=excluded.reasoning,
			updated_at=excluded.updated_at`,
		c.ID, c.Original, c.Anonymized, c.Status, c.FailureKind, c.Epoch, title, hard, soft, impact, reasoning, c.UpdatedAt)
	return err
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id uuid.UUID) (Candidate, error) {
	var (
		c                        Candidate
		title, impact, reasoning sql.NullString
		hard, soft               []string
	)
	row := s.db.QueryRowContext(ctx, `
		SELECT original, anonymized, status, failure_kind, epoch, title, hard_skills, soft_skills, impact_statement, reasoning, updated_at
		FROM candidates WHERE id=$1`, id)
	err := row.Scan(&c.Original, &c.Anonymized, &c.Status, &c.FailureKind, &c.Epoch,
		&title, pq.Array(&hard), pq.Array(&soft), &impact, &reasoning, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Candidate{}, ErrCandidateNotFound
		}
		return Candidate{}, fmt.Errorf("failed to get candidate %s: %w", id, err)
	}
	c.ID = id
	if title.Valid {
		c.Profile = &profile.Profile{
			Title:           title.String,
			HardSkills:      hard,
			SoftSkills:      soft,
			ImpactStatement: impact.String,
			Reasoning:       reasoning.String,
		}
	}
	return c, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func pqStringArray(items []string) []string {
	if len(items) == 0 {
		return []string{}
	}
	return items
}
