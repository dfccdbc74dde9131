package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/finwise/internal/model"
	"github.com/xxxsen/finwise/internal/pkg/dbutil"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

var sessionColumns = []string{"id", "pending_query", "web_permission", "force_web", "last_seen_query", "state", "category", "ctime", "mtime"}

type sessionRow struct {
	ID            string `db:"id"`
	PendingQuery  string `db:"pending_query"`
	WebPermission string `db:"web_permission"`
	ForceWeb      bool   `db:"force_web"`
	LastSeenQuery string `db:"last_seen_query"`
	State         string `db:"state"`
	Category      string `db:"category"`
	Ctime         int64  `db:"ctime"`
	Mtime         int64  `db:"mtime"`
}

type SessionRepo struct {
	db *sqlx.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: sqlx.NewDb(db, "postgres")}
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*model.Session, error) {
	sqlStr, args, err := builder.BuildSelect("sessions", map[string]interface{}{"id": id}, sessionColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var row sessionRow
	if err := r.db.GetContext(ctx, &row, sqlStr, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &model.Session{
		ID:            row.ID,
		PendingQuery:  row.PendingQuery,
		WebPermission: model.Permission(row.WebPermission),
		ForceWeb:      row.ForceWeb,
		LastSeenQuery: row.LastSeenQuery,
		State:         model.RouteState(row.State),
		Category:      model.Category(row.Category),
		Ctime:         row.Ctime,
		Mtime:         row.Mtime,
	}, nil
}

func (r *SessionRepo) Save(ctx context.Context, s *model.Session) error {
	const query = `
		INSERT INTO sessions (id, pending_query, web_permission, force_web, last_seen_query, state, category, ctime, mtime)
		VALUES (:id, :pending_query, :web_permission, :force_web, :last_seen_query, :state, :category, :ctime, :mtime)
		ON CONFLICT (id) DO UPDATE SET
			pending_query = EXCLUDED.pending_query,
			web_permission = EXCLUDED.web_permission,
			force_web = EXCLUDED.force_web,
			last_seen_query = EXCLUDED.last_seen_query,
			state = EXCLUDED.state,
			category = EXCLUDED.category,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.NamedExecContext(ctx, query, sessionRow{
		ID:            s.ID,
		PendingQuery:  s.PendingQuery,
		WebPermission: string(s.WebPermission),
		ForceWeb:      s.ForceWeb,
		LastSeenQuery: s.LastSeenQuery,
		State:         string(s.State),
		Category:      string(s.Category),
		Ctime:         s.Ctime,
		Mtime:         s.Mtime,
	})
	return err
}

func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	sqlStr, args, err := builder.BuildDelete("sessions", map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// DeleteIdleBefore removes sessions not touched since cutoff.
func (r *SessionRepo) DeleteIdleBefore(ctx context.Context, cutoff int64) (int64, error) {
	sqlStr, args, err := builder.BuildDelete("sessions", map[string]interface{}{"mtime <": cutoff})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
