// internal/notification/registry/postgres.go
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "notification-workers/internal/common/errors"
	"notification-workers/internal/models"

	"github.com/lib/pq"
)

// PostgresRegistry keeps users in a table with a text[] endpoint column and
// a jsonb preference column.
type PostgresRegistry struct {
	db        *sql.DB
	table     string
	loadQuery string
	pruneStmt string
}

func NewPostgresRegistry(db *sql.DB, table string) *PostgresRegistry {
	quoted := pq.QuoteIdentifier(table)
	return &PostgresRegistry{
		db:    db,
		table: table,
		loadQuery: fmt.Sprintf(`SELECT uid, COALESCE(email, ''), COALESCE(notification_preferences, '{}'::jsonb), COALESCE(delivery_endpoints, '{}'::text[]) FROM %s WHERE uid = $1`,
			quoted),
		// Single statement set difference; rows inserted concurrently by a
		// registration are never dropped.
		pruneStmt: fmt.Sprintf(`UPDATE %s SET delivery_endpoints = ARRAY(SELECT e FROM unnest(delivery_endpoints) AS e WHERE e <> ALL($2::text[])) WHERE uid = $1`,
			quoted),
	}
}

func (r *PostgresRegistry) Load(ctx context.Context, uid string) (*models.User, error) {
	var (
		user      models.User
		prefsRaw  []byte
		endpoints pq.StringArray
	)

	err := r.db.QueryRowContext(ctx, r.loadQuery, uid).Scan(&user.UID, &user.Email, &prefsRaw, &endpoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewStoreUnavailableError("load user", err).WithMetadata("uid", uid)
	}

	if len(prefsRaw) > 0 {
		if err := json.Unmarshal(prefsRaw, &user.NotificationPreferences); err != nil {
			return nil, apperrors.NewMalformedDocumentError(r.table, uid, err)
		}
	}
	for _, e := range endpoints {
		if e != "" {
			user.DeliveryEndpoints = append(user.DeliveryEndpoints, e)
		}
	}

	return &user, nil
}

func (r *PostgresRegistry) PruneEndpoints(ctx context.Context, uid string, invalid []string) error {
	if len(invalid) == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, r.pruneStmt, uid, pq.StringArray(invalid)); err != nil {
		return apperrors.NewEndpointPruneFailedError(uid, err)
	}
	return nil
}
