package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	gwerr "github.com/gatewise/gatewise-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
const tracerName = "github.com/gatewise/gatewise-core/pkg/catalog"

// Pool defines the PostgreSQL pool operations the catalog store needs. It is
// satisfied by [*pgxpool.Pool] and by pgxmock, enabling unit tests without a
// real database via [NewPostgresStore].
type Pool interface {
	// Query executes a SQL query that returns rows.
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)

	// QueryRow executes a SQL query that returns at most one row. Errors
	// are deferred until the returned pgx.Row is scanned.
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// Exec executes a SQL statement that does not return rows.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Ping verifies the connection to the database is alive.
	Ping(ctx context.Context) error
}

// Compile-time assertion that *pgxpool.Pool satisfies Pool.
var _ Pool = (*pgxpool.Pool)(nil)

// PostgresStore is the pgx-backed catalog store. It implements [Store],
// [UserStore], and the settings store consumed by the method-enablement
// guard, reading from the profiles, permissions, users, and system_settings
// tables. All operations carry OpenTelemetry spans with database semantic
// attributes.
//
// PostgresStore is safe for concurrent use.
type PostgresStore struct {
	pool   Pool
	tracer trace.Tracer
}

// NewPostgresStore creates a PostgresStore over an existing pool. Pass a
// [*pgxpool.Pool] in production or a pgxmock pool in tests.
func NewPostgresStore(pool Pool) *PostgresStore {
	return &PostgresStore{
		pool:   pool,
		tracer: otel.Tracer(tracerName),
	}
}

// profileQuery selects profiles joined with their permission sets. Inactive
// profiles are filtered in SQL; inactive permissions are returned and
// filtered by callers, since the converter needs to distinguish "permission
// absent" from "permission present but inactive".
const profileQuery = `
SELECT p.name, p.description, p.group_id, p.group_name, p.active,
       m.code, m.name, m.module, m.action, m.active
FROM profiles p
LEFT JOIN profile_permissions pp ON pp.profile_name = p.name
LEFT JOIN permissions m ON m.code = pp.permission_code
WHERE p.active AND `

// ProfileByGroupID implements [Store].
func (s *PostgresStore) ProfileByGroupID(ctx context.Context, groupID string) (*Profile, error) {
	ctx, span := s.startSpan(ctx, "ProfileByGroupID")
	defer span.End()

	profiles, err := s.queryProfiles(ctx, profileQuery+`p.group_id = $1 ORDER BY p.name, m.code`, groupID)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}
	if len(profiles) == 0 {
		err := gwerr.Newf(gwerr.CodeNotFoundProfile, "catalog: no active profile for group %q", groupID)
		finishSpan(span, err)
		return nil, err
	}
	return &profiles[0], nil
}

// ProfilesByGroupIDs implements [Store].
func (s *PostgresStore) ProfilesByGroupIDs(ctx context.Context, ids []string) ([]Profile, error) {
	ctx, span := s.startSpan(ctx, "ProfilesByGroupIDs")
	defer span.End()

	if len(ids) == 0 {
		return []Profile{}, nil
	}
	profiles, err := s.queryProfiles(ctx, profileQuery+`p.group_id = ANY($1) ORDER BY p.name, m.code`, ids)
	finishSpan(span, err)
	return profiles, err
}

// ProfilesByEmail implements [Store].
func (s *PostgresStore) ProfilesByEmail(ctx context.Context, email string) ([]Profile, error) {
	ctx, span := s.startSpan(ctx, "ProfilesByEmail")
	defer span.End()

	query := profileQuery + `p.name IN (
    SELECT up.profile_name FROM user_profiles up WHERE up.user_email = $1
) ORDER BY p.name, m.code`
	profiles, err := s.queryProfiles(ctx, query, email)
	finishSpan(span, err)
	return profiles, err
}

// Permissions implements [Store].
func (s *PostgresStore) Permissions(ctx context.Context) ([]Permission, error) {
	ctx, span := s.startSpan(ctx, "Permissions")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT code, name, module, action, active FROM permissions ORDER BY code`)
	if err != nil {
		wrapped := wrapDBError(err, "catalog: permissions query failed")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	defer rows.Close()

	result := []Permission{}
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.Code, &p.Name, &p.Module, &p.Action, &p.Active); err != nil {
			wrapped := wrapDBError(err, "catalog: permission scan failed")
			finishSpan(span, wrapped)
			return nil, wrapped
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		wrapped := wrapDBError(err, "catalog: permission iteration failed")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	return result, nil
}

// UserByEmail implements [UserStore].
func (s *PostgresStore) UserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := s.startSpan(ctx, "UserByEmail")
	defer span.End()

	var u User
	err := s.pool.QueryRow(ctx,
		`SELECT email, name, password_hash, active FROM users WHERE email = $1`, email).
		Scan(&u.Email, &u.Name, &u.PasswordHash, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		notFound := gwerr.Newf(gwerr.CodeNotFound, "catalog: no user %q", email)
		finishSpan(span, notFound)
		return nil, notFound
	}
	if err != nil {
		wrapped := wrapDBError(err, "catalog: user lookup failed")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	return &u, nil
}

// Setting returns the stored value for a settings key and whether it was
// present. Missing keys are not an error; the guard applies its defaults.
func (s *PostgresStore) Setting(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.startSpan(ctx, "Setting")
	defer span.End()

	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM system_settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		wrapped := wrapDBError(err, "catalog: setting lookup failed")
		finishSpan(span, wrapped)
		return "", false, wrapped
	}
	return value, true, nil
}

// SetSetting upserts a settings value. The category column is derived from
// the key's first dotted segment, so "auth.local.enabled" files under "auth".
func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	ctx, span := s.startSpan(ctx, "SetSetting")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO system_settings (key, value, category) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value, settingCategory(key))
	if err != nil {
		wrapped := wrapDBError(err, "catalog: setting update failed")
		finishSpan(span, wrapped)
		return wrapped
	}
	return nil
}

// SettingsByCategory lists the settings filed under a category as a
// key/value map. Unknown categories yield an empty map.
func (s *PostgresStore) SettingsByCategory(ctx context.Context, category string) (map[string]string, error) {
	ctx, span := s.startSpan(ctx, "SettingsByCategory")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM system_settings WHERE category = $1 ORDER BY key`, category)
	if err != nil {
		wrapped := wrapDBError(err, "catalog: settings query failed")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	defer rows.Close()

	result := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			wrapped := wrapDBError(err, "catalog: setting scan failed")
			finishSpan(span, wrapped)
			return nil, wrapped
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		wrapped := wrapDBError(err, "catalog: setting iteration failed")
		finishSpan(span, wrapped)
		return nil, wrapped
	}
	return result, nil
}

func settingCategory(key string) string {
	if i := strings.Index(key, "."); i > 0 {
		return key[:i]
	}
	return key
}

// Health verifies the database connection is alive, for readiness probes.
func (s *PostgresStore) Health(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "Health")
	defer span.End()

	if err := s.pool.Ping(ctx); err != nil {
		wrapped := gwerr.Wrap(err, gwerr.CodeUnavailableDependency,
			"catalog: health check failed")
		finishSpan(span, wrapped)
		return wrapped
	}
	return nil
}

// queryProfiles runs a profile+permission join query and folds the flat rows
// into Profile values, preserving row order. Permission columns are nullable
// because of the LEFT JOIN (a profile may own no permissions).
func (s *PostgresStore) queryProfiles(ctx context.Context, query string, args ...any) ([]Profile, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(err, "catalog: profile query failed")
	}
	defer rows.Close()

	result := []Profile{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			profile                         Profile
			description, groupID, groupName *string
			permCode, permName, permModule  *string
			permAction                      *string
			permActive                      *bool
		)
		err := rows.Scan(&profile.Name, &description, &groupID, &groupName, &profile.Active,
			&permCode, &permName, &permModule, &permAction, &permActive)
		if err != nil {
			return nil, wrapDBError(err, "catalog: profile scan failed")
		}
		profile.Description = deref(description)
		profile.GroupID = deref(groupID)
		profile.GroupName = deref(groupName)

		i, ok := index[profile.Name]
		if !ok {
			i = len(result)
			index[profile.Name] = i
			result = append(result, profile)
		}
		if permCode != nil {
			result[i].Permissions = append(result[i].Permissions, Permission{
				Code:   *permCode,
				Name:   deref(permName),
				Module: deref(permModule),
				Action: deref(permAction),
				Active: permActive != nil && *permActive,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "catalog: profile iteration failed")
	}
	return result, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// startSpan creates a span with database semantic attributes.
func (s *PostgresStore) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	ctx, span := s.tracer.Start(ctx, "catalog."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("db.system", "postgresql"))
	return ctx, span
}

// finishSpan records an error on the span if err is non-nil. The span is
// ended by the caller's deferred End.
func finishSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// wrapDBError converts a database error to a structured error,
// distinguishing timeouts and cancellations from general failures so
// callers can make retry decisions.
func wrapDBError(err error, message string) *gwerr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return gwerr.Wrap(err, gwerr.CodeTimeoutDatabase, message)
	}
	return gwerr.Wrap(err, gwerr.CodeInternalDatabase, message)
}
