package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Схема магазина поставляется внутри бинарника: sql/migrations/NNNN_name.{up,down}.sql.
const (
	migrationsDir       = "sql/migrations"
	migrationLockName   = "retail.schema_migrations"
	migrationLockWait   = 5 * time.Second
	schemaMigrationsDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version BIGINT PRIMARY KEY,
    name TEXT NOT NULL,
    checksum TEXT NOT NULL DEFAULT '',
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	// базы, созданные до появления контрольных сумм
	schemaMigrationsChecksumDDL = `ALTER TABLE schema_migrations ADD COLUMN IF NOT EXISTS checksum TEXT NOT NULL DEFAULT ''`
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

type migrationDirection string

const (
	migrationUp   migrationDirection = "up"
	migrationDown migrationDirection = "down"
)

// MigrationState описывает схему: последнюю применённую версию, число
// применённых миграций и ещё не применённые миграции из бинарника.
type MigrationState struct {
	Version int64
	Applied int
	Pending []string
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// ID — имя миграции в виде префикса файла, например 0004_refund_once.
func (m migration) ID() string {
	return fmt.Sprintf("%04d_%s", m.Version, m.Name)
}

// Checksum фиксирует текст up-миграции на момент применения.
func (m migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpSQL))
	return hex.EncodeToString(sum[:])
}

type appliedMigration struct {
	Version  int64
	Name     string
	Checksum string
}

// MigrateUp применяет ожидающие миграции по возрастанию версии; steps=0 — все.
// Уже применённая миграция, текст которой изменился, останавливает процесс с ErrStoreIntegrity.
func (s *Store) MigrateUp(ctx context.Context, steps int) error {
	return s.withMigrationLock(ctx, func(conn *sql.Conn, plan []migration, applied map[int64]appliedMigration) error {
		if err := verifyChecksums(plan, applied); err != nil {
			return err
		}

		done := 0
		for _, m := range plan {
			if _, ok := applied[m.Version]; ok {
				continue
			}
			if steps > 0 && done == steps {
				break
			}
			if err := runMigrationStep(ctx, conn, m, migrationUp); err != nil {
				return err
			}
			done++
		}
		return nil
	})
}

// MigrateDown откатывает последние применённые миграции; steps<=0 — одну.
func (s *Store) MigrateDown(ctx context.Context, steps int) error {
	if steps <= 0 {
		steps = 1
	}
	return s.withMigrationLock(ctx, func(conn *sql.Conn, plan []migration, applied map[int64]appliedMigration) error {
		byVersion := make(map[int64]migration, len(plan))
		for _, m := range plan {
			byVersion[m.Version] = m
		}

		for _, version := range latestVersions(applied, steps) {
			m, ok := byVersion[version]
			if !ok {
				return fmt.Errorf("cannot roll back migration %d_%s: it is not part of this build", version, applied[version].Name)
			}
			if err := runMigrationStep(ctx, conn, m, migrationDown); err != nil {
				return err
			}
		}
		return nil
	})
}

// MigrationStatus читает состояние схемы без блокировки мигратора.
func (s *Store) MigrationStatus(ctx context.Context) (MigrationState, error) {
	if s == nil || s.db == nil {
		return MigrationState{}, fmt.Errorf("postgres store is not initialized")
	}
	plan, err := loadMigrations(migrationsFS)
	if err != nil {
		return MigrationState{}, err
	}

	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	if err := ensureMigrationTable(ctx, s.db); err != nil {
		return MigrationState{}, err
	}
	applied, err := loadApplied(ctx, s.db)
	if err != nil {
		return MigrationState{}, err
	}

	state := MigrationState{Applied: len(applied), Pending: []string{}}
	for version := range applied {
		if version > state.Version {
			state.Version = version
		}
	}
	for _, m := range plan {
		if _, ok := applied[m.Version]; !ok {
			state.Pending = append(state.Pending, m.ID())
		}
	}
	return state, nil
}

// withMigrationLock выполняет fn на выделенном соединении под advisory lock,
// чтобы параллельно стартующие реплики не применяли миграции одновременно.
func (s *Store) withMigrationLock(ctx context.Context, fn func(conn *sql.Conn, plan []migration, applied map[int64]appliedMigration) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	plan, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire db connection: %w", err)
	}
	defer conn.Close()

	lockCtx, cancel := context.WithTimeout(ctx, migrationLockWait)
	defer cancel()
	if _, err := conn.ExecContext(lockCtx, `SELECT pg_advisory_lock(hashtext($1))`, migrationLockName); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, migrationLockName)
	}()

	if err := ensureMigrationTable(ctx, conn); err != nil {
		return err
	}
	applied, err := loadApplied(ctx, conn)
	if err != nil {
		return err
	}
	return fn(conn, plan, applied)
}

func runMigrationStep(ctx context.Context, conn *sql.Conn, m migration, direction migrationDirection) (err error) {
	var (
		body   string
		record string
		args   []any
	)
	switch direction {
	case migrationUp:
		body = m.UpSQL
		record = `INSERT INTO schema_migrations (version, name, checksum) VALUES ($1, $2, $3)`
		args = []any{m.Version, m.Name, m.Checksum()}
	case migrationDown:
		body = m.DownSQL
		record = `DELETE FROM schema_migrations WHERE version = $1`
		args = []any{m.Version}
	default:
		return fmt.Errorf("unsupported migration direction: %s", direction)
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s (%s): %w", m.ID(), direction, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("run migration %s (%s): %w", m.ID(), direction, err)
	}
	if _, err = tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("record migration %s (%s): %w", m.ID(), direction, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s (%s): %w", m.ID(), direction, err)
	}
	return nil
}

func ensureMigrationTable(ctx context.Context, db dbtx) error {
	if _, err := db.ExecContext(ctx, schemaMigrationsDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaMigrationsChecksumDDL); err != nil {
		return fmt.Errorf("ensure schema_migrations checksum: %w", err)
	}
	return nil
}

func loadApplied(ctx context.Context, db dbtx) (map[int64]appliedMigration, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, name, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]appliedMigration)
	for rows.Next() {
		var a appliedMigration
		if err := rows.Scan(&a.Version, &a.Name, &a.Checksum); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[a.Version] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return applied, nil
}

// verifyChecksums сверяет применённые миграции с текстом из бинарника.
// Записи без контрольной суммы и версии новее бинарника пропускаются.
func verifyChecksums(plan []migration, applied map[int64]appliedMigration) error {
	for _, m := range plan {
		a, ok := applied[m.Version]
		if !ok || a.Checksum == "" {
			continue
		}
		if a.Checksum != m.Checksum() {
			return fmt.Errorf("%w: migration %s was changed after it had been applied", domain.ErrStoreIntegrity, m.ID())
		}
	}
	return nil
}

// latestVersions возвращает до limit применённых версий, начиная с самой новой.
func latestVersions(applied map[int64]appliedMigration, limit int) []int64 {
	versions := make([]int64, 0, len(applied))
	for version := range applied {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
	if limit > 0 && len(versions) > limit {
		versions = versions[:limit]
	}
	return versions
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	byVersion := make(map[int64]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, direction, err := parseMigrationFile(entry.Name())
		if err != nil {
			return nil, err
		}

		raw, err := fs.ReadFile(fsys, path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		body := strings.TrimSpace(string(raw))
		if body == "" {
			return nil, fmt.Errorf("migration %s is empty", entry.Name())
		}

		m, ok := byVersion[version]
		if !ok {
			m = &migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if m.Name != name {
			return nil, fmt.Errorf("migration %d is named both %q and %q", version, m.Name, name)
		}

		target := &m.UpSQL
		if direction == migrationDown {
			target = &m.DownSQL
		}
		if *target != "" {
			return nil, fmt.Errorf("migration %s has two %s files", m.ID(), direction)
		}
		*target = body
	}
	if len(byVersion) == 0 {
		return nil, errors.New("no migration files found")
	}

	plan := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpSQL == "" || m.DownSQL == "" {
			return nil, fmt.Errorf("migration %s must have both up and down files", m.ID())
		}
		plan = append(plan, *m)
	}
	sort.Slice(plan, func(i, j int) bool { return plan[i].Version < plan[j].Version })
	return plan, nil
}

// parseMigrationFile разбирает имя вида 0005_idempotency.up.sql.
func parseMigrationFile(file string) (int64, string, migrationDirection, error) {
	stem, ok := strings.CutSuffix(file, ".sql")
	if !ok {
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", file)
	}

	var direction migrationDirection
	switch {
	case strings.HasSuffix(stem, ".up"):
		direction, stem = migrationUp, strings.TrimSuffix(stem, ".up")
	case strings.HasSuffix(stem, ".down"):
		direction, stem = migrationDown, strings.TrimSuffix(stem, ".down")
	default:
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", file)
	}

	rawVersion, name, ok := strings.Cut(stem, "_")
	if !ok || !validMigrationName(name) {
		return 0, "", "", fmt.Errorf("invalid migration file name: %s", file)
	}
	version, err := strconv.ParseInt(rawVersion, 10, 64)
	if err != nil || version <= 0 {
		return 0, "", "", fmt.Errorf("invalid migration version in %s", file)
	}
	return version, name, direction, nil
}

func validMigrationName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}
