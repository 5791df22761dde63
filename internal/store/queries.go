package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Operation history

// RecordOperation appends op to the history. CreatedAt defaults to now.
func (s *Store) RecordOperation(op *Operation) (int64, error) {
	appsJSON, err := json.Marshal(op.Apps)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal apps: %w", err)
	}
	createdAt := op.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO operations (created_at, action, env, package, spec, apps)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		createdAt.UTC().Format(time.RFC3339),
		op.Action,
		op.Env,
		op.Package,
		op.Spec,
		string(appsJSON),
	)
	if err != nil {
		return 0, wrapQueryErr(fmt.Sprintf("failed to record %s of %s", op.Action, op.Package), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get operation ID: %w", err)
	}
	return id, nil
}

// ListOperations returns recorded operations, newest first. An empty env
// lists every environment; limit <= 0 means no limit.
func (s *Store) ListOperations(env string, limit int) ([]*Operation, error) {
	query := `
		SELECT id, created_at, action, env, package, spec, apps
		FROM operations
		WHERE (? = '' OR env = ?)
		ORDER BY created_at DESC, id DESC
	`
	args := []any{env, env}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapQueryErr("failed to list operations", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		var createdAt string
		var spec, appsJSON sql.NullString

		if err := rows.Scan(&op.ID, &createdAt, &op.Action, &op.Env, &op.Package, &spec, &appsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}

		op.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for operation %d: %w", op.ID, err)
		}
		op.Spec = spec.String
		if appsJSON.Valid && appsJSON.String != "" {
			if err := json.Unmarshal([]byte(appsJSON.String), &op.Apps); err != nil {
				return nil, fmt.Errorf("failed to unmarshal apps for operation %d: %w", op.ID, err)
			}
		}

		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}
	return ops, nil
}

// LastSpec returns the spec of the most recent install of env, or "" when
// there is none.
func (s *Store) LastSpec(env string) (string, error) {
	query := `
		SELECT spec FROM operations
		WHERE env = ? AND action = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var spec sql.NullString
	err := s.db.QueryRow(query, env, ActionInstall).Scan(&spec)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", wrapQueryErr("failed to get last spec of "+env, err)
	}
	return spec.String, nil
}

// Export records

// InsertExport records an export run and its environments in one transaction.
func (s *Store) InsertExport(dir string, envs []*ExportEnv) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO exports (created_at, export_dir, env_count)
		VALUES (?, ?, ?)
	`, time.Now().UTC().Format(time.RFC3339), dir, len(envs))
	if err != nil {
		return 0, wrapQueryErr("failed to insert export", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get export ID: %w", err)
	}

	for _, e := range envs {
		_, err := tx.Exec(`
			INSERT INTO export_envs (export_id, env, main_package, version)
			VALUES (?, ?, ?, ?)
		`, id, e.Env, e.MainPackage, e.Version)
		if err != nil {
			return 0, fmt.Errorf("failed to insert export env %s: %w", e.Env, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit export: %w", err)
	}
	return id, nil
}

// ListExports returns all export runs, newest first.
func (s *Store) ListExports() ([]*Export, error) {
	query := `
		SELECT id, created_at, export_dir, env_count
		FROM exports
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrapQueryErr("failed to list exports", err)
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		var e Export
		var createdAt string
		if err := rows.Scan(&e.ID, &createdAt, &e.ExportDir, &e.EnvCount); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for export %d: %w", e.ID, err)
		}
		exports = append(exports, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exports: %w", err)
	}
	return exports, nil
}

// GetExportEnvs returns the environments of export id, sorted by name.
func (s *Store) GetExportEnvs(id int64) ([]*ExportEnv, error) {
	query := `
		SELECT export_id, env, main_package, version
		FROM export_envs
		WHERE export_id = ?
		ORDER BY env
	`

	rows, err := s.db.Query(query, id)
	if err != nil {
		return nil, wrapQueryErr(fmt.Sprintf("failed to get envs of export %d", id), err)
	}
	defer rows.Close()

	var envs []*ExportEnv
	for rows.Next() {
		var e ExportEnv
		var mainPkg, version sql.NullString
		if err := rows.Scan(&e.ExportID, &e.Env, &mainPkg, &version); err != nil {
			return nil, fmt.Errorf("failed to scan export env row: %w", err)
		}
		e.MainPackage = mainPkg.String
		e.Version = version.String
		envs = append(envs, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating export envs: %w", err)
	}
	return envs, nil
}
