package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sigreer/lustrezfs/internal/ldd"
	"github.com/sigreer/lustrezfs/internal/zfs"
)

// TargetFromLDD builds a record for dataset from its target configuration
func TargetFromLDD(dataset string, d *ldd.DiskData) *TargetRecord {
	return &TargetRecord{
		Dataset:    dataset,
		Pool:       zfs.PoolName(dataset),
		FSName:     d.FSName,
		SVName:     d.SVName,
		Index:      d.Index,
		Flags:      d.Flags,
		ServerType: d.ServerType(),
		MountOpts:  d.MountOpts,
		Params:     d.Params,
	}
}

// RecordTarget inserts or updates a target record keyed by dataset
func (d *DB) RecordTarget(target *TargetRecord) error {
	now := time.Now()

	_, err := d.conn.Exec(`
		INSERT INTO targets (
			dataset, pool, fsname, svname, target_index, flags,
			server_type, mountopts, params, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dataset) DO UPDATE SET
			pool = excluded.pool,
			fsname = COALESCE(excluded.fsname, fsname),
			svname = COALESCE(excluded.svname, svname),
			target_index = excluded.target_index,
			flags = excluded.flags,
			server_type = COALESCE(excluded.server_type, server_type),
			mountopts = excluded.mountopts,
			params = excluded.params,
			last_seen = excluded.last_seen
	`,
		target.Dataset, target.Pool, nullString(target.FSName), nullString(target.SVName),
		target.Index, target.Flags, nullString(target.ServerType),
		nullString(target.MountOpts), nullString(target.Params), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record target: %w", err)
	}

	// LastInsertId is stale after the update branch of an upsert
	if target.ID == 0 {
		existing, _ := d.GetTarget(target.Dataset)
		if existing != nil {
			target.ID = existing.ID
		}
	}

	return nil
}

// GetTarget returns the record for dataset, or nil if it was never seen
func (d *DB) GetTarget(dataset string) (*TargetRecord, error) {
	row := d.conn.QueryRow(`
		SELECT id, dataset, pool, fsname, svname, target_index, flags,
			server_type, mountopts, params, first_seen, last_seen
		FROM targets WHERE dataset = ?
	`, dataset)

	target, err := scanTarget(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return target, err
}

// GetAllTargets returns every known target ordered by dataset name
func (d *DB) GetAllTargets() ([]*TargetRecord, error) {
	rows, err := d.conn.Query(`
		SELECT id, dataset, pool, fsname, svname, target_index, flags,
			server_type, mountopts, params, first_seen, last_seen
		FROM targets ORDER BY dataset
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []*TargetRecord
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row scanner) (*TargetRecord, error) {
	var target TargetRecord
	var fsname, svname, serverType, mountOpts, params sql.NullString

	err := row.Scan(
		&target.ID, &target.Dataset, &target.Pool, &fsname, &svname,
		&target.Index, &target.Flags, &serverType, &mountOpts, &params,
		&target.FirstSeen, &target.LastSeen,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan target: %w", err)
	}

	target.FSName = fsname.String
	target.SVName = svname.String
	target.ServerType = serverType.String
	target.MountOpts = mountOpts.String
	target.Params = params.String

	return &target, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
