// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proddb holds types to book-keep fast simulation productions and
// their runs in a database.
//
// Productions can be recorded in a shared MySQL database or in a local
// SQLite file.
package proddb // import "github.com/AliceO2Group/DelphesO2/proddb"

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const timeout = 5 * time.Second

// Status of a production.
const (
	Running = "running"
	Done    = "done"
	Failed  = "failed"
)

// Production describes a fast simulation production.
type Production struct {
	ID      uuid.UUID
	Config  string // configuration file
	Entry   string // configuration entry
	Host    string
	NRuns   int
	NEvents int // number of events per run
	Start   time.Time
	End     time.Time // zero while the production is running
	Status  string
}

// Run describes a run of a production.
type Run struct {
	Production uuid.UUID
	Number     int
	Start      time.Time
	End        time.Time
	OK         bool // whether the run produced its AOD file
	Issues     int  // number of errors found in the run logs
}

// DB exposes convenience methods to record and retrieve productions.
type DB struct {
	db  *sql.DB
	drv string
}

// Open opens a connection to the production database.
// The driver is either "mysql" or "sqlite".
func Open(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("proddb: could not open %s db: %w", driver, err)
	}

	err = ping(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("proddb: could not ping %s db: %w", driver, err)
	}

	return &DB{db: db, drv: driver}, nil
}

// ParseDSN splits a "driver:dsn" string.
// A string without driver is the path of a SQLite file.
func ParseDSN(spec string) (driver, dsn string) {
	for _, drv := range []string{"mysql", "sqlite"} {
		if strings.HasPrefix(spec, drv+":") {
			return drv, strings.TrimPrefix(spec, drv+":")
		}
	}
	return "sqlite", spec
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return db.PingContext(ctx)
}

// Driver returns the name of the database driver.
func (db *DB) Driver() string {
	return db.drv
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS productions (
	id         VARCHAR(36) PRIMARY KEY,
	config     VARCHAR(255) NOT NULL,
	entry      VARCHAR(255) NOT NULL,
	host       VARCHAR(255) NOT NULL,
	nruns      INTEGER NOT NULL,
	nevents    INTEGER NOT NULL,
	start_time BIGINT NOT NULL,
	end_time   BIGINT NOT NULL,
	status     VARCHAR(32) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS runs (
	production VARCHAR(36) NOT NULL,
	number     INTEGER NOT NULL,
	start_time BIGINT NOT NULL,
	end_time   BIGINT NOT NULL,
	ok         INTEGER NOT NULL,
	issues     INTEGER NOT NULL,
	PRIMARY KEY (production, number)
)`,
}

// Init creates the tables of the database, if needed.
func (db *DB) Init(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, stmt := range schema {
		_, err := db.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("proddb: could not create schema: %w", err)
		}
	}
	return nil
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func fromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func b2i(v bool) int {
	if v {
		return 1
	}
	return 0
}

// AddProduction records a new production.
// A production without ID is given a new random one.
func (db *DB) AddProduction(ctx context.Context, p Production) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = Running
	}

	_, err := db.db.ExecContext(
		ctx,
		`INSERT INTO productions
(id, config, entry, host, nruns, nevents, start_time, end_time, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.Config, p.Entry, p.Host, p.NRuns, p.NEvents,
		unix(p.Start), unix(p.End), p.Status,
	)
	if err != nil {
		return p.ID, fmt.Errorf("proddb: could not insert production %v: %w", p.ID, err)
	}
	return p.ID, nil
}

// EndProduction marks the production as finished at the provided time.
func (db *DB) EndProduction(ctx context.Context, id uuid.UUID, end time.Time, status string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := db.db.ExecContext(
		ctx,
		"UPDATE productions SET end_time=?, status=? WHERE id=?",
		unix(end), status, id.String(),
	)
	if err != nil {
		return fmt.Errorf("proddb: could not update production %v: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("proddb: could not update production %v: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("proddb: no production %v", id)
	}
	return nil
}

// AddRun records a run of a production.
func (db *DB) AddRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		`INSERT INTO runs
(production, number, start_time, end_time, ok, issues)
VALUES (?, ?, ?, ?, ?, ?)`,
		run.Production.String(), run.Number,
		unix(run.Start), unix(run.End), b2i(run.OK), run.Issues,
	)
	if err != nil {
		return fmt.Errorf("proddb: could not insert run %d of production %v: %w", run.Number, run.Production, err)
	}
	return nil
}

// Productions returns all the recorded productions, oldest first.
func (db *DB) Productions(ctx context.Context) ([]Production, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var prods []Production
	rows, err := db.db.QueryContext(
		ctx,
		`SELECT id, config, entry, host, nruns, nevents, start_time, end_time, status
FROM productions ORDER BY start_time, id`,
	)
	if err != nil {
		return prods, fmt.Errorf("proddb: could not query productions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p     Production
			start int64
			end   int64
		)
		err = rows.Scan(
			&p.ID, &p.Config, &p.Entry, &p.Host,
			&p.NRuns, &p.NEvents, &start, &end, &p.Status,
		)
		if err != nil {
			return prods, fmt.Errorf("proddb: could not scan production: %w", err)
		}
		p.Start = fromUnix(start)
		p.End = fromUnix(end)
		prods = append(prods, p)
	}

	if err := rows.Err(); err != nil {
		return prods, fmt.Errorf("proddb: could not scan db for productions: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return prods, fmt.Errorf("proddb: context error while retrieving productions: %w", err)
	}

	return prods, nil
}

// Runs returns the recorded runs of a production, by run number.
func (db *DB) Runs(ctx context.Context, id uuid.UUID) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var runs []Run
	rows, err := db.db.QueryContext(
		ctx,
		`SELECT production, number, start_time, end_time, ok, issues
FROM runs WHERE production=? ORDER BY number`,
		id.String(),
	)
	if err != nil {
		return runs, fmt.Errorf("proddb: could not query runs of %v: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			run   Run
			start int64
			end   int64
			ok    int
		)
		err = rows.Scan(&run.Production, &run.Number, &start, &end, &ok, &run.Issues)
		if err != nil {
			return runs, fmt.Errorf("proddb: could not scan run of %v: %w", id, err)
		}
		run.Start = fromUnix(start)
		run.End = fromUnix(end)
		run.OK = ok != 0
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("proddb: could not scan db for runs of %v: %w", id, err)
	}

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("proddb: context error while retrieving runs of %v: %w", id, err)
	}

	return runs, nil
}
