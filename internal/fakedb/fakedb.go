// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fakedb holds types to fake an in-memory DB, replying to queries
// with canned rows and recording executed statements.
package fakedb // import "github.com/AliceO2Group/DelphesO2/internal/fakedb"

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"io"
	"sync"
)

// Stmt is a statement executed against the fake DB.
type Stmt struct {
	Query string
	Args  []driver.Value
}

var state struct {
	mu    sync.Mutex
	rows  Rows
	err   error
	stmts []Stmt
}

// Run runs f with the fake DB replying rows to queries, or failing all
// queries and statements with err if not nil.
// Run returns the statements executed by f.
func Run(ctx context.Context, rows Rows, err error, f func(ctx context.Context) error) ([]Stmt, error) {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.rows = rows
	state.err = err
	state.stmts = nil

	ferr := f(ctx)
	return state.stmts, ferr
}

func init() {
	sql.Register("fakedb", &Driver{})
}

type Driver struct{}

// Open returns a new connection to the fake DB.
func (drv *Driver) Open(name string) (driver.Conn, error) {
	return &Conn{}, nil
}

type Conn struct{}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{query: query}, nil
}

func (c *Conn) Close() error { return nil }

func (c *Conn) Begin() (driver.Tx, error) {
	panic("not implemented")
}

type stmt struct {
	query string
}

func (st *stmt) Close() error  { return nil }
func (st *stmt) NumInput() int { return -1 }

func (st *stmt) Exec(args []driver.Value) (driver.Result, error) {
	state.stmts = append(state.stmts, Stmt{Query: st.query, Args: args})
	if state.err != nil {
		return nil, state.err
	}
	return driver.RowsAffected(1), nil
}

func (st *stmt) Query(args []driver.Value) (driver.Rows, error) {
	state.stmts = append(state.stmts, Stmt{Query: st.query, Args: args})
	if state.err != nil {
		return nil, state.err
	}
	return &state.rows, nil
}

// Rows are the canned rows of a query.
type Rows struct {
	Names  []string
	Values [][]driver.Value
}

func (rows *Rows) Columns() []string { return rows.Names }
func (rows *Rows) Close() error      { return nil }

// Next populates dest with the next row of data, or returns io.EOF.
func (rows *Rows) Next(dest []driver.Value) error {
	if len(rows.Values) == 0 {
		return io.EOF
	}
	copy(dest, rows.Values[0])
	rows.Values = rows.Values[1:]
	return nil
}

var (
	_ driver.Driver = (*Driver)(nil)
	_ driver.Conn   = (*Conn)(nil)
	_ driver.Stmt   = (*stmt)(nil)
	_ driver.Rows   = (*Rows)(nil)
)
