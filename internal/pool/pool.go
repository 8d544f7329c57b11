// Copyright 2021 The DelphesO2 Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pool runs independent tasks on a bounded number of workers.
package pool // import "github.com/AliceO2Group/DelphesO2/internal/pool"

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work, identified by its index.
type Task func(ctx context.Context, i int) error

// Option configures a Run.
type Option func(*config)

type config struct {
	progress func(done, total int)
}

// WithProgress registers a function called after the completion of each
// task with the number of completed tasks and the total number of tasks.
// Calls are serialized.
func WithProgress(f func(done, total int)) Option {
	return func(cfg *config) {
		cfg.progress = f
	}
}

// Run runs n tasks with at most njobs of them running concurrently.
// njobs <= 0 means runtime.NumCPU().
//
// A failing task does not stop the other ones: Run returns the errors of
// all the failed tasks, joined.
// Once ctx is done, tasks that were not started yet are not run and
// report the error of ctx.
func Run(ctx context.Context, njobs, n int, task Task, opts ...Option) error {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	if njobs <= 0 {
		njobs = runtime.NumCPU()
	}

	var (
		grp  errgroup.Group
		mu   sync.Mutex
		done int
		errs = make([]error, n)
	)
	grp.SetLimit(njobs)

	finish := func(i int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs[i] = fmt.Errorf("task %d: %w", i, err)
		}
		done++
		if cfg.progress != nil {
			cfg.progress(done, n)
		}
	}

	for i := 0; i < n; i++ {
		i := i
		if err := ctx.Err(); err != nil {
			finish(i, err)
			continue
		}
		grp.Go(func() error {
			if err := ctx.Err(); err != nil {
				finish(i, err)
				return nil
			}
			finish(i, task(ctx, i))
			return nil
		})
	}
	_ = grp.Wait()

	return errors.Join(errs...)
}

// Errors returns the errors of the tasks joined into err.
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return u.Unwrap()
	}
	return []error{err}
}
