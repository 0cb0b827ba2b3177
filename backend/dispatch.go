/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package backend

import (
	"github.com/pkg/errors"
	"github.com/xelabs/go-mysqlstack/sqlparser/depends/sqltypes"
	"golang.org/x/sync/errgroup"
)

// Dispatch assigns jobs[i] to conns[i] without waiting. On failure the
// jobs already assigned are broken and waited.
func Dispatch(conns []*Connection, jobs []*Job) error {
	if len(conns) != len(jobs) {
		return errors.Errorf("dispatch.conns[%d].jobs[%d].mismatch", len(conns), len(jobs))
	}
	for i, conn := range conns {
		if err := conn.AssignJob(jobs[i], false); err != nil {
			for _, assigned := range conns[:i] {
				assigned.Break()
				assigned.Wait()
			}
			return err
		}
	}
	return nil
}

// WaitAll waits every connection and returns the results in connection
// order. It returns only after every worker is idle, with the first error
// seen.
func WaitAll(conns []*Connection) ([]*sqltypes.Result, error) {
	var eg errgroup.Group
	results := make([]*sqltypes.Result, len(conns))
	for i, conn := range conns {
		i, conn := i, conn
		eg.Go(func() error {
			qr, err := conn.Wait()
			results[i] = qr
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// Fanout dispatches jobs and waits them all.
func Fanout(conns []*Connection, jobs []*Job) ([]*sqltypes.Result, error) {
	if err := Dispatch(conns, jobs); err != nil {
		return nil, err
	}
	return WaitAll(conns)
}
