// Package backup mirrors committed production sub-arrays onto the
// next node in the fleet's cyclic rotation, and separately offers a
// confirmation-gated deletion pass over existing backups.
//
// Both passes enumerate on-disk directories rather than recomputing a
// placement plan: C7 is a pass over what C6 already committed, with no
// awareness of node coloring beyond the rotation itself.
package backup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/scigolib/cubeplace/internal/fleet"
	"github.com/scigolib/cubeplace/internal/metrics"
	"github.com/scigolib/cubeplace/internal/storage"
	"go.uber.org/zap"
)

// Mirror runs the backup-copy and confirmed-deletion passes over a
// dataset's production layout.
type Mirror struct {
	backend     *storage.LocalBackend
	nodes       []fleet.Node
	parallelism int
	log         *zap.Logger
	recorder    *metrics.Recorder
}

// New constructs a Mirror. nodes must be the canonical (unrotated)
// fleet listing; a nil logger defaults to a no-op logger. recorder is
// optional (nil disables metrics).
func New(backend *storage.LocalBackend, nodes []fleet.Node, parallelism int, log *zap.Logger, recorder *metrics.Recorder) *Mirror {
	if parallelism <= 0 {
		parallelism = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Mirror{backend: backend, nodes: nodes, parallelism: parallelism, log: log, recorder: recorder}
}

// CopyFailure records one backup directory that failed to copy.
type CopyFailure struct {
	Source      string
	Destination string
	Err         error
}

// CopyResult summarizes one Copy pass.
type CopyResult struct {
	Total     int
	Succeeded int
	Failures  []CopyFailure
}

// Copy enumerates every "<dataset>_<slot>_prod" directory across all
// node directories and schedules a copy to the next node in canonical
// order, renamed to "<dataset>_<slot>_back". Any existing backup at the
// destination is overwritten. Drained via a bounded worker pool, same
// shape as package dispatch.
func (m *Mirror) Copy(ctx context.Context, dataset string) (CopyResult, error) {
	rotated := fleet.Rotate(m.nodes)
	if len(rotated) != len(m.nodes) {
		return CopyResult{}, fmt.Errorf("backup: rotated node list length mismatch")
	}

	type job struct {
		src, dst string
	}

	var jobs []job

	for i, node := range m.nodes {
		children, err := m.backend.ListImmediateChildren(node.Path)
		if err != nil {
			return CopyResult{}, fmt.Errorf("backup: listing %s: %w", node.Path, err)
		}

		for _, child := range children {
			if !storage.HasPrefix(child, dataset) || !strings.HasSuffix(child, "_prod") {
				continue
			}

			backupName := strings.TrimSuffix(child, "_prod") + "_back"

			jobs = append(jobs, job{
				src: node.Path + "/" + child,
				dst: rotated[i].Path + "/" + backupName,
			})
		}
	}

	result := CopyResult{Total: len(jobs)}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, m.parallelism)
	)

	for _, j := range jobs {
		wg.Add(1)
		sem <- struct{}{}

		go func(j job) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			err := m.backend.CopyPrefix(ctx, j.src, j.dst)
			m.recorder.ObserveJob("backup_copy", err == nil, time.Since(start))

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				m.log.Warn("backup copy failed",
					zap.String("source", j.src),
					zap.String("destination", j.dst),
					zap.Error(err),
				)
				result.Failures = append(result.Failures, CopyFailure{Source: j.src, Destination: j.dst, Err: err})
				return
			}

			result.Succeeded++
		}(j)
	}

	wg.Wait()

	m.log.Info("backup copy pass complete",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failures)),
	)

	return result, nil
}

// PendingDeletions enumerates every "<dataset>_<slot>_back" directory
// across all node directories, for presentation to the operator before
// confirming deletion.
func (m *Mirror) PendingDeletions(dataset string) ([]string, error) {
	var targets []string

	for _, node := range m.nodes {
		children, err := m.backend.ListImmediateChildren(node.Path)
		if err != nil {
			return nil, fmt.Errorf("backup: listing %s: %w", node.Path, err)
		}

		for _, child := range children {
			if storage.HasPrefix(child, dataset) && strings.HasSuffix(child, "_back") {
				targets = append(targets, node.Path+"/"+child)
			}
		}
	}

	return targets, nil
}

// DeleteConfirmed deletes every directory in targets. Callers must
// have already obtained explicit operator confirmation for exactly
// this list; DeleteConfirmed performs no confirmation of its own.
func (m *Mirror) DeleteConfirmed(ctx context.Context, targets []string) (CopyResult, error) {
	result := CopyResult{Total: len(targets)}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, m.parallelism)
	)

	for _, target := range targets {
		wg.Add(1)
		sem <- struct{}{}

		go func(target string) {
			defer wg.Done()
			defer func() { <-sem }()

			start := time.Now()
			err := m.backend.DeletePrefix(ctx, target)
			m.recorder.ObserveJob("backup_delete", err == nil, time.Since(start))

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				m.log.Warn("backup deletion failed", zap.String("target", target), zap.Error(err))
				result.Failures = append(result.Failures, CopyFailure{Source: target, Err: err})
				return
			}

			result.Succeeded++
		}(target)
	}

	wg.Wait()

	return result, nil
}
