// Package history keeps an append-only git record of plan payload
// snapshots for diagnostics and recovery.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const snapshotFile = "payload.json"

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// RecordSnapshot commits the current payload for a plan. A no-op when
// the payload is unchanged since the last snapshot.
func (s *Service) RecordSnapshot(planID string, payload map[string]any) error {
	lock := s.planLock(planID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(planID)
	repo, err := s.ensureRepo(path)
	if err != nil {
		return err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, snapshotFile), append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("write payload snapshot: %w", err)
	}
	if _, err := worktree.Add(snapshotFile); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("read worktree status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	if _, err := worktree.Commit("Plan snapshot", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "planner",
			Email: "planner@local.invalid",
			When:  time.Now(),
		},
	}); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// SnapshotCount returns the number of recorded snapshots for a plan.
func (s *Service) SnapshotCount(planID string) (int, error) {
	repo, err := git.PlainOpen(s.repoPath(planID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("open history repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return 0, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return 0, fmt.Errorf("read history log: %w", err)
	}
	defer iter.Close()

	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate history log: %w", err)
	}
	return count, nil
}

func (s *Service) ensureRepo(path string) (*git.Repository, error) {
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open history repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init history repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

func (s *Service) repoPath(planID string) string {
	return filepath.Join(s.baseDir, planID)
}

func (s *Service) planLock(planID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[planID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[planID] = lock
	}
	return lock
}
