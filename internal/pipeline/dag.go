// Package pipeline executes a small declarative stage DAG: each stage names
// its dependencies, and the runner starts a stage only once every dependency
// has completed, joining on all of them rather than the first.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"mediflow/internal/diagnosis"
)

// StageSpec is one node of the DAG. Run is expected to store its output in
// state captured by the closure; the runner guarantees dependencies ran
// first, so those reads are ordered.
type StageSpec struct {
	Name     diagnosis.Stage
	Requires []diagnosis.Stage
	Run      func(ctx context.Context) error
}

// Run executes the stages. When a stage fails, its dependents never start
// and the first failure is returned after all in-flight stages finish.
func Run(ctx context.Context, stages []StageSpec) error {
	byName := make(map[diagnosis.Stage]StageSpec, len(stages))
	for _, s := range stages {
		if s.Name == "" || s.Run == nil {
			return fmt.Errorf("pipeline: stage with empty name or nil run")
		}
		if _, dup := byName[s.Name]; dup {
			return fmt.Errorf("pipeline: duplicate stage %q", s.Name)
		}
		byName[s.Name] = s
	}
	for _, s := range stages {
		for _, req := range s.Requires {
			if _, ok := byName[req]; !ok {
				return fmt.Errorf("pipeline: stage %q requires unknown stage %q", s.Name, req)
			}
		}
	}
	if err := checkAcyclic(byName); err != nil {
		return err
	}

	// done carries per-stage completion: closed without value on success,
	// one error value on failure.
	done := make(map[diagnosis.Stage]chan error, len(stages))
	for name := range byName {
		done[name] = make(chan error, 1)
	}

	var wg sync.WaitGroup
	for _, s := range stages {
		wg.Add(1)
		go func(s StageSpec) {
			defer wg.Done()
			for _, req := range s.Requires {
				select {
				case err := <-done[req]:
					// Re-buffer so sibling dependents observe it too.
					done[req] <- err
					if err != nil {
						done[s.Name] <- fmt.Errorf("pipeline: dependency %q failed: %w", req, err)
						return
					}
				case <-ctx.Done():
					done[s.Name] <- ctx.Err()
					return
				}
			}
			done[s.Name] <- s.Run(ctx)
		}(s)
	}
	wg.Wait()

	for _, s := range stages {
		err := <-done[s.Name]
		done[s.Name] <- err
		if err != nil {
			return err
		}
	}
	return nil
}

func checkAcyclic(byName map[diagnosis.Stage]StageSpec) error {
	const (
		visiting = 1
		finished = 2
	)
	state := make(map[diagnosis.Stage]int, len(byName))
	var visit func(name diagnosis.Stage) error
	visit = func(name diagnosis.Stage) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("pipeline: cycle through stage %q", name)
		case finished:
			return nil
		}
		state[name] = visiting
		for _, req := range byName[name].Requires {
			if err := visit(req); err != nil {
				return err
			}
		}
		state[name] = finished
		return nil
	}
	for name := range byName {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
