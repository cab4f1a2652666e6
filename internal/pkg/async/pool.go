// Package async runs a fixed set of named tasks on a bounded number of workers.
package async

import (
	"context"
	"sync"
)

type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool is stateless between Execute calls and may be shared.
type Pool struct {
	workerCount int
}

func NewPool(workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{workerCount: workerCount}
}

func worker(ctx context.Context, wg *sync.WaitGroup, tasks <-chan Task, results chan<- Result) {
	defer wg.Done()
	for {
		select {
		case task, ok := <-tasks:
			if !ok {
				return
			}
			data, err := task.Execute()
			results <- Result{
				Name: task.Name,
				Data: data,
				Err:  err,
			}
		case <-ctx.Done():
			return
		}
	}
}

// Execute runs tasks and returns their results keyed by name. When ctx is done
// before every task finished, the missing names get a Result carrying ctx.Err().
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	var wg sync.WaitGroup
	results := make(map[string]Result, len(tasks))

	taskCh := make(chan Task)
	// Buffered so workers never block on a caller that stopped collecting.
	resultCh := make(chan Result, len(tasks))

	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go worker(ctx, &wg, taskCh, resultCh)
	}

	go func() {
		defer close(taskCh)
		for _, task := range tasks {
			select {
			case taskCh <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	for i := 0; i < len(tasks); i++ {
		select {
		case result := <-resultCh:
			results[result.Name] = result
		case <-ctx.Done():
			for _, task := range tasks {
				if _, ok := results[task.Name]; !ok {
					results[task.Name] = Result{Name: task.Name, Err: ctx.Err()}
				}
			}
			return results
		}
	}

	wg.Wait()
	return results
}
