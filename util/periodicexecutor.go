package netlabutil

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// A periodic executor triggers a caller-supplied function according to a
// fixed interval. The timer is paused for the duration of the action so a
// long-running action is not immediately triggered again.
type PeriodicExecutor struct {
	name         string
	executorFunc func() error
	interval     time.Duration
	ticker       *time.Ticker
	pauseCount   uint16
	done         chan bool
	wg           sync.WaitGroup
	mutex        sync.Mutex
}

// Creates an executor running executorFunc every interval in a goroutine.
func NewPeriodicExecutor(name string, interval time.Duration, executorFunc func() error) *PeriodicExecutor {
	executor := &PeriodicExecutor{
		name:         name,
		executorFunc: executorFunc,
		interval:     interval,
		ticker:       time.NewTicker(interval),
		done:         make(chan bool),
	}
	executor.wg.Add(1)
	go executor.executorLoop()
	log.Printf("Started %s", name)
	return executor
}

// Terminates the executor, i.e. the executor no longer triggers the
// user defined function.
func (executor *PeriodicExecutor) Shutdown() {
	log.Printf("Stopping %s", executor.name)
	executor.done <- true
	executor.wg.Wait()
	log.Printf("Stopped %s", executor.name)
}

// Temporarily stops the timer. Pause may be called multiple times; the
// timer resumes after the matching number of Unpause calls.
func (executor *PeriodicExecutor) Pause() {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	executor.ticker.Stop()
	executor.pauseCount++
}

// Checks if the executor is currently paused.
func (executor *PeriodicExecutor) Paused() bool {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	return executor.pauseCount > 0
}

// Resumes the timer once all earlier Pause calls are matched.
func (executor *PeriodicExecutor) Unpause() {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	if executor.pauseCount > 0 {
		executor.pauseCount--
	}
	if executor.pauseCount == 0 {
		executor.ticker.Reset(executor.interval)
	}
}

// Return the configured interval.
func (executor *PeriodicExecutor) GetInterval() time.Duration {
	return executor.interval
}

// Returns the executor name.
func (executor *PeriodicExecutor) GetName() string {
	return executor.name
}

func (executor *PeriodicExecutor) executorLoop() {
	defer executor.wg.Done()
	for {
		select {
		case <-executor.ticker.C:
			executor.Pause()
			err := executor.executorFunc()
			executor.Unpause()
			if err != nil {
				log.Errorf("Errors were encountered while running %s: %+v", executor.name, err)
			}
		case <-executor.done:
			// Make sure the action is never triggered again.
			executor.Pause()
			return
		}
	}
}
