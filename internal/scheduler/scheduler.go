// Package scheduler keeps the caches of configured addresses warm.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/lookup"
)

const defaultRunTimeout = 30 * time.Second

// Producer runs one weather lookup.
type Producer interface {
	Produce(ctx context.Context, address string, bypass bool) (*lookup.Result, error)
}

// Warmer periodically produces lookups for a fixed address list. It never
// bypasses the cache, so upstream quota is spent only on expired entries.
type Warmer struct {
	scheduler *gocron.Scheduler
	producer  Producer
	addresses []string
	interval  time.Duration
	timeout   time.Duration
	log       *logger.Entry
}

// New creates a Warmer.
func New(addresses []string, interval time.Duration, producer Producer) *Warmer {
	return &Warmer{
		scheduler: gocron.NewScheduler(time.UTC),
		producer:  producer,
		addresses: addresses,
		interval:  interval,
		timeout:   defaultRunTimeout,
		log:       logger.WithComponent("scheduler"),
	}
}

// Start schedules the warm-up job, which also runs once immediately.
func (w *Warmer) Start() error {
	if len(w.addresses) == 0 {
		w.log.Info("no warm addresses configured; nothing to schedule")
		return nil
	}

	interval := w.interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	if _, err := w.scheduler.Every(interval).Do(w.run); err != nil {
		return err
	}
	w.scheduler.StartAsync()
	w.log.WithFields(logger.Fields{
		"addresses": len(w.addresses),
		"interval":  interval.String(),
	}).Info("cache warmer started")
	return nil
}

func (w *Warmer) run() {
	w.Warm(context.Background())
}

// Warm produces every address once and returns how many succeeded.
func (w *Warmer) Warm(ctx context.Context) int {
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for _, addr := range w.addresses {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, w.timeout)
			defer cancel()

			res, err := w.producer.Produce(ctx, addr, false)
			if err != nil {
				w.log.WithError(err).WithField("address", addr).Warn("warm-up failed")
				return
			}
			w.log.WithFields(logger.Fields{
				"address": addr,
				"cached":  res.Cached,
			}).Debug("warmed")

			mu.Lock()
			ok++
			mu.Unlock()
		}(addr)
	}
	wg.Wait()
	return ok
}

// Stop stops the scheduler and cancels any future runs.
func (w *Warmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}
