package worker

import (
	"context"
	"log"
	"time"

	"github.com/example/washops/backend/internal/service"
)

// Sweeper releases idle per-session state.
type Sweeper interface {
	Sweep(ctx context.Context) (service.SweepResult, error)
}

// Reaper periodically sweeps idle wizards, job mirrors and sessions.
type Reaper struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewReaper creates the worker. A non-positive interval defaults to one minute.
func NewReaper(sweeper Sweeper, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reaper{sweeper: sweeper, interval: interval}
}

// Run starts the sweep loop and should be launched in its own goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("reaper shutting down")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	res, err := r.sweeper.Sweep(ctx)
	if err != nil {
		log.Printf("sweep idle state error: %v", err)
		return
	}
	if res.Onboardings+res.JobWizards+res.Jobs+res.Sessions > 0 {
		log.Printf("swept %d onboarding wizards, %d job wizards, %d job mirrors, %d sessions",
			res.Onboardings, res.JobWizards, res.Jobs, res.Sessions)
	}
}
