package sweeper

import (
	"context"
	"sync"
	"time"

	fltmodels "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Models"
	logger "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Logger"
	interfaces "gitlab.com/fleetsense/flt.device_server/src/production/FLT.Repository/Interfaces"
)

// Config controls the sweep cadence and the inactivity threshold.
type Config struct {
	Interval  time.Duration
	Threshold time.Duration
}

// Sweeper periodically marks active devices inactive once their last
// heartbeat falls behind the threshold. It never touches maintenance
// or already-inactive devices, and it never modifies last_active_at.
type Sweeper struct {
	devices interfaces.DeviceRepository
	logger  *logger.Logger
	config  Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new sweeper
func New(devices interfaces.DeviceRepository, logger *logger.Logger, config Config) *Sweeper {
	return &Sweeper{
		devices: devices,
		logger:  logger,
		config:  config,
	}
}

// Start launches the background sweep loop. The first sweep runs after
// one full interval, not immediately.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()

		s.logger.WithField("interval", s.config.Interval.String()).
			WithField("threshold", s.config.Threshold.String()).
			Info("Inactivity sweeper started")

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Inactivity sweeper stopped")
				return
			case <-ticker.C:
				swept, err := s.RunOnce(ctx)
				if err != nil {
					s.logger.WithError(err).Error("Sweep pass failed")
					continue
				}
				if swept > 0 {
					s.logger.WithField("deactivated", swept).Info("Sweep pass completed")
				}
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for an in-flight pass to finish
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// RunOnce executes a single sweep pass and returns how many devices it
// deactivated. A device whose heartbeat arrives between the scan and
// the conditional write is left alone; the write re-checks staleness.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.config.Threshold)

	stale, err := s.devices.ListStaleActive(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, device := range stale {
		if err := ctx.Err(); err != nil {
			return swept, err
		}

		deactivated, err := s.devices.DeactivateIfStale(ctx, device.DeviceID, cutoff)
		if err != nil {
			s.logger.WithError(err).WithField("device_id", device.DeviceID).
				Error("Failed to deactivate stale device")
			continue
		}
		if deactivated {
			swept++
			s.logger.WithField("device_id", device.DeviceID).
				WithField("previous_status", fltmodels.StatusActive).
				Debug("Device marked inactive")
		}
	}

	return swept, nil
}
