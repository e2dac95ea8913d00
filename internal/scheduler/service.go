package scheduler

import (
	"context"

	"github.com/reviewloop/reviewloop/internal/config"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/reconciler"
	"github.com/reviewloop/reviewloop/internal/syncer"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ConnectionLister enumerates the connections the periodic sweep covers.
type ConnectionLister interface {
	ListActiveConnections(ctx context.Context) ([]models.PlatformConnection, error)
}

// Service wires the run-once pipeline entry points onto a cron. The cron is
// only a trigger: all concurrency safety lives in the store's transactional
// guarantees, so an overlapping or externally triggered run is fine.
type Service struct {
	config      *config.Config
	syncService *syncer.Service
	reconciler  *reconciler.Service
	connections ConnectionLister
	cron        *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, syncService *syncer.Service, rec *reconciler.Service, connections ConnectionLister) *Service {
	return &Service{
		config:      cfg,
		syncService: syncService,
		reconciler:  rec,
		connections: connections,
		cron:        cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled runs.
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.ReconcileSpec, func() {
		logrus.Info("Starting scheduled reconciliation")
		if _, err := s.reconciler.Run(context.Background()); err != nil {
			logrus.Errorf("Scheduled reconciliation failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	_, err = s.cron.AddFunc(s.config.SyncSpec, func() {
		logrus.Info("Starting scheduled sync sweep")
		s.runSyncSweep()
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started (reconcile %q, sync %q)", s.config.ReconcileSpec, s.config.SyncSpec)
	return nil
}

// runSyncSweep syncs every active connection. Connections are independent:
// one failing sync never blocks the others.
func (s *Service) runSyncSweep() {
	ctx := context.Background()

	connections, err := s.connections.ListActiveConnections(ctx)
	if err != nil {
		logrus.Errorf("Failed to list connections for sync sweep: %v", err)
		return
	}

	for i := range connections {
		conn := &connections[i]
		if conn.Platform == models.PlatformDirect {
			// Direct reviews arrive through the submission API.
			continue
		}
		if _, err := s.syncService.SyncConnection(ctx, conn); err != nil {
			logrus.Errorf("Sync failed for connection %s: %v", conn.ID, err)
		}
	}
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
