package server

import (
	"context"
	"log"
	"time"
)

// StartWorkers launches all background goroutines. Call with a
// cancellable context for graceful shutdown.
func (s *Server) StartWorkers(ctx context.Context, maintenanceInterval time.Duration) {
	go s.runMaintenance(ctx, maintenanceInterval)
}

// runMaintenance periodically runs the trust maintenance job: reputation
// recompute with decay, vouch retention pruning, and path cache pruning.
// Overlapping runs are prevented here by running on a single goroutine.
func (s *Server) runMaintenance(ctx context.Context, interval time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			res, err := s.trust.RunMaintenance()
			if err != nil {
				log.Printf("[worker] maintenance: %v", err)
				continue
			}
			log.Printf("[worker] maintenance: %d agents updated, %d vouches pruned, %d cache entries pruned",
				res.AgentsUpdated, res.VouchesPruned, res.CacheEntriesPruned)
		}
	}
}
