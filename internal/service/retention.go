package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"pdfedit/internal/domain"
)

// PruneVersions keeps the newest keep versions of every document and deletes
// the rest along with their blobs. keep <= 0 disables pruning.
func (s *DocumentService) PruneVersions(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	pruned, err := s.store.PruneVersions(ctx, keep)
	if err != nil {
		return 0, mapStoreError(err, "failed to prune versions")
	}

	for _, v := range pruned {
		s.discardBlob(v.BlobKey)
		s.discardBlob(domain.PreviewKey(v.DocumentID, v.VersionNum))
	}

	if len(pruned) > 0 {
		s.logger.WithFields(logrus.Fields{
			"keep":   keep,
			"pruned": len(pruned),
		}).Info("Old versions pruned")
	}
	return len(pruned), nil
}

// RunRetention prunes once per interval until ctx is cancelled.
func (s *DocumentService) RunRetention(ctx context.Context, keep int, interval time.Duration) {
	if keep <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.PruneVersions(ctx, keep); err != nil {
				s.logger.WithError(err).Error("Retention run failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
