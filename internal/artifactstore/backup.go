package artifactstore

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// PendingBackup names one artifact that StoreArtifactsWithBackup recorded
// as missing from the backup bucket, kept by the caller (the runner) in
// its own persistence so a restart doesn't lose track of the backlog.
type PendingBackup struct {
	Codebase string
	Campaign string
	RunID    string
	Name     string
	Content  []byte
}

// UploadBackupArtifacts retries the backup write for every pending
// artifact, returning the subset that still failed. It is intended to run
// periodically as a drain job so a transient backup-bucket outage doesn't
// leave artifacts permanently un-backed-up.
func (s *Store) UploadBackupArtifacts(ctx context.Context, pending []PendingBackup) ([]PendingBackup, error) {
	if s.backup == nil {
		return pending, fmt.Errorf("artifactstore: no backup bucket configured")
	}
	var stillPending []PendingBackup
	for _, p := range pending {
		k := artifactKey(p.Codebase, p.Campaign, p.RunID, p.Name)
		if err := s.backup.WriteAll(ctx, k, p.Content, nil); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"codebase": p.Codebase,
				"campaign": p.Campaign,
				"run_id":   p.RunID,
				"artifact": p.Name,
			}).Warn("artifactstore: backup upload retry failed")
			stillPending = append(stillPending, p)
			continue
		}
	}
	return stillPending, nil
}
