package sync

import "github.com/dwnode/dwnd/internal/model"

// Reconciliation is the three-way diff between a local and a remote
// record manifest: which records only exist on one side, and which
// exist on both but disagree on their latest entry id.
type Reconciliation struct {
	// LocalOnly are record ids present locally but not in the remote manifest.
	LocalOnly []string
	// RemoteOnly are record ids present in the remote manifest but not locally.
	RemoteOnly []string
	// Conflict are record ids present on both sides with differing latest entry ids.
	Conflict []string
}

// Reconcile compares local against remote and classifies every record id.
func Reconcile(local, remote []model.LocalRecordRef) Reconciliation {
	localByID := make(map[string]string, len(local))
	for _, ref := range local {
		localByID[ref.RecordID] = ref.LatestEntryID
	}

	remoteByID := make(map[string]string, len(remote))
	for _, ref := range remote {
		remoteByID[ref.RecordID] = ref.LatestEntryID
	}

	var result Reconciliation

	for recordID, localEntryID := range localByID {
		remoteEntryID, inRemote := remoteByID[recordID]

		switch {
		case !inRemote:
			result.LocalOnly = append(result.LocalOnly, recordID)
		case remoteEntryID != localEntryID:
			result.Conflict = append(result.Conflict, recordID)
		}
	}

	for recordID := range remoteByID {
		if _, inLocal := localByID[recordID]; !inLocal {
			result.RemoteOnly = append(result.RemoteOnly, recordID)
		}
	}

	return result
}
