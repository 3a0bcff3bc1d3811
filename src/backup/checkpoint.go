package backup

import (
	"errors"
	"fmt"

	"virt-backup/src/virtapi"
)

// ChainFailure is the machine-readable error embedded in a partial
// chain result.
type ChainFailure struct {
	Code    Kind   `json:"code"`
	Message string `json:"message"`
}

func (f *ChainFailure) Error() string { return fmt.Sprintf("%s: %s", f.Code, f.Message) }

// ChainResult reports a bulk chain operation. CheckpointIDs lists what
// was processed successfully, in order; Failure, when set, is the first
// hard error, which stopped processing. Partial progress is a
// first-class outcome, never discarded because a later step failed.
type ChainResult struct {
	CheckpointIDs []string      `json:"checkpoint_ids"`
	Failure       *ChainFailure `json:"error,omitempty"`
}

func chainFailure(kind Kind, cause error, format string, args ...any) *ChainFailure {
	if kind == "" {
		kind = KindChain
	}
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &ChainFailure{Code: kind, Message: msg}
}

// ListCheckpoints returns the chain's checkpoint names base to leaf.
func (m *Manager) ListCheckpoints() ([]string, error) {
	if err := m.gate(); err != nil {
		return nil, err
	}
	names, err := m.dom.ListCheckpoints()
	if err != nil {
		return nil, newError(KindChain, err, "failed to list checkpoints")
	}
	return names, nil
}

// DeleteCheckpoints removes the given checkpoints, which the caller
// supplies base to leaf. A checkpoint that is already absent counts as
// deleted; any other failure stops processing and lands in the result's
// Failure field together with everything deleted so far.
func (m *Manager) DeleteCheckpoints(checkpointIDs []string) (*ChainResult, error) {
	if err := m.gate(); err != nil {
		return nil, err
	}
	result := &ChainResult{CheckpointIDs: []string{}}
	for _, id := range checkpointIDs {
		if err := m.dom.DeleteCheckpoint(id); err != nil {
			var notFound *virtapi.NotFoundError
			if errors.As(err, &notFound) {
				m.log.Debug().Str("checkpoint_id", id).Msg("checkpoint already absent")
				result.CheckpointIDs = append(result.CheckpointIDs, id)
				continue
			}
			result.Failure = chainFailure(KindChain, err, "failed to delete checkpoint %s", id)
			return result, nil
		}
		m.log.Info().Str("checkpoint_id", id).Msg("checkpoint deleted")
		result.CheckpointIDs = append(result.CheckpointIDs, id)
	}
	return result, nil
}

// RedefineCheckpoints re-registers checkpoint metadata on the VM, base
// to leaf, after something (a migration, a redeploy) dropped it. Each
// request carries either raw descriptor XML or the backup request to
// rebuild it from. Same partial-progress contract as delete.
func (m *Manager) RedefineCheckpoints(cfgs []CheckpointConfig) (*ChainResult, error) {
	if err := m.gate(); err != nil {
		return nil, err
	}
	result := &ChainResult{CheckpointIDs: []string{}}
	for i := range cfgs {
		cfg := &cfgs[i]
		checkpointXML, err := m.redefineXML(cfg)
		if err != nil {
			result.Failure = chainFailure(KindOf(err), err,
				"failed to build descriptor for checkpoint %s", cfg.CheckpointID)
			return result, nil
		}
		m.log.Debug().
			Str("checkpoint_id", cfg.CheckpointID).
			Str("checkpoint_xml", checkpointXML).
			Msg("redefining checkpoint")
		if err := m.dom.RedefineCheckpoint(checkpointXML); err != nil {
			kind := KindChain
			var inconsistent *virtapi.InconsistentCheckpointError
			if errors.As(err, &inconsistent) {
				kind = KindInconsistentCheckpoint
			}
			result.Failure = chainFailure(kind, err, "failed to redefine checkpoint %s", cfg.CheckpointID)
			return result, nil
		}
		m.log.Info().Str("checkpoint_id", cfg.CheckpointID).Msg("checkpoint redefined")
		result.CheckpointIDs = append(result.CheckpointIDs, cfg.CheckpointID)
	}
	return result, nil
}

// redefineXML picks or rebuilds the descriptor for one redefinition.
// Drives that are no longer attached are tolerated here; the descriptor
// builder drops their bitmap entries.
func (m *Manager) redefineXML(cfg *CheckpointConfig) (string, error) {
	if cfg.XML != "" {
		return cfg.XML, nil
	}
	attached, err := m.catalog.Drives()
	if err != nil {
		return "", newError(KindLookup, err, "failed to list attached drives")
	}
	byImage := make(map[string]BackupDrive, len(attached))
	for _, disk := range cfg.Config.Disks {
		if info, ok := findDrive(attached, disk); ok {
			byImage[disk.ImageID] = BackupDrive{
				Name:    info.Name,
				Path:    info.Path,
				Type:    info.Type,
				ImageID: disk.ImageID,
			}
		}
	}
	return BuildCheckpointXML(cfg.Config, byImage)
}

// DumpCheckpoint fetches one checkpoint's descriptor XML.
func (m *Manager) DumpCheckpoint(checkpointID string) (string, error) {
	if err := m.gate(); err != nil {
		return "", err
	}
	xmlDesc, err := m.dom.CheckpointXMLDesc(checkpointID)
	if err != nil {
		var notFound *virtapi.NotFoundError
		if errors.As(err, &notFound) {
			return "", newError(KindNoSuchCheckpoint, err, "no checkpoint %s", checkpointID)
		}
		return "", newError(KindChain, err, "failed to fetch checkpoint %s", checkpointID)
	}
	return xmlDesc, nil
}
