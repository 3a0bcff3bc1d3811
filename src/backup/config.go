package backup

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"virt-backup/src/drives"
)

// Backup modes a disk may request. An empty mode leaves the choice to
// the hypervisor.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// ScratchDiskConfig describes a pre-provisioned scratch disk for one
// drive. When absent, the session allocates a file-backed one itself.
type ScratchDiskConfig struct {
	Path string `yaml:"path" json:"path"`
	Type string `yaml:"type" json:"type"` // file or block
}

// DiskConfig selects one disk of the VM for backup by its storage
// identity.
type DiskConfig struct {
	VolumeID   string             `yaml:"volume_id" json:"volume_id"`
	ImageID    string             `yaml:"image_id" json:"image_id"`
	DomainID   string             `yaml:"domain_id" json:"domain_id"`
	Checkpoint bool               `yaml:"checkpoint" json:"checkpoint"`
	BackupMode string             `yaml:"backup_mode" json:"backup_mode"`
	Scratch    *ScratchDiskConfig `yaml:"scratch_disk" json:"scratch_disk"`
}

// BackupConfig is one validated backup session request. Immutable after
// Validate; the session never mutates it.
type BackupConfig struct {
	BackupID           string       `yaml:"backup_id" json:"backup_id"`
	FromCheckpointID   string       `yaml:"from_checkpoint_id" json:"from_checkpoint_id"`
	ToCheckpointID     string       `yaml:"to_checkpoint_id" json:"to_checkpoint_id"`
	ParentCheckpointID string       `yaml:"parent_checkpoint_id" json:"parent_checkpoint_id"`
	RequireConsistency bool         `yaml:"require_consistency" json:"require_consistency"`
	CreationTime       int64        `yaml:"creation_time" json:"creation_time"`
	Disks              []DiskConfig `yaml:"disks" json:"disks"`
}

// CheckpointConfig asks for one checkpoint to be (re)defined, either
// from raw descriptor XML or rebuilt from the backup request that
// originally created it.
type CheckpointConfig struct {
	CheckpointID string        `yaml:"checkpoint_id" json:"checkpoint_id"`
	XML          string        `yaml:"xml" json:"xml"`
	Config       *BackupConfig `yaml:"config" json:"config"`
}

// ParseBackupConfig decodes and validates one backup request document.
func ParseBackupConfig(data []byte) (*BackupConfig, error) {
	var cfg BackupConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, newError(KindValidation, err, "malformed backup request")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCheckpointConfigs decodes and validates a list of checkpoint
// redefinition requests, ordered base to leaf.
func ParseCheckpointConfigs(data []byte) ([]CheckpointConfig, error) {
	var cfgs []CheckpointConfig
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return nil, newError(KindValidation, err, "malformed checkpoint request")
	}
	for i := range cfgs {
		if err := cfgs[i].Validate(); err != nil {
			return nil, err
		}
	}
	return cfgs, nil
}

// Validate checks every invariant and reports all violations at once.
func (c *BackupConfig) Validate() error {
	var errs []error
	requireUUID(&errs, "backup_id", c.BackupID)
	optionalUUID(&errs, "from_checkpoint_id", c.FromCheckpointID)
	optionalUUID(&errs, "to_checkpoint_id", c.ToCheckpointID)
	optionalUUID(&errs, "parent_checkpoint_id", c.ParentCheckpointID)

	if c.FromCheckpointID != "" && c.ParentCheckpointID == "" {
		errs = append(errs, errors.New("from_checkpoint_id requires parent_checkpoint_id"))
	}
	if len(c.Disks) == 0 {
		errs = append(errs, errors.New("at least one disk is required"))
	}
	for i := range c.Disks {
		c.Disks[i].validate(&errs, c.FromCheckpointID)
	}
	if len(errs) > 0 {
		return newError(KindValidation, errors.Join(errs...), "invalid backup request")
	}
	return nil
}

func (d *DiskConfig) validate(errs *[]error, fromCheckpointID string) {
	requireUUID(errs, "volume_id", d.VolumeID)
	requireUUID(errs, "image_id", d.ImageID)
	requireUUID(errs, "domain_id", d.DomainID)

	switch d.BackupMode {
	case "", ModeFull:
	case ModeIncremental:
		if fromCheckpointID == "" {
			*errs = append(*errs, fmt.Errorf(
				"disk %s requests incremental mode but from_checkpoint_id is not set", d.ImageID))
		}
	default:
		*errs = append(*errs, fmt.Errorf(
			"disk %s has unknown backup_mode %q", d.ImageID, d.BackupMode))
	}

	if d.Scratch != nil {
		if d.Scratch.Path == "" {
			*errs = append(*errs, fmt.Errorf("disk %s scratch_disk path is required", d.ImageID))
		}
		switch d.Scratch.Type {
		case drives.TypeFile, drives.TypeBlock:
		default:
			*errs = append(*errs, fmt.Errorf(
				"disk %s has unknown scratch_disk type %q", d.ImageID, d.Scratch.Type))
		}
	}
}

// Validate enforces that a redefinition carries a descriptor or enough
// request state to rebuild one, never neither.
func (c *CheckpointConfig) Validate() error {
	var errs []error
	requireUUID(&errs, "checkpoint_id", c.CheckpointID)
	if c.XML == "" && c.Config == nil {
		errs = append(errs, errors.New("either xml or config is required"))
	}
	if c.Config != nil {
		if err := c.Config.Validate(); err != nil {
			errs = append(errs, err)
		}
		if c.Config.ToCheckpointID != c.CheckpointID {
			errs = append(errs, fmt.Errorf(
				"config.to_checkpoint_id %q does not name checkpoint %q",
				c.Config.ToCheckpointID, c.CheckpointID))
		}
	}
	if len(errs) > 0 {
		return newError(KindValidation, errors.Join(errs...), "invalid checkpoint request")
	}
	return nil
}

func requireUUID(errs *[]error, field, value string) {
	if value == "" {
		*errs = append(*errs, fmt.Errorf("%s is required", field))
		return
	}
	if err := uuid.Validate(value); err != nil {
		*errs = append(*errs, fmt.Errorf("%s is not a valid UUID: %q", field, value))
	}
}

func optionalUUID(errs *[]error, field, value string) {
	if value == "" {
		return
	}
	if err := uuid.Validate(value); err != nil {
		*errs = append(*errs, fmt.Errorf("%s is not a valid UUID: %q", field, value))
	}
}
