// Package config holds the Config Snapshot (C1): the
// immutable parameter set read once per scheduler round. Nothing in the
// core reaches back into Viper mid-round — a snapshot is resolved once,
// handed to the scheduler, and any change to the external config store
// only takes effect at the next round boundary (§8, "config snapshot
// change mid-round").
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/corvidae/pixback/internal/common/errors"
	"github.com/corvidae/pixback/internal/common/paths"
)

// Mode selects which listing sources the scanner walks.
type Mode string

const (
	ModeBookmarks Mode = "bookmarks"
	ModeFollowing Mode = "following"
	ModeBoth      Mode = "both"
)

// Restrict selects the visibility of bookmarks to scan.
type Restrict string

const (
	RestrictPublic  Restrict = "public"
	RestrictPrivate Restrict = "private"
)

// Snapshot is the immutable configuration for one scheduler round (C1).
type Snapshot struct {
	Enabled      bool
	UserID       string
	RefreshToken string
	OutputDir    string
	Mode         Mode
	Restrict     Restrict

	// MaxDownloads bounds the round's admitted work. 0 means unlimited
	// (§9 open question, resolved in favor of "0 = unlimited").
	MaxDownloads int

	Timeout time.Duration

	SyncInterval       time.Duration
	CooldownAfterLimit time.Duration
	CooldownAfterError time.Duration

	HighSpeedQueueSize int
	LowSpeedInterval   time.Duration
	IntervalJitter     time.Duration

	// MirrorBucket, when non-empty, enables the optional S3-compatible
	// off-router replica for disaster recovery.
	MirrorBucket string

	// AuditRetentionDays controls when rotated audit logs are compressed.
	AuditRetentionDays int
}

// Load reads a Snapshot once from Viper. Callers (the scheduler, `run`,
// `test`) are expected to call this exactly once per round.
func Load() (*Snapshot, error) {
	s := &Snapshot{
		Enabled:      viper.GetBool("enabled"),
		UserID:       viper.GetString("user_id"),
		RefreshToken: viper.GetString("refresh_token"),
		OutputDir:    paths.Expand(viper.GetString("output_dir")),
		Mode:         Mode(defaultString(viper.GetString("mode"), string(ModeBoth))),
		Restrict:     Restrict(defaultString(viper.GetString("restrict"), string(RestrictPublic))),
		MaxDownloads: viper.GetInt("max_downloads"),

		Timeout: durationSeconds(viper.GetInt("timeout"), 30),

		SyncInterval:       durationMinutes(viper.GetInt("sync_interval_minutes"), 30),
		CooldownAfterLimit: durationMinutes(viper.GetInt("cooldown_after_limit_minutes"), 60),
		CooldownAfterError: durationMinutes(viper.GetInt("cooldown_after_error_minutes"), 15),

		HighSpeedQueueSize: defaultInt(viper.GetInt("high_speed_queue_size"), 10),
		LowSpeedInterval:   durationSeconds(viper.GetInt("low_speed_interval_seconds"), 3),
		IntervalJitter:     time.Duration(defaultInt(viper.GetInt("interval_jitter_ms"), 500)) * time.Millisecond,

		MirrorBucket:       viper.GetString("mirror_bucket"),
		AuditRetentionDays: defaultInt(viper.GetInt("audit_retention_days"), 90),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate enforces the config-domain invariants from §7: missing
// credentials or an unwritable output directory refuse to start the round
// rather than limping along with a half-valid snapshot.
func (s *Snapshot) Validate() error {
	if !s.Enabled {
		return errors.ErrDisabled
	}
	if strings.TrimSpace(s.UserID) == "" {
		return errors.ErrMissingUserID
	}
	if strings.TrimSpace(s.RefreshToken) == "" {
		return errors.ErrMissingRefreshToken
	}
	if s.OutputDir == "" {
		return errors.ErrUnwritableOutputDir
	}
	if err := paths.EnsureDirPath(s.OutputDir); err != nil {
		return errors.ErrUnwritableOutputDir.WithCause(err)
	}
	switch s.Mode {
	case ModeBookmarks, ModeFollowing, ModeBoth:
	default:
		return errors.ErrInvalidMode
	}
	switch s.Restrict {
	case RestrictPublic, RestrictPrivate:
	default:
		return errors.ErrInvalidRestrict
	}
	if s.MaxDownloads < 0 {
		return errors.ErrInvalidMode.WithMessage("max_downloads must be >= 0 (0 = unlimited)")
	}
	return nil
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationSeconds(v, def int) time.Duration {
	return time.Duration(defaultInt(v, def)) * time.Second
}

func durationMinutes(v, def int) time.Duration {
	return time.Duration(defaultInt(v, def)) * time.Minute
}
