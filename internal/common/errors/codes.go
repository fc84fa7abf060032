package errors

// Common codes used across domains.
const (
	CodeNotFound    Code = "not_found"
	CodeInvalid     Code = "invalid_request"
	CodeUnavailable Code = "unavailable"
	CodeTimeout     Code = "timeout"
	CodeInternal    Code = "internal_error"
)

// ============================================================================
// Config errors (startup, round-fatal per §7)
// ============================================================================

var (
	// ErrMissingUserID is returned when the config snapshot has no user_id.
	ErrMissingUserID = New(DomainConfig, "missing_user_id", "user_id is required")

	// ErrMissingRefreshToken is returned when the config snapshot has no refresh_token.
	ErrMissingRefreshToken = New(DomainConfig, "missing_refresh_token", "refresh_token is required")

	// ErrUnwritableOutputDir is returned when output_dir cannot be created or written to.
	ErrUnwritableOutputDir = New(DomainConfig, "unwritable_output_dir", "output_dir is not writable")

	// ErrInvalidMode is returned when mode is not one of bookmarks|following|both.
	ErrInvalidMode = New(DomainConfig, "invalid_mode", "mode must be one of: bookmarks, following, both")

	// ErrInvalidRestrict is returned when restrict is not one of public|private.
	ErrInvalidRestrict = New(DomainConfig, "invalid_restrict", "restrict must be one of: public, private")

	// ErrDisabled is returned when the config snapshot has enabled=false.
	ErrDisabled = New(DomainConfig, "disabled", "archive is disabled in configuration")
)

// ============================================================================
// Auth errors
// ============================================================================

var (
	// ErrAuthExpired is returned when the cached access token has expired or upstream rejected it.
	ErrAuthExpired = New(DomainAuth, "expired", "access token expired or rejected")

	// ErrAuthFatal is returned when a refresh+replay still fails with an auth error.
	ErrAuthFatal = New(DomainAuth, "fatal", "authentication failed after token refresh")

	// ErrNoRefreshToken is returned when the session has no refresh token to exchange.
	ErrNoRefreshToken = New(DomainAuth, "no_refresh_token", "no refresh token available")
)

// ============================================================================
// Rate limit / network / invalid / filesystem / database / queue errors
// ============================================================================

var (
	// ErrRateLimited is returned for classified 429/403-with-limit-text/5xx responses.
	ErrRateLimited = New(DomainRateLimit, "rate_limited", "upstream rate limit or transient unavailability")

	// ErrNetwork is returned for connection-level failures (DNS, TLS, timeout, EOF).
	ErrNetwork = New(DomainNetwork, "network", "network error communicating with upstream")

	// ErrWorkInvalid is returned when a work is gone, deleted, or otherwise permanently unavailable.
	ErrWorkInvalid = New(DomainInvalid, "work_invalid", "work does not exist or is permanently unavailable")

	// ErrFilesystem is returned for ENOSPC/EIO class errors.
	ErrFilesystem = New(DomainFilesystem, "io_error", "local filesystem error")

	// ErrDiskFull is returned by the pre-round disk space guard.
	ErrDiskFull = New(DomainFilesystem, "disk_full", "insufficient free space on output filesystem")

	// ErrDatabaseQuery is returned when a metadata store query fails.
	ErrDatabaseQuery = New(DomainDatabase, "query_failed", "metadata store query failed")

	// ErrDatabaseMigration is returned when schema setup/repair fails.
	ErrDatabaseMigration = New(DomainDatabase, "migration_failed", "metadata store schema migration failed")

	// ErrQueueCorrupt is returned when task_queue.json cannot be parsed.
	ErrQueueCorrupt = New(DomainQueue, "corrupt", "task queue file is corrupt")

	// ErrQueuePermanentFailed is returned when an item has exceeded its retry cap.
	ErrQueuePermanentFailed = New(DomainQueue, "permanent_failed", "item exceeded its retry budget")
)

// ============================================================================
// Internal / generic
// ============================================================================

var (
	// ErrInternal is a generic internal error for conditions that should not occur.
	ErrInternal = New(DomainInternal, CodeInternal, "internal error")
)
