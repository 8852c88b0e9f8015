package core

import "time"

// Config holds the engine-facing subset of spec §6's configuration
// inputs: the numbers TransferSession and its collaborators need to
// enforce admission, quotas, and timers. The signature key used to
// derive a publicId lives in internal/identity, not here — the core
// never derives ids, it only consumes them.
type Config struct {
	MaxChunkSize     int
	QueueMax         int
	MaxConsumers     int
	SessionLimit     int
	MaxLifetime      time.Duration
	MaxInitialFreeze time.Duration
	ClientTimeout    time.Duration
}
