package lifecycle

import "errors"

// ErrStartupFailed means the service was spawned but did not survive the
// liveness confirmation window. The service log is the diagnostic artifact.
var ErrStartupFailed = errors.New("service failed during startup")
