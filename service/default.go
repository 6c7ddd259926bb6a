package service

import "sync/atomic"

var defaultService atomic.Pointer[Service]

// SetDefault installs the process-wide default service, for hosts that
// want a single ambient container instead of threading the instance
// through their platform glue.
func SetDefault(s *Service) {
	defaultService.Store(s)
}

// Default returns the process-wide default service, or nil if none was
// installed.
func Default() *Service {
	return defaultService.Load()
}
