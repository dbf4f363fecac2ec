package ai

import "errors"

// ErrAuditDisabled is returned when no audit repository is configured
var ErrAuditDisabled = errors.New("analysis audit is disabled")
