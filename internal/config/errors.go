package config

import "errors"

// ErrInvalidConfig is returned by Config.Validate for any out-of-range
// or malformed configuration value.
var ErrInvalidConfig = errors.New("invalid config")

// ErrorInvalidConfig is the stable error code surfaced alongside ErrInvalidConfig.
const ErrorInvalidConfig = "ERROR_INVALID_CONFIG"
