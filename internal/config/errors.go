package config

import "errors"

// ErrConfigInvalid covers an unknown key, a missing required field,
// or a non-HTTPS server_url. Fatal at startup.
var ErrConfigInvalid = errors.New("invalid configuration")
