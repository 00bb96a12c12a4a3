// Package config manages user-level settings stored at ~/.taskforge/config.yaml,
// such as the default network, the log level, and where compiler builds are
// downloaded from and cached.
package config
