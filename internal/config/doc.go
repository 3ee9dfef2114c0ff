// SPDX-License-Identifier: MPL-2.0

// Package config handles svcpack's user configuration using Viper with CUE as the file format.
//
// Configuration is loaded from $XDG_CONFIG_HOME/svcpack/config.cue (~/.config/svcpack on
// Linux, ~/Library/Application Support/svcpack on macOS, %APPDATA%\svcpack on Windows),
// or from an explicit file passed with --config. Files are validated against the #Config
// definition in config_schema.cue before being merged over the built-in defaults.
// SVCPACK_* environment variables override both (SVCPACK_BUILD_MAX_ATTEMPTS for
// build.max_attempts).
package config
