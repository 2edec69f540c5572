// Package config loads the launcher's own settings (explicit secret file
// paths, status listener, reload behaviour, logging) from multiple sources
// with precedence: CLI flags > config file (YAML or TOML) > Environment
// variables > Defaults. It does not hold the resolved deployment secrets;
// see package secrets for those.
package config
