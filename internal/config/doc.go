// Package config loads rdbg configuration.
//
// Configuration comes from three places, later ones winning:
//
//  1. Defaults()
//  2. a TOML or YAML file, chosen by extension
//  3. RDBG_* environment variables (see ApplyEnv)
//
// A Watcher reloads the file when it changes so settings such as the log
// level can be adjusted without restarting a session.
package config
