// Package config loads the persai configuration from a YAML file and the
// environment.
//
// The file is the base layer and a small set of PERSAI_* environment
// variables override it, so container deployments can run without a config
// file at all. A Manager can additionally watch the file and reload agent
// and server settings without a restart.
package config
