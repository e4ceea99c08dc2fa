// Package config reads the questgraph.yaml file used by the CLI.
package config
