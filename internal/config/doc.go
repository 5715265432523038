// Package config loads the daemon configuration.
//
// Sources are applied from lowest to highest priority:
//
//  1. defaults in code
//  2. base.yaml (or base.json)
//  3. {environment}.yaml
//  4. local.yaml, development only
//  5. environment variables
//
// The merged result is validated with struct tags plus cross-field rules.
// In development a Watcher reloads the files on change and hands the new
// configuration to registered callbacks.
package config
