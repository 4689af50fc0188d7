// Package config describes where the packager finds its inputs and where it
// writes the payload and archive, with helpers to load, validate and save the
// settings as YAML.
//
// Relative paths are resolved against RootDir, so the whole layout can be
// pointed at a temporary directory in tests.
package config
