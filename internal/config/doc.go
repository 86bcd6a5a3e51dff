// Package config loads and validates the project configuration (config.toml).
//
// Values are read with viper into pointer fields; the Get* accessors supply
// defaults for omitted keys so partial configs are safe.
package config
