// Package config handles gateway configuration loading from YAML files,
// including ${VAR} environment expansion for secrets, default values, and
// startup validation of the operator identity and account entries.
package config
