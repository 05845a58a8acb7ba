// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A .env file next to the process is loaded first when present, so local runs can
// keep database credentials out of the YAML file.
package config
