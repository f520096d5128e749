// SPDX-License-Identifier: MPL-2.0

// Package config loads gtm settings with Viper.
//
// Settings come from, in increasing precedence: built-in defaults, a gtm.yaml
// file, a .env file in the working directory, and GTM_* environment variables
// (GTM_ENGINE_TYPE overrides engine.type). The file is taken from --config when
// given, otherwise from the platform config directory (~/.config/gtm on Linux)
// or the current directory. The decoded Config is checked with
// go-playground/validator before use.
package config
