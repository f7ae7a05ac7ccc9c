// Package config loads, normalizes, and validates weft configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours the environment fallbacks WEFT_ACCOUNT_URL,
// WEFT_TOKEN and WEFT_TOKEN_SECRET. The account service URL is deliberately
// not required here: the account client reports a missing URL as a
// configuration error on first use, so read-only commands like
// `weft config init` keep working without it.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
