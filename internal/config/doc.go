// Package config loads switchboard configuration.
//
// Values are layered, later layers overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. The TOML configuration file
//  3. SWITCHBOARD_* environment variables
//
// Example file:
//
//	host_version = "2.0.0"
//
//	[logging]
//	level = "debug"
//
//	[health]
//	interval = "30s"
//	auto_recover = true
//
//	[adapters]
//	enabled = ["cache", "search", "journal"]
//	script_dirs = ["~/.config/switchboard/adapters"]
//	inventory = "/etc/switchboard/inventory.yaml"
//
//	[adapters.settings.search]
//	max_results = 20
package config
