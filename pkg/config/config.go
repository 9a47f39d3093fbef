// Package config loads an optional .env file into the process environment
// before a script runs, the same way the teacher's cmd entrypoints do.
package config

import "github.com/joho/godotenv"

// Load reads .env from the current directory. A missing file is not an
// error — the convention is opt-in, scripts that don't need it see no
// difference.
func Load() {
	_ = godotenv.Load()
}
