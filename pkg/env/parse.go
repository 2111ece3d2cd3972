package env

import (
	"fmt"

	cenv "github.com/caarlos0/env/v11"
)

// Parse fills a tagged config struct from the process environment.
// The .env file has already been merged by the godotenv autoload import.
func Parse(cfg any) error {
	if err := cenv.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
