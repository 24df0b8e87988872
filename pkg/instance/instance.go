package instance

import (
	"fmt"
	"os"

	"github.com/angelmondragon/shopfloor-backend/pkg/env"
)

// GetID returns the worker instance identifier used as the cron lock owner.
func GetID() string {
	if id := env.Get("WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return "worker-0"
}
