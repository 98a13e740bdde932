package config

import "time"

func timeDuration(ns int) time.Duration {
	return time.Duration(ns)
}
