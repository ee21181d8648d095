package http

import (
	"time"

	xutil "SigPull/pkg/util"
)

// ParseTime accepts RFC3339, RFC3339Nano, or unix seconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }

// ParseTimeDefault parses a time, falling back to def.
func ParseTimeDefault(s string, def time.Time) time.Time { return xutil.ParseTimeDefault(s, def) }
