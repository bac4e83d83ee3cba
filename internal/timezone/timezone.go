// Package timezone resolves the clinic's time zone.
package timezone

import (
	"time"
	_ "time/tzdata"
)

// Default is the clinic's zone when none is configured.
const Default = "Europe/Minsk"

// minsk is used when the tz database has no Europe/Minsk entry.
var minsk = time.FixedZone("+03", 3*60*60)

// Load resolves name, falling back to Europe/Minsk for empty or unknown names.
func Load(name string) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(Default); err == nil {
		return loc
	}
	return minsk
}

// Valid reports whether name is a known zone.
func Valid(name string) bool {
	_, err := time.LoadLocation(name)
	return err == nil
}
