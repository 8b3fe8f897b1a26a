package version

import (
	"fmt"
)

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0
)

// String returns the application version as a properly formed string.
func String() string {
	return fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
}

// UserAgent returns the user agent sent to the API clients and logged on
// startup.
func UserAgent() string {
	return "/multisig:" + String() + "/"
}
