// Package ptr includes functions for creating pointers from values.
package ptr

import "time"

func String(x string) *string {
	return &x
}

func Int(x int) *int {
	return &x
}

func Bool(x bool) *bool {
	return &x
}

func Time(x time.Time) *time.Time {
	return &x
}
