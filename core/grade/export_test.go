package grade

import "time"

// SetNowFunc freezes the clock of the package until the returned func is called.
func SetNowFunc(now func() time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = now
	return func() { nowFunc = orig }
}
