package policy

import (
	"time"

	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/model"
)

// ValidateAdvanceBooking checks now+MinAdvanceMinutes <= start <=
// now+MaxAdvanceDays, each bound skipped if unset. A start before now is
// always rejected outside test mode.
func ValidateAdvanceBooking(p *model.AdvanceBookingPolicy, now, start time.Time, testMode bool) error {
	if !testMode && start.Before(now) {
		return internaltypes.InvalidFormat("start is in the past")
	}
	if p == nil {
		return nil
	}
	if p.MinAdvanceMinutes > 0 {
		if start.Before(now.Add(time.Duration(p.MinAdvanceMinutes) * time.Minute)) {
			return internaltypes.InvalidFormat("start violates minAdvanceMinutes")
		}
	}
	if p.MaxAdvanceDays > 0 {
		if start.After(now.AddDate(0, 0, p.MaxAdvanceDays)) {
			return internaltypes.InvalidFormat("start violates maxAdvanceDays")
		}
	}
	return nil
}
