package pricing

import (
	"time"

	"github.com/cloudverse/metering-center/core/errors"
	"github.com/golang-module/carbon/v2"
)

// PeriodMonthDaysFrom counts the calendar days covered by a whole-month
// prepaid period starting at the given instant. The end of the period is the
// start advanced by months with no-overflow semantics: a start on the 31st
// of a month lands on the last valid day of the target month instead of
// spilling into the one after.
func PeriodMonthDaysFrom(start time.Time, months int) (int, error) {
	if months < 1 || months > 12 {
		return 0, errors.Newf(errors.InvalidPeriod, "period must be 1-12 months, got %d", months)
	}

	begin := carbon.CreateFromStdTime(start)
	end := begin.AddMonthsNoOverflow(months)
	return int(begin.DiffInDays(end)), nil
}

// PeriodMonthDays counts from the current instant.
func PeriodMonthDays(months int) (int, error) {
	return PeriodMonthDaysFrom(time.Now(), months)
}
