package metering

import (
	"context"
	"time"

	"github.com/cloudverse/metering-center/core/dao"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/cloudverse/metering-center/core/pricing"
	"github.com/cloudverse/metering-center/pkg/formatter"
	"github.com/shopspring/decimal"
)

const listServersBatch = 200

// MeterServers writes one accrual row per postpaid server for the given
// day. Re-runs are idempotent: a server already metered for the date is
// skipped, so the job can resume after a partial failure.
func MeterServers(ctx context.Context, pm *pricing.PriceManager, date time.Time) error {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)
	if !dayEnd.Before(time.Now()) {
		log.Infof("metering skipped, day %s not complete yet", dayStart.Format(formatter.TimeFormatDateOnly))
		return nil
	}

	dateStr := dayStart.Format(formatter.TimeFormatDateOnly)
	metered := 0

	var lastCreated *time.Time
	lastID := ""
	for {
		servers, err := dao.ListServers(ctx, model.PayTypePostpaid, lastCreated, lastID, listServersBatch)
		if err != nil {
			return err
		}
		if len(servers) == 0 {
			break
		}

		for _, server := range servers {
			lastCreated = &server.CreatedAt
			lastID = server.ID

			ok, err := meterServer(ctx, pm, server, dayStart, dayEnd, dateStr)
			if err != nil {
				return err
			}
			if ok {
				metered++
			}
		}

		if len(servers) < listServersBatch {
			break
		}
	}

	meteringSettledRows.Set(float64(metered))
	log.Infof("metering %s done, %d new accrual rows", dateStr, metered)
	return nil
}

func meterServer(
	ctx context.Context, pm *pricing.PriceManager, server *model.Server, dayStart, dayEnd time.Time, dateStr string,
) (bool, error) {
	if !server.CreatedAt.Before(dayEnd) {
		return false, nil
	}

	exists, err := dao.MeteringServerExists(ctx, server.ID, dateStr)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	// servers created mid-day accrue from their creation instant
	start := dayStart
	if server.CreatedAt.After(dayStart) {
		start = server.CreatedAt
	}
	hours := decimal.NewFromInt(int64(dayEnd.Sub(start) / time.Second)).
		Div(decimal.NewFromInt(3600))

	cpuHours := hours.Mul(decimal.NewFromInt(int64(server.Vcpus)))
	ramHours := hours.Mul(decimal.NewFromInt(int64(server.RamGiB)))
	diskHours := hours.Mul(decimal.NewFromInt(int64(server.DiskGiB)))
	ipHours := decimal.Zero
	if server.PublicIP {
		ipHours = hours
	}

	amount, err := pm.DescribeServerMeteringPrice(ctx, ramHours, cpuHours, diskHours, ipHours)
	if err != nil {
		return false, err
	}
	original := pricing.Quantize124(amount)

	err = dao.AddMeteringServer(ctx, &model.MeteringServer{
		ServerID:      server.ID,
		UserID:        server.UserID,
		ServiceID:     server.ServiceID,
		Date:          dateStr,
		PayType:       model.PayTypePostpaid,
		CpuHours:      cpuHours,
		RamGiBHours:   ramHours,
		DiskGiBHours:  diskHours,
		PublicIPHours: ipHours,
		// postpaid accrual carries no discount
		OriginalAmount: original,
		TradeAmount:    original,
	})
	if err != nil {
		return false, err
	}

	return true, nil
}

// GenerateDailyStatements aggregates the day's postpaid accruals per owner
// and service unit into daily statements and binds the settled rows to
// them. Owners already settled for the date are skipped.
func GenerateDailyStatements(ctx context.Context, date time.Time) error {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	if !dayStart.AddDate(0, 0, 1).Before(time.Now()) {
		log.Infof("statement generation skipped, day %s not complete yet",
			dayStart.Format(formatter.TimeFormatDateOnly))
		return nil
	}

	dateStr := dayStart.Format(formatter.TimeFormatDateOnly)
	aggregates, err := dao.AggregateMeteringsByDate(ctx, dateStr)
	if err != nil {
		return err
	}

	generated := 0
	for _, agg := range aggregates {
		_, err := dao.GetDailyStatement(ctx, agg.UserID, agg.ServiceID, dateStr)
		if err == nil {
			continue
		}
		if err != dao.ErrNoRow {
			return err
		}

		statement := &model.DailyStatement{
			UserID:         agg.UserID,
			ServiceID:      agg.ServiceID,
			Date:           dateStr,
			OriginalAmount: pricing.Quantize124(agg.OriginalAmount),
			PayableAmount:  pricing.Quantize124(agg.TradeAmount),
			PaymentStatus:  model.PaymentStatusUnpaid,
		}
		if err := dao.AddDailyStatement(ctx, statement); err != nil {
			return err
		}
		if err := dao.BindMeteringsToStatement(ctx, statement.ID, agg.UserID, agg.ServiceID, dateStr); err != nil {
			return err
		}
		generated++
	}

	meteringDailyStatements.Set(float64(generated))
	log.Infof("generated %d daily statements for %s", generated, dateStr)
	return nil
}
