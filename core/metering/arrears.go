package metering

import (
	"context"
	"time"

	"github.com/cloudverse/metering-center/core/dao"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/cloudverse/metering-center/pkg/formatter"
)

// DetectArrears compares every owner's unpaid statement total against their
// balance and records the shortfall. At most one arrears record per owner,
// service unit and day.
func DetectArrears(ctx context.Context) error {
	sums, err := dao.SumUnpaidStatements(ctx)
	if err != nil {
		return err
	}

	today := time.Now().Format(formatter.TimeFormatDateOnly)
	detected := 0
	for _, sum := range sums {
		user, err := dao.GetUserByID(ctx, sum.UserID)
		if err == dao.ErrNoRow {
			continue
		}
		if err != nil {
			return err
		}

		if user.Balance.GreaterThanOrEqual(sum.UnpaidAmount) {
			continue
		}

		exists, err := dao.ArrearsRecordExists(ctx, sum.UserID, sum.ServiceID, today)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		err = dao.AddArrearsRecord(ctx, &model.ArrearsRecord{
			UserID:        sum.UserID,
			ServiceID:     sum.ServiceID,
			Balance:       user.Balance,
			ArrearsAmount: sum.UnpaidAmount.Sub(user.Balance),
			Date:          today,
		})
		if err != nil {
			return err
		}
		detected++
	}

	if detected > 0 {
		log.Infof("detected %d owners in arrears", detected)
	}
	return nil
}
