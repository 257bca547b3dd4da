package metering

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudverse/metering-center/core/dao"
	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/pricing"
	"github.com/cloudverse/metering-center/core/tasklock"
	"github.com/cloudverse/metering-center/pkg/formatter"
)

// SendMonthlyReport mails the federal admins the previous month's platform
// settlement totals.
func SendMonthlyReport(ctx context.Context, mailer tasklock.Mailer) error {
	month := time.Now().AddDate(0, -1, 0).Format(formatter.TimeFormatMonth)
	summary, err := dao.SumStatementsByMonth(ctx, month)
	if err != nil {
		return err
	}

	receivers, err := dao.ListFedAdminUsernames(ctx)
	if err != nil {
		return err
	}
	if len(receivers) == 0 {
		return errors.New(errors.NoReceivers)
	}

	// amounts are settled at the (12,4) scale but displayed at (10,2)
	message := fmt.Sprintf(
		"Hello:\n\nSettlement report for %s:\n\n"+
			"  daily statements: %d\n  original amount:  %s\n  payable amount:   %s\n\nRegards\n",
		month, summary.StatementCount,
		pricing.Quantize102(summary.OriginalAmount).StringFixed(2),
		pricing.Quantize102(summary.PayableAmount).StringFixed(2))

	return mailer.SendEmail(ctx, fmt.Sprintf("Monthly settlement report %s", month), receivers, message, "report")
}
