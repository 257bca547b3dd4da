package metering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudverse/metering-center/core/dao"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/cloudverse/metering-center/core/tasklock"
	"github.com/cloudverse/metering-center/pkg/formatter"
)

const defaultExpiryAheadDays = 7

// NotifyExpiring mails the owners of prepaid servers that expire within the
// coming aheadDays, one mail per owner listing all their expiring servers.
func NotifyExpiring(ctx context.Context, mailer tasklock.Mailer, aheadDays int) error {
	if aheadDays <= 0 {
		aheadDays = defaultExpiryAheadDays
	}

	deadline := time.Now().AddDate(0, 0, aheadDays)
	servers, err := dao.ListExpiringServers(ctx, deadline)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return nil
	}

	byOwner := make(map[string][]*model.Server)
	for _, server := range servers {
		byOwner[server.UserID] = append(byOwner[server.UserID], server)
	}

	for userID, owned := range byOwner {
		user, err := dao.GetUserByID(ctx, userID)
		if err == dao.ErrNoRow {
			continue
		}
		if err != nil {
			return err
		}

		var lines []string
		for _, server := range owned {
			lines = append(lines, fmt.Sprintf("  server %s expires at %s",
				server.ID, server.ExpirationTime.Format(formatter.TimeFormatDatetime)))
		}
		message := fmt.Sprintf(
			"Hello:\n\nThe following prepaid resources expire within %d days. "+
				"Please renew them in time to avoid interruption.\n\n%s\n\nRegards\n",
			aheadDays, strings.Join(lines, "\n"))

		err = mailer.SendEmail(ctx, "Resource expiration notice", []string{user.Username}, message, "expiry")
		if err != nil {
			log.Errorf("send expiry notice to %s: %v", user.Username, err)
		}
	}

	return nil
}
