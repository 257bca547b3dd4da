package dao

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cloudverse/metering-center/core/model"
)

const tableNameUser = "users"

func GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	var user model.User
	err := DB.GetContext(ctx, &user, fmt.Sprintf(`SELECT * FROM %s WHERE id = ?;`, tableNameUser), userID)
	if err == sql.ErrNoRows {
		return nil, ErrNoRow
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ListFedAdminUsernames resolves the notification receivers for platform
// level alerts, the users holding the federal admin role.
func ListFedAdminUsernames(ctx context.Context) ([]string, error) {
	var out []string
	err := DB.SelectContext(ctx, &out, fmt.Sprintf(`SELECT username FROM %s WHERE is_fed_admin = true;`, tableNameUser))
	if err != nil {
		return nil, err
	}

	return out, nil
}
