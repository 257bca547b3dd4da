package dao

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	tableNameServer         = "server"
	tableNameMeteringServer = "metering_server"
	tableNameDailyStatement = "daily_statement"
	tableNameArrearsRecord  = "arrears_record"
)

// ListServers pages through resource rows by (created_at, id) cursor,
// optionally restricted to one pay type. The drivers walk the whole table
// in batches; rows sharing a creation instant are disambiguated by id.
func ListServers(ctx context.Context, payType model.PayType, cursorCreatedAt *time.Time, cursorID string, limit int) ([]*model.Server, error) {
	builder := squirrel.Select("*").From(tableNameServer).OrderBy("created_at ASC", "id ASC").Limit(uint64(limit))
	if payType != "" {
		builder = builder.Where("pay_type = ?", payType)
	}
	if cursorCreatedAt != nil {
		builder = builder.Where(squirrel.Or{
			squirrel.Gt{"created_at": *cursorCreatedAt},
			squirrel.And{
				squirrel.Eq{"created_at": *cursorCreatedAt},
				squirrel.Gt{"id": cursorID},
			},
		})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var out []*model.Server
	if err := DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, err
	}

	return out, nil
}

// ListExpiringServers returns prepaid servers whose expiration falls inside
// (now, deadline].
func ListExpiringServers(ctx context.Context, deadline time.Time) ([]*model.Server, error) {
	var out []*model.Server
	err := DB.SelectContext(ctx, &out, `
		SELECT * FROM server WHERE pay_type = ? AND expiration_time IS NOT NULL
		AND expiration_time > ? AND expiration_time <= ?;`,
		model.PayTypePrepaid, time.Now(), deadline)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// MeteringServerExists reports whether a server already has an accrual row
// for the date, which keeps re-runs of the metering job idempotent.
func MeteringServerExists(ctx context.Context, serverID, date string) (bool, error) {
	var count int64
	err := DB.GetContext(ctx, &count,
		`SELECT count(1) FROM metering_server WHERE server_id = ? AND date = ?;`, serverID, date)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func AddMeteringServer(ctx context.Context, metering *model.MeteringServer) error {
	if metering.ID == "" {
		metering.ID = uuid.NewString()
	}
	metering.CreatedAt = time.Now()

	_, err := DB.NamedExecContext(ctx, `
		INSERT INTO metering_server (id, server_id, user_id, service_id, date, pay_type, cpu_hours, ram_gib_hours,
			disk_gib_hours, public_ip_hours, original_amount, trade_amount, daily_statement_id, created_at)
		VALUES (:id, :server_id, :user_id, :service_id, :date, :pay_type, :cpu_hours, :ram_gib_hours,
			:disk_gib_hours, :public_ip_hours, :original_amount, :trade_amount, :daily_statement_id, :created_at);`,
		metering)
	return err
}

// MeteringAggregate is one owner's postpaid accrual sum for one service unit.
type MeteringAggregate struct {
	UserID         string          `db:"user_id"`
	ServiceID      string          `db:"service_id"`
	OriginalAmount decimal.Decimal `db:"original_amount"`
	TradeAmount    decimal.Decimal `db:"trade_amount"`
}

// AggregateMeteringsByDate groups the date's postpaid metering rows per
// owner and service unit for daily statement generation.
func AggregateMeteringsByDate(ctx context.Context, date string) ([]*MeteringAggregate, error) {
	var out []*MeteringAggregate
	err := DB.SelectContext(ctx, &out, `
		SELECT user_id, service_id, SUM(original_amount) AS original_amount, SUM(trade_amount) AS trade_amount
		FROM metering_server WHERE date = ? AND pay_type = ?
		GROUP BY user_id, service_id ORDER BY user_id;`, date, model.PayTypePostpaid)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func GetDailyStatement(ctx context.Context, userID, serviceID, date string) (*model.DailyStatement, error) {
	var out model.DailyStatement
	err := DB.GetContext(ctx, &out, `
		SELECT * FROM daily_statement WHERE user_id = ? AND service_id = ? AND date = ?;`,
		userID, serviceID, date)
	if err == sql.ErrNoRows {
		return nil, ErrNoRow
	}
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func AddDailyStatement(ctx context.Context, statement *model.DailyStatement) error {
	if statement.ID == "" {
		statement.ID = uuid.NewString()
	}
	statement.CreatedAt = time.Now()

	_, err := DB.NamedExecContext(ctx, `
		INSERT INTO daily_statement (id, user_id, service_id, date, original_amount, payable_amount, payment_status, created_at)
		VALUES (:id, :user_id, :service_id, :date, :original_amount, :payable_amount, :payment_status, :created_at);`,
		statement)
	return err
}

// BindMeteringsToStatement back-fills the statement id onto the metering
// rows it settled.
func BindMeteringsToStatement(ctx context.Context, statementID, userID, serviceID, date string) error {
	_, err := DB.ExecContext(ctx, `
		UPDATE metering_server SET daily_statement_id = ?
		WHERE user_id = ? AND service_id = ? AND date = ? AND pay_type = ?;`,
		statementID, userID, serviceID, date, model.PayTypePostpaid)
	return err
}

// UnpaidAmountByOwner is one owner's unpaid statement total per service unit.
type UnpaidAmountByOwner struct {
	UserID       string          `db:"user_id"`
	ServiceID    string          `db:"service_id"`
	UnpaidAmount decimal.Decimal `db:"unpaid_amount"`
}

// SumUnpaidStatements totals unpaid daily statements per owner and service.
func SumUnpaidStatements(ctx context.Context) ([]*UnpaidAmountByOwner, error) {
	var out []*UnpaidAmountByOwner
	err := DB.SelectContext(ctx, &out, `
		SELECT user_id, service_id, SUM(payable_amount) AS unpaid_amount
		FROM daily_statement WHERE payment_status = ?
		GROUP BY user_id, service_id;`, model.PaymentStatusUnpaid)
	if err != nil {
		return nil, err
	}

	return out, nil
}

// MonthlyStatementSummary is the platform-wide statement total for one month.
type MonthlyStatementSummary struct {
	StatementCount int64           `db:"statement_count"`
	OriginalAmount decimal.Decimal `db:"original_amount"`
	PayableAmount  decimal.Decimal `db:"payable_amount"`
}

// SumStatementsByMonth totals daily statements whose date falls in the
// given month ("2006-01").
func SumStatementsByMonth(ctx context.Context, month string) (*MonthlyStatementSummary, error) {
	var out MonthlyStatementSummary
	err := DB.GetContext(ctx, &out, `
		SELECT count(1) AS statement_count,
			COALESCE(SUM(original_amount), 0) AS original_amount,
			COALESCE(SUM(payable_amount), 0) AS payable_amount
		FROM daily_statement WHERE date LIKE ?;`, month+"-%")
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// ArrearsRecordExists keeps arrears detection idempotent per day.
func ArrearsRecordExists(ctx context.Context, userID, serviceID, date string) (bool, error) {
	var count int64
	err := DB.GetContext(ctx, &count,
		`SELECT count(1) FROM arrears_record WHERE user_id = ? AND service_id = ? AND date = ?;`,
		userID, serviceID, date)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

func AddArrearsRecord(ctx context.Context, record *model.ArrearsRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = time.Now()

	_, err := DB.NamedExecContext(ctx, `
		INSERT INTO arrears_record (id, user_id, service_id, balance, arrears_amount, date, created_at)
		VALUES (:id, :user_id, :service_id, :balance, :arrears_amount, :date, :created_at);`,
		record)
	return err
}
