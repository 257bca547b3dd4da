package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayType string

const (
	PayTypePrepaid  PayType = "prepaid"
	PayTypePostpaid PayType = "postpaid"
)

type ResourceType string

const (
	ResourceTypeVM     ResourceType = "vm"
	ResourceTypeDisk   ResourceType = "disk"
	ResourceTypeBucket ResourceType = "bucket"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// Price is one row of the resource price table; unit prices are per hour
// except the traffic prices which are per GiB. The newest row by creation
// time is the effective one.
type Price struct {
	ID              string          `db:"id" json:"id"`
	VMRam           decimal.Decimal `db:"vm_ram" json:"vm_ram"`
	VMCpu           decimal.Decimal `db:"vm_cpu" json:"vm_cpu"`
	VMDisk          decimal.Decimal `db:"vm_disk" json:"vm_disk"`
	VMPubIP         decimal.Decimal `db:"vm_pub_ip" json:"vm_pub_ip"`
	VMUpstream      decimal.Decimal `db:"vm_upstream" json:"vm_upstream"`
	VMDownstream    decimal.Decimal `db:"vm_downstream" json:"vm_downstream"`
	VMDiskSnap      decimal.Decimal `db:"vm_disk_snap" json:"vm_disk_snap"`
	DiskSize        decimal.Decimal `db:"disk_size" json:"disk_size"`
	DiskSnap        decimal.Decimal `db:"disk_snap" json:"disk_snap"`
	ObjSize         decimal.Decimal `db:"obj_size" json:"obj_size"`
	ObjUpstream     decimal.Decimal `db:"obj_upstream" json:"obj_upstream"`
	ObjDownstream   decimal.Decimal `db:"obj_downstream" json:"obj_downstream"`
	ObjGetRequest   decimal.Decimal `db:"obj_get_request" json:"obj_get_request"`
	ObjPutRequest   decimal.Decimal `db:"obj_put_request" json:"obj_put_request"`
	PrepaidDiscount int             `db:"prepaid_discount" json:"prepaid_discount"`
	CreatedAt       time.Time       `db:"created_at" json:"-"`
}

type TaskLockStatus string

const (
	TaskLockStatusNone    TaskLockStatus = "none"
	TaskLockStatusRunning TaskLockStatus = "running"
)

// TaskName identifies a recurring job; each job owns exactly one lock row
// and lock names outside this set are rejected.
type TaskName string

const (
	TaskMetering             TaskName = "metering"
	TaskBucketMonthly        TaskName = "bkt-monthly"
	TaskReportMonthly        TaskName = "report-monthly"
	TaskLogTimeCount         TaskName = "log-time-count"
	TaskReqCount             TaskName = "req-count"
	TaskScan                 TaskName = "scan"
	TaskScreenHostCpuUsage   TaskName = "screen-host-cpuusage"
	TaskScreenServiceStats   TaskName = "screen-service-stats"
	TaskAlertEmail           TaskName = "alert-email"
	TaskAlertDingTalk        TaskName = "alert-dingtalk"
	TaskScreenUserOperateLog TaskName = "screen-user-operate-log"
	TaskScreenHostNetflow    TaskName = "screen-host-netflow"
	TaskNetflowUpdateElement TaskName = "netflow-update-element"
)

var TaskNames = []TaskName{
	TaskMetering,
	TaskBucketMonthly,
	TaskReportMonthly,
	TaskLogTimeCount,
	TaskReqCount,
	TaskScan,
	TaskScreenHostCpuUsage,
	TaskScreenServiceStats,
	TaskAlertEmail,
	TaskAlertDingTalk,
	TaskScreenUserOperateLog,
	TaskScreenHostNetflow,
	TaskNetflowUpdateElement,
}

func (t TaskName) Valid() bool {
	for _, name := range TaskNames {
		if t == name {
			return true
		}
	}
	return false
}

// TimedTaskLock is the persistent mutual-exclusion marker for one task name,
// shared by every service host. Rows are created lazily and never deleted.
type TimedTaskLock struct {
	ID         int64          `db:"id" json:"id"`
	Task       TaskName       `db:"task" json:"task"`
	Status     TaskLockStatus `db:"status" json:"status"`
	ExpireTime *time.Time     `db:"expire_time" json:"expire_time"`
	StartTime  *time.Time     `db:"start_time" json:"start_time"`
	EndTime    *time.Time     `db:"end_time" json:"end_time"`
	Host       string         `db:"host" json:"host"`
	RunDesc    string         `db:"run_desc" json:"run_desc"`
	NotifyTime *time.Time     `db:"notify_time" json:"notify_time"`
	CreatedAt  time.Time      `db:"created_at" json:"-"`
	UpdatedAt  time.Time      `db:"updated_at" json:"-"`
}

type User struct {
	ID         string          `db:"id" json:"id"`
	Username   string          `db:"username" json:"username"`
	Balance    decimal.Decimal `db:"balance" json:"balance"`
	IsFedAdmin bool            `db:"is_fed_admin" json:"is_fed_admin"`
	CreatedAt  time.Time       `db:"created_at" json:"-"`
}

// Server is the resource view the metering drivers need; provisioning and
// lifecycle management live in the adapter services.
type Server struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	ServiceID      string     `db:"service_id" json:"service_id"`
	Vcpus          int        `db:"vcpus" json:"vcpus"`
	RamGiB         int        `db:"ram_gib" json:"ram_gib"`
	DiskGiB        int        `db:"disk_gib" json:"disk_gib"`
	PublicIP       bool       `db:"public_ip" json:"public_ip"`
	PayType        PayType    `db:"pay_type" json:"pay_type"`
	ExpirationTime *time.Time `db:"expiration_time" json:"expiration_time"`
	CreatedAt      time.Time  `db:"created_at" json:"-"`
}

// MeteringServer is one server's accrual for one metering day.
type MeteringServer struct {
	ID               string          `db:"id" json:"id"`
	ServerID         string          `db:"server_id" json:"server_id"`
	UserID           string          `db:"user_id" json:"user_id"`
	ServiceID        string          `db:"service_id" json:"service_id"`
	Date             string          `db:"date" json:"date"`
	PayType          PayType         `db:"pay_type" json:"pay_type"`
	CpuHours         decimal.Decimal `db:"cpu_hours" json:"cpu_hours"`
	RamGiBHours      decimal.Decimal `db:"ram_gib_hours" json:"ram_gib_hours"`
	DiskGiBHours     decimal.Decimal `db:"disk_gib_hours" json:"disk_gib_hours"`
	PublicIPHours    decimal.Decimal `db:"public_ip_hours" json:"public_ip_hours"`
	OriginalAmount   decimal.Decimal `db:"original_amount" json:"original_amount"`
	TradeAmount      decimal.Decimal `db:"trade_amount" json:"trade_amount"`
	DailyStatementID string          `db:"daily_statement_id" json:"daily_statement_id"`
	CreatedAt        time.Time       `db:"created_at" json:"-"`
}

// DailyStatement aggregates one owner's postpaid meterings for one service
// unit and one day.
type DailyStatement struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	ServiceID      string          `db:"service_id" json:"service_id"`
	Date           string          `db:"date" json:"date"`
	OriginalAmount decimal.Decimal `db:"original_amount" json:"original_amount"`
	PayableAmount  decimal.Decimal `db:"payable_amount" json:"payable_amount"`
	PaymentStatus  PaymentStatus   `db:"payment_status" json:"payment_status"`
	CreatedAt      time.Time       `db:"created_at" json:"-"`
}

// ArrearsRecord marks an owner whose unpaid statements exceed their balance.
type ArrearsRecord struct {
	ID            string          `db:"id" json:"id"`
	UserID        string          `db:"user_id" json:"user_id"`
	ServiceID     string          `db:"service_id" json:"service_id"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	ArrearsAmount decimal.Decimal `db:"arrears_amount" json:"arrears_amount"`
	Date          string          `db:"date" json:"date"`
	CreatedAt     time.Time       `db:"created_at" json:"-"`
}
