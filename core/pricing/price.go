package pricing

import (
	"context"
	"time"

	"github.com/cloudverse/metering-center/core/dao"
	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
	logging "github.com/ipfs/go-log/v2"
	"github.com/shopspring/decimal"
)

var log = logging.Logger("pricing")

var hoursPerDay = decimal.NewFromInt(24)

// ResourceSpec is one pricing request.
type ResourceSpec struct {
	Kind          model.ResourceType
	Vcpus         int
	RamGiB        int
	SystemDiskGiB int
	DataDiskGiB   int
	PublicIP      bool
	// whole months, prepaid only
	PeriodMonths int
}

// PriceQuote is the result of a pricing request, quantized to (12,4).
// For postpaid the trade amount equals the original; for prepaid it is the
// original with the prepaid discount applied.
type PriceQuote struct {
	OriginalAmount decimal.Decimal `json:"original"`
	TradeAmount    decimal.Decimal `json:"trade"`
}

// PriceManager quotes resource prices against the effective price table.
// It is a pure calculator: the only I/O is loading the price row, which is
// memoized for the manager's lifetime.
type PriceManager struct {
	price     *model.Price
	loadPrice func(ctx context.Context) (*model.Price, error)
	nowFn     func() time.Time
}

func NewPriceManager() *PriceManager {
	return &PriceManager{
		loadPrice: dao.GetLatestPrice,
		nowFn:     time.Now,
	}
}

// NewStaticPriceManager quotes against a fixed price row, bypassing the
// store. The reference instant for period day counts is injectable so
// quotes are reproducible.
func NewStaticPriceManager(price *model.Price, nowFn func() time.Time) *PriceManager {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &PriceManager{price: price, nowFn: nowFn}
}

// EnforcePrice returns the effective price row, loading it on first use.
func (m *PriceManager) EnforcePrice(ctx context.Context) (*model.Price, error) {
	if m.price != nil {
		return m.price, nil
	}

	price, err := m.loadPrice(ctx)
	if err == dao.ErrNoRow {
		return nil, errors.New(errors.NoPrice)
	}
	if err != nil {
		return nil, err
	}

	m.price = price
	return price, nil
}

// Refresh drops the memoized price row so the next quote reloads it.
func (m *PriceManager) Refresh() {
	if m.loadPrice != nil {
		m.price = nil
	}
}

// QuotePrice dispatches a pricing request by resource kind.
func (m *PriceManager) QuotePrice(ctx context.Context, spec ResourceSpec, payType model.PayType) (PriceQuote, error) {
	if payType != model.PayTypePrepaid && payType != model.PayTypePostpaid {
		return PriceQuote{}, errors.Newf(errors.InvalidPayType, "invalid pay type %q", payType)
	}
	prepaid := payType == model.PayTypePrepaid

	switch spec.Kind {
	case model.ResourceTypeVM:
		original, trade, err := m.DescribeServerPrice(
			ctx, spec.RamGiB, spec.Vcpus, spec.SystemDiskGiB, spec.PublicIP, prepaid, spec.PeriodMonths)
		return PriceQuote{OriginalAmount: original, TradeAmount: trade}, err
	case model.ResourceTypeDisk:
		original, trade, err := m.DescribeDiskPrice(ctx, spec.DataDiskGiB, prepaid, spec.PeriodMonths)
		return PriceQuote{OriginalAmount: original, TradeAmount: trade}, err
	case model.ResourceTypeBucket:
		original, trade, err := m.DescribeBucketPrice(ctx)
		return PriceQuote{OriginalAmount: original, TradeAmount: trade}, err
	default:
		return PriceQuote{}, errors.Newf(errors.InvalidResourceType, "invalid resource type %q", spec.Kind)
	}
}

// DescribeServerPrice quotes a server. The hourly cost is the sum of the
// per-unit prices times the sizes; without a period one day is quoted
// (hourly cost x 24), with a period the exact day count of the period.
func (m *PriceManager) DescribeServerPrice(
	ctx context.Context, ramGiB, cpu, diskGiB int, publicIP, prepaid bool, periodMonths int,
) (original, trade decimal.Decimal, err error) {
	if ramGiB < 0 || cpu < 0 || diskGiB < 0 {
		return decimal.Zero, decimal.Zero, errors.Newf(errors.InvalidParams, "resource sizes must not be negative")
	}

	price, err := m.EnforcePrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	hourly := price.VMCpu.Mul(decimal.NewFromInt(int64(cpu))).
		Add(price.VMRam.Mul(decimal.NewFromInt(int64(ramGiB)))).
		Add(price.VMDisk.Mul(decimal.NewFromInt(int64(diskGiB))))
	if publicIP {
		hourly = hourly.Add(price.VMPubIP)
	}

	return m.timeScale(hourly, price, prepaid, periodMonths)
}

// DescribeDiskPrice quotes a cloud disk.
func (m *PriceManager) DescribeDiskPrice(
	ctx context.Context, sizeGiB int, prepaid bool, periodMonths int,
) (original, trade decimal.Decimal, err error) {
	if sizeGiB < 0 {
		return decimal.Zero, decimal.Zero, errors.Newf(errors.InvalidParams, "disk size must not be negative")
	}

	price, err := m.EnforcePrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	hourly := price.DiskSize.Mul(decimal.NewFromInt(int64(sizeGiB)))
	return m.timeScale(hourly, price, prepaid, periodMonths)
}

// DescribeBucketPrice quotes object storage as a per GiB daily baseline;
// there is no discount on buckets.
func (m *PriceManager) DescribeBucketPrice(ctx context.Context) (original, trade decimal.Decimal, err error) {
	price, err := m.EnforcePrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	day := Quantize124(price.ObjSize.Mul(hoursPerDay))
	return day, day, nil
}

// DescribeServerMeteringPrice computes the postpaid hourly-accrual amount
// from measured resource hours. The caller quantizes when it settles.
func (m *PriceManager) DescribeServerMeteringPrice(
	ctx context.Context, ramGiBHours, cpuHours, diskGiBHours, publicIPHours decimal.Decimal,
) (decimal.Decimal, error) {
	price, err := m.EnforcePrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	amount := price.VMRam.Mul(ramGiBHours).
		Add(price.VMCpu.Mul(cpuHours)).
		Add(price.VMDisk.Mul(diskGiBHours)).
		Add(price.VMPubIP.Mul(publicIPHours))
	return amount, nil
}

// timeScale turns an hourly cost into the quoted amounts. Both amounts are
// quantized independently; the trade amount is never derived by rounding
// the original first.
func (m *PriceManager) timeScale(
	hourly decimal.Decimal, price *model.Price, prepaid bool, periodMonths int,
) (original, trade decimal.Decimal, err error) {
	daily := hourly.Mul(hoursPerDay)

	if !prepaid {
		// postpaid quotes the daily baseline; a period has no meaning here
		quoted := Quantize124(daily)
		return quoted, quoted, nil
	}

	days, err := PeriodMonthDaysFrom(m.nowFn(), periodMonths)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	total := daily.Mul(decimal.NewFromInt(int64(days)))
	discount := decimal.NewFromInt(int64(price.PrepaidDiscount)).Div(decimal.NewFromInt(100))
	return Quantize124(total), Quantize124(total.Mul(discount)), nil
}
