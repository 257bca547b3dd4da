package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/cloudverse/metering-center/core/errors"
	"github.com/cloudverse/metering-center/core/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrice(t *testing.T) *model.Price {
	t.Helper()
	dec := func(s string) decimal.Decimal {
		d, err := decimal.NewFromString(s)
		require.NoError(t, err)
		return d
	}
	return &model.Price{
		ID:              "price-test",
		VMCpu:           dec("0.066"),
		VMRam:           dec("0.012"),
		VMDisk:          dec("0.122"),
		VMPubIP:         dec("0.66"),
		DiskSize:        dec("0.122"),
		ObjSize:         dec("0.005"),
		PrepaidDiscount: 66,
	}
}

func fixedNow(tm time.Time) func() time.Time {
	return func() time.Time { return tm }
}

// 2 vCPU, 4 GiB ram, 100 GiB disk, public ip:
// hourly = 0.066*2 + 0.012*4 + 0.122*100 + 0.66 = 13.04
var testServerSpec = ResourceSpec{
	Kind:          model.ResourceTypeVM,
	Vcpus:         2,
	RamGiB:        4,
	SystemDiskGiB: 100,
	PublicIP:      true,
}

func TestDescribeServerPricePostpaid(t *testing.T) {
	m := NewStaticPriceManager(testPrice(t), nil)

	quote, err := m.QuotePrice(context.Background(), testServerSpec, model.PayTypePostpaid)
	require.NoError(t, err)

	// daily baseline = 13.04 * 24
	assert.Equal(t, "312.9600", quote.OriginalAmount.StringFixed(4))
	assert.Equal(t, "312.9600", quote.TradeAmount.StringFixed(4))
}

func TestDescribeServerPricePrepaid(t *testing.T) {
	m := NewStaticPriceManager(testPrice(t), fixedNow(date(2025, time.March, 15)))

	spec := testServerSpec
	spec.PeriodMonths = 1

	quote, err := m.QuotePrice(context.Background(), spec, model.PayTypePrepaid)
	require.NoError(t, err)

	// 312.96 * 31 days, trade at 66% of original
	assert.Equal(t, "9701.7600", quote.OriginalAmount.StringFixed(4))
	assert.Equal(t, "6403.1616", quote.TradeAmount.StringFixed(4))
}

func TestDescribeServerPricePrepaidCalendarDays(t *testing.T) {
	// a quote taken on Jan 31 covers through Feb 28 only
	m := NewStaticPriceManager(testPrice(t), fixedNow(date(2025, time.January, 31)))

	spec := testServerSpec
	spec.PeriodMonths = 1

	quote, err := m.QuotePrice(context.Background(), spec, model.PayTypePrepaid)
	require.NoError(t, err)

	assert.Equal(t, "8762.8800", quote.OriginalAmount.StringFixed(4))
	assert.Equal(t, "5783.5008", quote.TradeAmount.StringFixed(4))
}

func TestQuotePriceDeterministic(t *testing.T) {
	m := NewStaticPriceManager(testPrice(t), fixedNow(date(2025, time.March, 15)))

	spec := testServerSpec
	spec.PeriodMonths = 3

	first, err := m.QuotePrice(context.Background(), spec, model.PayTypePrepaid)
	require.NoError(t, err)
	second, err := m.QuotePrice(context.Background(), spec, model.PayTypePrepaid)
	require.NoError(t, err)

	assert.True(t, first.OriginalAmount.Equal(second.OriginalAmount))
	assert.True(t, first.TradeAmount.Equal(second.TradeAmount))
}

func TestDescribeDiskPrice(t *testing.T) {
	m := NewStaticPriceManager(testPrice(t), fixedNow(date(2025, time.March, 15)))

	spec := ResourceSpec{Kind: model.ResourceTypeDisk, DataDiskGiB: 100}

	quote, err := m.QuotePrice(context.Background(), spec, model.PayTypePostpaid)
	require.NoError(t, err)

	// 0.122 * 100 * 24
	assert.Equal(t, "292.8000", quote.OriginalAmount.StringFixed(4))
	assert.Equal(t, "292.8000", quote.TradeAmount.StringFixed(4))
}

func TestDescribeBucketPrice(t *testing.T) {
	m := NewStaticPriceManager(testPrice(t), nil)

	quote, err := m.QuotePrice(context.Background(), ResourceSpec{Kind: model.ResourceTypeBucket}, model.PayTypePostpaid)
	require.NoError(t, err)

	assert.Equal(t, "0.1200", quote.OriginalAmount.StringFixed(4))
	assert.True(t, quote.OriginalAmount.Equal(quote.TradeAmount))
}

func TestQuotePriceInvalidInputs(t *testing.T) {
	m := NewStaticPriceManager(testPrice(t), nil)
	ctx := context.Background()

	_, err := m.QuotePrice(ctx, ResourceSpec{Kind: "flavor"}, model.PayTypePostpaid)
	assert.True(t, errors.IsCode(err, errors.InvalidResourceType))

	_, err = m.QuotePrice(ctx, testServerSpec, "daily")
	assert.True(t, errors.IsCode(err, errors.InvalidPayType))

	negative := testServerSpec
	negative.Vcpus = -1
	_, err = m.QuotePrice(ctx, negative, model.PayTypePostpaid)
	assert.True(t, errors.IsCode(err, errors.InvalidParams))

	noPeriod := testServerSpec
	_, err = m.QuotePrice(ctx, noPeriod, model.PayTypePrepaid)
	assert.True(t, errors.IsCode(err, errors.InvalidPeriod))

	longPeriod := testServerSpec
	longPeriod.PeriodMonths = 13
	_, err = m.QuotePrice(ctx, longPeriod, model.PayTypePrepaid)
	assert.True(t, errors.IsCode(err, errors.InvalidPeriod))
}

func TestQuantizeBankersRounding(t *testing.T) {
	cases := map[string]string{
		"1.00005": "1.0000",
		"1.00015": "1.0002",
		"1.00025": "1.0002",
		"2.50005": "2.5000",
		"312.96":  "312.9600",
	}
	for in, want := range cases {
		d, err := decimal.NewFromString(in)
		require.NoError(t, err)
		assert.Equal(t, want, Quantize124(d).StringFixed(4), "quantize %s", in)
	}

	display := map[string]string{
		"1.005": "1.00",
		"1.015": "1.02",
		"2.675": "2.68",
	}
	for in, want := range display {
		d, err := decimal.NewFromString(in)
		require.NoError(t, err)
		assert.Equal(t, want, Quantize102(d).StringFixed(2), "quantize %s", in)
	}
}
