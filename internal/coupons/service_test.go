package coupons

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/partsdirect-backend/pkg/db"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/dbtest"
	"github.com/angelmondragon/partsdirect-backend/pkg/db/models"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/partsdirect-backend/pkg/errors"
)

type recordingCache struct {
	entries     map[string]*models.Coupon
	invalidated []string
	getErr      error
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]*models.Coupon{}}
}

func (c *recordingCache) Get(_ context.Context, code string) (*models.Coupon, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.entries[NormalizeCode(code)]
	return v, ok, nil
}

func (c *recordingCache) Set(_ context.Context, coupon *models.Coupon) error {
	cp := *coupon
	c.entries[coupon.Code] = &cp
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, code string) error {
	c.invalidated = append(c.invalidated, NormalizeCode(code))
	delete(c.entries, NormalizeCode(code))
	return nil
}

type rejectionCounter map[string]int

func (r rejectionCounter) IncCouponRejected(reason string) { r[reason]++ }

type fixture struct {
	svc     *service
	client  *db.Client
	cache   *recordingCache
	rejects rejectionCounter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Open(t)
	cache := newRecordingCache()
	rejects := rejectionCounter{}
	svc, err := NewService(NewRepository(client.DB()), cache, rejects, nil)
	require.NoError(t, err)
	return &fixture{svc: svc.(*service), client: client, cache: cache, rejects: rejects}
}

func intPtr(v int) *int              { return &v }
func i64Ptr(v int64) *int64          { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func (f *fixture) create(t *testing.T, in UpsertInput) *models.Coupon {
	t.Helper()
	if in.DiscountType == "" {
		in.DiscountType = enums.DiscountTypePercent
	}
	if in.DiscountValue.IsZero() {
		in.DiscountValue = decimal.NewFromInt(10)
	}
	in.IsActive = true
	coupon, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)
	return coupon
}

func (f *fixture) redeem(t *testing.T, v *Validated) error {
	t.Helper()
	return f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return f.svc.Redeem(context.Background(), tx, v, uuid.New())
	})
}

func reasonOf(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	details, _ := typed.Details().(map[string]any)
	reason, _ := details["reason"].(string)
	return reason
}

func TestPreviewPercentCoupon(t *testing.T) {
	f := newFixture(t)
	f.create(t, UpsertInput{Code: "save10", DiscountValue: decimal.NewFromInt(10)})

	preview, err := f.svc.Preview(context.Background(), PreviewInput{UserID: uuid.New(), Code: "Save10", SubtotalCents: 25000})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", preview.Code)
	assert.Equal(t, int64(2500), preview.DiscountCents)
	assert.Equal(t, int64(22500), preview.FinalPayableCents)
}

func TestPreviewRuleOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	inactive := f.create(t, UpsertInput{Code: "OFF"})
	_, err := f.svc.Deactivate(ctx, inactive.ID)
	require.NoError(t, err)
	f.create(t, UpsertInput{Code: "SOON", ValidFrom: timePtr(now.Add(time.Hour))})
	f.create(t, UpsertInput{Code: "OLD", ValidTo: timePtr(now.Add(-time.Hour))})
	f.create(t, UpsertInput{Code: "MIN", MinOrderCents: i64Ptr(50000), UsageLimitTotal: intPtr(1), UsageLimitPerUser: intPtr(1)})

	cases := map[string]string{
		"NOPE": ReasonInvalid,
		"OFF":  ReasonInactive,
		"SOON": ReasonNotYetActive,
		"OLD":  ReasonExpired,
		"MIN":  ReasonBelowMinimum,
	}
	for code, want := range cases {
		_, err := f.svc.Preview(ctx, PreviewInput{UserID: uuid.New(), Code: code, SubtotalCents: 10000})
		require.Error(t, err, code)
		assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), code)
		assert.Equal(t, want, reasonOf(err), code)
	}
	assert.Equal(t, 1, f.rejects[ReasonExpired])
}

func TestPreviewMinimumWinsOverUsageLimits(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	coupon := f.create(t, UpsertInput{Code: "MIN1", MinOrderCents: i64Ptr(20000), UsageLimitTotal: intPtr(1), UsageLimitPerUser: intPtr(1)})

	v, err := f.svc.Validate(context.Background(), PreviewInput{UserID: user, Code: coupon.Code, SubtotalCents: 30000})
	require.NoError(t, err)
	require.NoError(t, f.redeem(t, v))

	for _, subtotal := range []int64{0, 100, 19999} {
		_, err := f.svc.Preview(context.Background(), PreviewInput{UserID: user, Code: "MIN1", SubtotalCents: subtotal})
		assert.Equal(t, ReasonBelowMinimum, reasonOf(err))
	}
}

func TestDiscountNeverExceedsCapOrSubtotal(t *testing.T) {
	t.Parallel()

	coupons := []models.Coupon{
		{DiscountType: enums.DiscountTypePercent, DiscountValue: decimal.NewFromInt(50), MaxDiscountCents: i64Ptr(1000)},
		{DiscountType: enums.DiscountTypePercent, DiscountValue: decimal.NewFromInt(100)},
		{DiscountType: enums.DiscountTypeFlat, DiscountValue: decimal.NewFromInt(500)},
		{DiscountType: enums.DiscountTypeFlat, DiscountValue: decimal.NewFromInt(500), MaxDiscountCents: i64Ptr(7500)},
		{DiscountType: enums.DiscountTypePercent, DiscountValue: decimal.RequireFromString("12.5")},
	}
	for _, c := range coupons {
		for _, subtotal := range []int64{0, 1, 999, 1000, 5000, 49999, 100000} {
			got := ComputeDiscount(c, subtotal)
			limit := subtotal
			if c.MaxDiscountCents != nil && *c.MaxDiscountCents < limit {
				limit = *c.MaxDiscountCents
			}
			assert.LessOrEqual(t, got, limit)
			assert.GreaterOrEqual(t, got, int64(0))
		}
	}
	assert.Equal(t, int64(1000), ComputeDiscount(coupons[0], 100000))
	assert.Equal(t, int64(50000), ComputeDiscount(coupons[2], 100000))
	assert.Equal(t, int64(1250), ComputeDiscount(coupons[4], 10000))
}

func TestPerUserLimitAfterRedemption(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.create(t, UpsertInput{Code: "ONCE", UsageLimitPerUser: intPtr(1)})
	input := PreviewInput{UserID: user, Code: "ONCE", SubtotalCents: 10000}

	v, err := f.svc.Validate(context.Background(), input)
	require.NoError(t, err)
	require.NoError(t, f.redeem(t, v))

	_, err = f.svc.Validate(context.Background(), input)
	assert.Equal(t, ReasonUserUsageLimit, reasonOf(err))

	_, err = f.svc.Validate(context.Background(), PreviewInput{UserID: uuid.New(), Code: "ONCE", SubtotalCents: 10000})
	assert.NoError(t, err)
}

func TestRedeemEnforcesTotalLimitStrictly(t *testing.T) {
	f := newFixture(t)
	f.create(t, UpsertInput{Code: "LAST", UsageLimitTotal: intPtr(1)})

	first, err := f.svc.Validate(context.Background(), PreviewInput{UserID: uuid.New(), Code: "LAST", SubtotalCents: 10000})
	require.NoError(t, err)
	second, err := f.svc.Validate(context.Background(), PreviewInput{UserID: uuid.New(), Code: "LAST", SubtotalCents: 10000})
	require.NoError(t, err)

	require.NoError(t, f.redeem(t, first))
	err = f.redeem(t, second)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
	assert.Equal(t, ReasonUsageLimit, reasonOf(err))

	var usages int64
	require.NoError(t, f.client.DB().Model(&models.CouponUsage{}).Count(&usages).Error)
	assert.Equal(t, int64(1), usages)

	var stored models.Coupon
	require.NoError(t, f.client.DB().Where("code = ?", "LAST").First(&stored).Error)
	assert.Equal(t, 1, stored.UsedCount)
}

func TestRedeemRollsBackWithFailedOrder(t *testing.T) {
	f := newFixture(t)
	f.create(t, UpsertInput{Code: "ROLL", UsageLimitTotal: intPtr(5)})
	v, err := f.svc.Validate(context.Background(), PreviewInput{UserID: uuid.New(), Code: "ROLL", SubtotalCents: 10000})
	require.NoError(t, err)

	boom := errors.New("order insert failed")
	err = f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := f.svc.Redeem(context.Background(), tx, v, uuid.New()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var stored models.Coupon
	require.NoError(t, f.client.DB().Where("code = ?", "ROLL").First(&stored).Error)
	assert.Zero(t, stored.UsedCount)
}

func TestCacheReadThroughAndInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coupon := f.create(t, UpsertInput{Code: "CACHE", DiscountValue: decimal.NewFromInt(10)})
	assert.Contains(t, f.cache.invalidated, "CACHE")

	_, err := f.svc.Preview(ctx, PreviewInput{UserID: uuid.New(), Code: "cache", SubtotalCents: 10000})
	require.NoError(t, err)
	require.Contains(t, f.cache.entries, "CACHE")

	updated, err := f.svc.Update(ctx, coupon.ID, UpsertInput{
		DiscountType: enums.DiscountTypePercent, DiscountValue: decimal.NewFromInt(20), IsActive: true,
	})
	require.NoError(t, err)
	assert.NotContains(t, f.cache.entries, "CACHE")
	assert.True(t, updated.DiscountValue.Equal(decimal.NewFromInt(20)))

	preview, err := f.svc.Preview(ctx, PreviewInput{UserID: uuid.New(), Code: "CACHE", SubtotalCents: 10000})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), preview.DiscountCents)

	f.cache.getErr = errors.New("redis down")
	preview, err = f.svc.Preview(ctx, PreviewInput{UserID: uuid.New(), Code: "CACHE", SubtotalCents: 10000})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), preview.DiscountCents)
}

func TestUpdateFrozenAfterUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	coupon := f.create(t, UpsertInput{Code: "USED"})
	v, err := f.svc.Validate(ctx, PreviewInput{UserID: uuid.New(), Code: "USED", SubtotalCents: 10000})
	require.NoError(t, err)
	require.NoError(t, f.redeem(t, v))

	_, err = f.svc.Update(ctx, coupon.ID, UpsertInput{
		DiscountType: enums.DiscountTypeFlat, DiscountValue: decimal.NewFromInt(5), IsActive: true,
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	deactivated, err := f.svc.Deactivate(ctx, coupon.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	_, err = f.svc.Preview(ctx, PreviewInput{UserID: uuid.New(), Code: "USED", SubtotalCents: 10000})
	assert.Equal(t, ReasonInactive, reasonOf(err))
}

func TestCreateValidationAndDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, UpsertInput{Code: "DUP"})

	_, err := f.svc.Create(ctx, UpsertInput{Code: "dup", DiscountType: enums.DiscountTypeFlat, DiscountValue: decimal.NewFromInt(5)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	_, err = f.svc.Create(ctx, UpsertInput{Code: "BIG", DiscountType: enums.DiscountTypePercent, DiscountValue: decimal.NewFromInt(150)})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = f.svc.Deactivate(ctx, uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}
