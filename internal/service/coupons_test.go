package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/corpdiscounts/internal/model"
	"github.com/mmeshcher/corpdiscounts/internal/validation"
)

type couponFixture struct {
	repo   *stubRepo
	userID uuid.UUID
	offer  *model.Offer
	code   string
}

func newCouponFixture(t *testing.T) *couponFixture {
	t.Helper()

	repo := newStubRepo()
	userID := uuid.New()
	offer := &model.Offer{
		ID:            uuid.New(),
		CompanyID:     uuid.New(),
		Title:         "Coffee",
		DiscountKind:  model.DiscountKindPercent,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     date(2025, time.January, 1),
		ValidUntil:    date(2025, time.January, 31),
	}
	repo.offers[offer.ID] = offer

	code, err := validation.GenerateCouponCode()
	require.NoError(t, err)
	repo.coupons[code] = &model.Coupon{
		ID:      uuid.New(),
		Code:    code,
		UserID:  userID,
		OfferID: offer.ID,
		Status:  model.CouponStatusActive,
	}

	return &couponFixture{repo: repo, userID: userID, offer: offer, code: code}
}

func TestRedeemCoupon_Success(t *testing.T) {
	f := newCouponFixture(t)
	now := date(2025, time.January, 15)
	svc := newTestService(f.repo, newStubIdentity(), now)

	c, err := svc.RedeemCoupon(context.Background(), f.code, f.userID)
	require.NoError(t, err)

	assert.Equal(t, model.CouponStatusUsed, c.Status)
	require.NotNil(t, c.RedeemedAt)
	assert.Equal(t, now, *c.RedeemedAt)
	require.NotNil(t, c.Offer)
	assert.Equal(t, f.offer.ID, c.Offer.ID)
	assert.Equal(t, model.CouponStatusUsed, f.repo.coupons[f.code].Status)
}

func TestRedeemCoupon_OnLastValidInstant(t *testing.T) {
	f := newCouponFixture(t)
	svc := newTestService(f.repo, newStubIdentity(), f.offer.ValidUntil)

	c, err := svc.RedeemCoupon(context.Background(), f.code, f.userID)
	require.NoError(t, err)
	assert.Equal(t, model.CouponStatusUsed, c.Status)
}

func TestRedeemCoupon_SecondCallFails(t *testing.T) {
	f := newCouponFixture(t)
	svc := newTestService(f.repo, newStubIdentity(), date(2025, time.January, 15))

	_, err := svc.RedeemCoupon(context.Background(), f.code, f.userID)
	require.NoError(t, err)

	_, err = svc.RedeemCoupon(context.Background(), f.code, f.userID)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "used")
}

func TestRedeemCoupon_ExpiredOffer(t *testing.T) {
	f := newCouponFixture(t)
	svc := newTestService(f.repo, newStubIdentity(), date(2025, time.February, 1))

	_, err := svc.RedeemCoupon(context.Background(), f.code, f.userID)
	require.ErrorIs(t, err, ErrExpired)

	stored := f.repo.coupons[f.code]
	assert.Equal(t, model.CouponStatusExpired, stored.Status)
	assert.Nil(t, stored.RedeemedAt)

	_, err = svc.RedeemCoupon(context.Background(), f.code, f.userID)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "expired")
}

func TestRedeemCoupon_WrongOwner(t *testing.T) {
	f := newCouponFixture(t)
	svc := newTestService(f.repo, newStubIdentity(), date(2025, time.January, 15))

	_, err := svc.RedeemCoupon(context.Background(), f.code, uuid.New())
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, model.CouponStatusActive, f.repo.coupons[f.code].Status)
}

func TestRedeemCoupon_WrongOwnerOfExpiredCoupon(t *testing.T) {
	f := newCouponFixture(t)
	svc := newTestService(f.repo, newStubIdentity(), date(2025, time.February, 1))

	_, err := svc.RedeemCoupon(context.Background(), f.code, uuid.New())
	require.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, model.CouponStatusActive, f.repo.coupons[f.code].Status)
}

func TestRedeemCoupon_NotFound(t *testing.T) {
	f := newCouponFixture(t)
	svc := newTestService(f.repo, newStubIdentity(), date(2025, time.January, 15))

	_, err := svc.RedeemCoupon(context.Background(), "000000000000", f.userID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemCoupon_LostRace(t *testing.T) {
	f := newCouponFixture(t)
	svc := newTestService(f.repo, newStubIdentity(), date(2025, time.January, 15))

	redeemedElsewhere := date(2025, time.January, 14)
	f.repo.beforeCAS = func(c *model.Coupon) {
		c.Status = model.CouponStatusUsed
		c.RedeemedAt = &redeemedElsewhere
	}

	_, err := svc.RedeemCoupon(context.Background(), f.code, f.userID)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "used")
	assert.Equal(t, &redeemedElsewhere, f.repo.coupons[f.code].RedeemedAt)
}

func TestClaimCoupon(t *testing.T) {
	repo := newStubRepo()
	companyID := uuid.New()
	userID := uuid.New()
	repo.accounts[userID] = &model.Account{ID: userID, Kind: model.AccountKindEmployee, CompanyID: &companyID}

	offer := &model.Offer{
		ID:                 uuid.New(),
		CompanyID:          uuid.New(),
		ValidFrom:          date(2025, time.January, 1),
		ValidUntil:         date(2025, time.January, 31),
		EligibleCompanyIDs: []uuid.UUID{companyID},
	}
	repo.offers[offer.ID] = offer
	repo.codeCollisions = 2

	svc := newTestService(repo, newStubIdentity(), date(2025, time.January, 10))

	first, claimed, err := svc.ClaimCoupon(context.Background(), userID, offer.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, model.CouponStatusActive, first.Status)
	assert.True(t, validation.IsValidCouponCode(first.Code))
	assert.Equal(t, offer.ID, first.Offer.ID)

	second, claimed, err := svc.ClaimCoupon(context.Background(), userID, offer.ID)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, first.ID, second.ID)
}

func TestClaimCoupon_Rejections(t *testing.T) {
	repo := newStubRepo()
	companyID := uuid.New()
	userID := uuid.New()
	repo.accounts[userID] = &model.Account{ID: userID, Kind: model.AccountKindEmployee, CompanyID: &companyID}

	restricted := &model.Offer{
		ID:                 uuid.New(),
		ValidFrom:          date(2025, time.January, 1),
		ValidUntil:         date(2025, time.January, 31),
		EligibleCompanyIDs: []uuid.UUID{uuid.New()},
	}
	lapsed := &model.Offer{
		ID:         uuid.New(),
		ValidFrom:  date(2024, time.January, 1),
		ValidUntil: date(2024, time.January, 31),
	}
	upcoming := &model.Offer{
		ID:         uuid.New(),
		ValidFrom:  date(2025, time.February, 1),
		ValidUntil: date(2025, time.February, 28),
	}
	repo.offers[restricted.ID] = restricted
	repo.offers[lapsed.ID] = lapsed
	repo.offers[upcoming.ID] = upcoming

	svc := newTestService(repo, newStubIdentity(), date(2025, time.January, 10))

	tests := []struct {
		name    string
		userID  uuid.UUID
		offerID uuid.UUID
		want    error
	}{
		{name: "not eligible", userID: userID, offerID: restricted.ID, want: ErrForbidden},
		{name: "already ended", userID: userID, offerID: lapsed.ID, want: ErrExpired},
		{name: "not started yet", userID: userID, offerID: upcoming.ID, want: ErrInvalidState},
		{name: "unknown offer", userID: userID, offerID: uuid.New(), want: ErrNotFound},
		{name: "unknown account", userID: uuid.New(), offerID: lapsed.ID, want: ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.ClaimCoupon(context.Background(), tt.userID, tt.offerID)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, repo.coupons)
}

func TestClaimCoupon_GivesUpOnPersistentCollisions(t *testing.T) {
	repo := newStubRepo()
	userID := uuid.New()
	repo.accounts[userID] = &model.Account{ID: userID, Kind: model.AccountKindEmployee}
	offer := &model.Offer{ID: uuid.New(), ValidFrom: date(2025, time.January, 1), ValidUntil: date(2025, time.January, 31)}
	repo.offers[offer.ID] = offer
	repo.codeCollisions = maxCodeAttempts

	svc := newTestService(repo, newStubIdentity(), date(2025, time.January, 10))

	_, _, err := svc.ClaimCoupon(context.Background(), userID, offer.ID)
	assert.Error(t, err)
}

func TestListCoupons_OnlyOwn(t *testing.T) {
	f := newCouponFixture(t)
	f.repo.coupons["999999999999"] = &model.Coupon{ID: uuid.New(), Code: "999999999999", UserID: uuid.New()}
	svc := newTestService(f.repo, newStubIdentity(), time.Now())

	own, err := svc.ListCoupons(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	all, err := svc.ListAllCoupons(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunExpirySweep_Disabled(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(repo, newStubIdentity(), time.Now())

	done := make(chan error, 1)
	go func() {
		done <- svc.RunExpirySweep(context.Background(), 0)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("RunExpirySweep did not return when disabled")
	}
	assert.Zero(t, repo.expireCalls.Load())
}

func TestRunExpirySweep_RunsUntilCancelled(t *testing.T) {
	repo := newStubRepo()
	repo.expired = 3
	svc := newTestService(repo, newStubIdentity(), time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := svc.RunExpirySweep(ctx, 10*time.Millisecond)
	assert.NoError(t, err)
	assert.Positive(t, repo.expireCalls.Load())
}

func TestRunExpirySweep_SurvivesErrors(t *testing.T) {
	repo := newStubRepo()
	repo.expireErr = errors.New("connection reset")
	svc := newTestService(repo, newStubIdentity(), time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	assert.NoError(t, svc.RunExpirySweep(ctx, 10*time.Millisecond))
	assert.Greater(t, repo.expireCalls.Load(), int32(1))
}
