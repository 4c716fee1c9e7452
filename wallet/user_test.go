package wallet_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-wallet-bridge/bridge"
	"github.com/next-trace/scg-wallet-bridge/wallet"
)

func TestCreateUser_CachesAndRejectsDuplicates(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	u, err := h.users.CreateUser(t.Context(), wallet.User{Phone: "111", DocumentNumber: "D1", Email: "a@b.c"})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := h.users.FindUserByID(t.Context(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Phone, got.Phone)
	assert.Zero(t, h.store.userReads.Load(), "created user must be served from cache")

	_, err = h.users.CreateUser(t.Context(), wallet.User{Phone: "111", DocumentNumber: "D2"})
	require.ErrorIs(t, err, wallet.ErrConflict)
	assert.True(t, wallet.IsErrorCode(err, wallet.ErrCodeDuplicateUser))
}

func TestFindUserByID_SingleStoreRead(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	seeded := h.seedUser(t, "111", "card-1")

	for i := 0; i < 2; i++ {
		got, err := h.users.FindUserByID(t.Context(), seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, "card-1", got.CardID)
	}

	assert.Equal(t, int32(1), h.store.userReads.Load())

	_, err := h.users.FindUserByID(t.Context(), "missing")
	require.ErrorIs(t, err, wallet.ErrNotFound)
	assert.True(t, wallet.IsErrorCode(err, wallet.ErrCodeUserNotFound))
}

func TestAssociateCard_Valid(t *testing.T) {
	var asked []wallet.CardValidationRequest

	h := newHarness(t, harnessOpts{cards: func(_ context.Context, payload json.RawMessage) (any, error) {
		var req wallet.CardValidationRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}

		asked = append(asked, req)

		return wallet.CardValidationResponse{IsValid: true}, nil
	}})
	seeded := h.seedUser(t, "111", "")

	u, err := h.users.AssociateCard(t.Context(), seeded.ID, "card-9")
	require.NoError(t, err)
	assert.Equal(t, "card-9", u.CardID)

	require.Len(t, asked, 1)
	assert.Equal(t, "card-9", asked[0].DebitCardID)

	stored, err := h.store.Store.FindUserByID(t.Context(), seeded.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CardID)
	assert.Equal(t, "card-9", *stored.CardID)

	reads := h.store.userReads.Load()

	cached, err := h.users.FindUserByID(t.Context(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "card-9", cached.CardID)
	assert.Equal(t, reads, h.store.userReads.Load(), "refreshed user must come from cache")
}

func TestAssociateCard_Rejected(t *testing.T) {
	h := newHarness(t, harnessOpts{cards: cardVerdict(false, "card blocked")})
	seeded := h.seedUser(t, "111", "")

	_, err := h.users.AssociateCard(t.Context(), seeded.ID, "card-9")

	require.ErrorIs(t, err, wallet.ErrValidation)
	assert.True(t, wallet.IsErrorCode(err, wallet.ErrCodeInvalidCard))
	assert.Contains(t, err.Error(), "card blocked")
	assert.Zero(t, h.store.userUpdates.Load())
	assert.Zero(t, h.store.userReads.Load(), "user is only loaded after the card is accepted")
}

func TestAssociateCard_Timeout(t *testing.T) {
	h := newHarness(t, harnessOpts{timeout: 20 * time.Millisecond})
	seeded := h.seedUser(t, "111", "")

	_, err := h.users.AssociateCard(t.Context(), seeded.ID, "card-9")

	require.ErrorIs(t, err, wallet.ErrTimeout)
	assert.True(t, wallet.IsErrorCode(err, wallet.ErrCodeCardValidationTimeout))
	assert.True(t, wallet.IsRetryable(err))
	assert.Zero(t, h.store.userUpdates.Load())
}

func TestAssociateCard_UnknownUser(t *testing.T) {
	h := newHarness(t, harnessOpts{cards: cardVerdict(true, "")})

	_, err := h.users.AssociateCard(t.Context(), "missing", "card-9")

	require.ErrorIs(t, err, wallet.ErrNotFound)
	assert.True(t, wallet.IsErrorCode(err, wallet.ErrCodeUserNotFound))
}

func TestValidationHandler(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	seeded := h.seedUser(t, "111", "")
	handle := h.users.ValidationHandler()

	cases := map[string]struct {
		payload string
		want    bool
	}{
		"existing user": {payload: `"` + seeded.ID + `"`, want: true},
		"unknown user":  {payload: `"nobody"`, want: false},
		"not a string":  {payload: `{"id":1}`, want: false},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := handle(t.Context(), json.RawMessage(tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidationHandler_ServedOverBridge(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	seeded := h.seedUser(t, "111", "")

	resp := bridge.NewResponder(h.broker, "wallet-validation-responses", h.users.ValidationHandler(), nil)
	require.NoError(t, resp.Listen(t.Context(), h.broker, "wallet-validation-requests"))

	reg := bridge.NewRegistry()
	require.NoError(t, bridge.NewIntake(reg, nil, nil).Listen(t.Context(), h.broker, "wallet-validation-responses"))

	client := bridge.NewClient(h.broker, reg, nil)

	ok, err := bridge.Call[bool](t.Context(), client, bridge.Request{
		RequestTopic:  "wallet-validation-requests",
		ResponseTopic: "wallet-validation-responses",
		Payload:       seeded.ID,
		Timeout:       time.Second,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	exists, err := h.users.UserExists(t.Context(), "nobody")
	require.NoError(t, err)
	assert.False(t, exists)
}
