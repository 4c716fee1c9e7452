package wallet_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-trace/scg-wallet-bridge/wallet"
)

func handleTransfer(t *testing.T, h *harness, payload string) wallet.TransferResult {
	t.Helper()

	out, err := h.transfers.Handler()(t.Context(), json.RawMessage(payload))
	require.NoError(t, err)

	res, ok := out.(wallet.TransferResult)
	require.True(t, ok)

	return res
}

func TestTransferHandler(t *testing.T) {
	h := newHarness(t, harnessOpts{ledger: confirmingLedger(nil)})
	h.seedUser(t, "111", "card-111")
	h.seedUser(t, "222", "card-222")

	ok := handleTransfer(t, h, `{"originPhone":"111","destinationPhone":"222","amount":"50.00","type":"SEND"}`)
	require.NotNil(t, ok.Transfer)
	assert.Nil(t, ok.Error)
	assert.NotEmpty(t, ok.Transfer.ID)

	same := handleTransfer(t, h, `{"originPhone":"111","destinationPhone":"111","amount":"1","type":"SEND"}`)
	require.NotNil(t, same.Error)
	assert.Equal(t, wallet.ErrCodeInvalidTransfer, same.Error.Code)
	assert.False(t, same.Error.Retryable)

	bad := handleTransfer(t, h, `[]`)
	require.NotNil(t, bad.Error)
	assert.Equal(t, wallet.ErrCodeInvalidTransfer, bad.Error.Code)
}

func TestTransferHandler_ReportsRetryableTimeout(t *testing.T) {
	h := newHarness(t, harnessOpts{timeout: 10 * time.Millisecond})
	h.seedUser(t, "111", "card-111")
	h.seedUser(t, "222", "card-222")

	res := handleTransfer(t, h, `{"originPhone":"111","destinationPhone":"222","amount":"5","type":"SEND"}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, wallet.ErrCodeSettlementTimeout, res.Error.Code)
	assert.True(t, res.Error.Retryable)
}

func TestTransferHandler_InternalError(t *testing.T) {
	h := newHarness(t, harnessOpts{ledger: confirmingLedger(nil)})
	h.seedUser(t, "111", "card-111")
	h.seedUser(t, "222", "card-222")
	h.store.saveErr = errStoreDown

	res := handleTransfer(t, h, `{"originPhone":"111","destinationPhone":"222","amount":"5","type":"SEND"}`)
	require.NotNil(t, res.Error)
	assert.Equal(t, wallet.ErrCodeInternal, res.Error.Code)
	assert.Equal(t, "internal error", res.Error.Message)
	assert.NotContains(t, res.Error.Message, errStoreDown.Error(), "store details must not reach the caller")
	assert.False(t, res.Error.Retryable)
	assert.Contains(t, h.logs.String(), "transfer request failed")
	assert.Contains(t, h.logs.String(), errStoreDown.Error())
}
