package paycode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transfa/wallet-service/internal/domain"
)

const (
	payee = "0x52908400098527886E0F7030069857D2E4169EE7"
	other = "0x8617E340B3D01FA5F11F306F4090FD50E238070D"
)

func TestEncode_PaymentRequest(t *testing.T) {
	text, err := Encode(payee, "12.5")
	require.NoError(t, err)
	assert.Equal(t, `{"wallet_address":"`+payee+`","coin_amount":"12.5"}`, text)
}

func TestEncode_OmitsUnusableAmount(t *testing.T) {
	for _, amount := range []domain.Amount{"", "0", "0.00", "abc"} {
		text, err := Encode(payee, amount)
		require.NoError(t, err, "amount %q", amount)
		assert.Equal(t, `{"wallet_address":"`+payee+`"}`, text, "amount %q", amount)
	}
}

func TestEncode_RejectsInvalidAddress(t *testing.T) {
	_, err := Encode("0x1234", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = Encode(domain.PlaceholderAddress, "1")
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)
}

func TestDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		amount domain.Amount
		kind   domain.PayloadKind
	}{
		{name: "payment request", amount: "0.75", kind: domain.PayloadPaymentRequest},
		{name: "identity code", amount: "", kind: domain.PayloadAddressOnly},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, err := Encode(payee, tc.amount)
			require.NoError(t, err)

			payload, err := Decode(text)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, payload.Kind)
			assert.Equal(t, domain.WalletAddress(payee), payload.Address)
			assert.Equal(t, tc.amount, payload.Amount)
		})
	}
}

func TestDecode_BareAddress(t *testing.T) {
	payload, err := Decode("  " + other + "\n")
	require.NoError(t, err)
	assert.Equal(t, domain.PayloadAddressOnly, payload.Kind)
	assert.Equal(t, domain.WalletAddress(other), payload.Address)
	assert.False(t, payload.IsPaymentRequest())
}

func TestDecode_NumericAmount(t *testing.T) {
	payload, err := Decode(`{"wallet_address":"` + payee + `","coin_amount":3.25}`)
	require.NoError(t, err)
	assert.True(t, payload.IsPaymentRequest())
	assert.Equal(t, domain.Amount("3.25"), payload.Amount)
}

func TestDecode_AbsentAmountVariants(t *testing.T) {
	for _, text := range []string{
		`{"wallet_address":"` + payee + `"}`,
		`{"wallet_address":"` + payee + `","coin_amount":null}`,
		`{"wallet_address":"` + payee + `","coin_amount":""}`,
		`{"wallet_address":"` + payee + `","coin_amount":0}`,
		`{"wallet_address":"` + payee + `","coin_amount":0.0}`,
	} {
		payload, err := Decode(text)
		require.NoError(t, err, text)
		assert.Equal(t, domain.PayloadAddressOnly, payload.Kind, text)
	}
}

func TestDecode_InvalidAmount(t *testing.T) {
	for _, amount := range []string{`"0"`, `"-1"`, `"abc"`, `-2.5`, `true`} {
		_, err := Decode(`{"wallet_address":"` + payee + `","coin_amount":` + amount + `}`)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
	}
}

func TestDecode_InvalidAddressInObject(t *testing.T) {
	for _, text := range []string{
		`{"wallet_address":"0x12","coin_amount":"1"}`,
		`{"coin_amount":"1"}`,
		`{"wallet_address":42}`,
	} {
		_, err := Decode(text)
		assert.ErrorIs(t, err, domain.ErrInvalidAddress, text)
	}
}

func TestDecode_InvalidPayload(t *testing.T) {
	for _, text := range []string{
		"",
		"hello",
		"0x1234",
		`["` + payee + `"]`,
		`{"wallet_address":`,
	} {
		_, err := Decode(text)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload, text)
	}
}
