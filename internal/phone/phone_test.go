package phone

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LyndaLilly/alebaz-chat-api/internal/errs"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, cc, raw, want string
		wantErr            bool
	}{
		{name: "trunk zero stripped", cc: "+234", raw: "08012345678", want: "+2348012345678"},
		{name: "short local", cc: "+234", raw: "0812345678", want: "+234812345678"},
		{name: "punctuation", cc: "+1", raw: "(415) 555-2671", want: "+14155552671"},
		{name: "no trunk zero", cc: "+44", raw: "7911123456", want: "+447911123456"},
		{name: "only one zero stripped", cc: "+39", raw: "0061234567", want: "+39061234567"},
		{name: "bad country code", cc: "234", raw: "8012345678", wantErr: true},
		{name: "country code zero", cc: "+0", raw: "8012345678", wantErr: true},
		{name: "too few digits", cc: "+234", raw: "123", wantErr: true},
		{name: "too many digits", cc: "+234", raw: "123456789012345", wantErr: true},
		{name: "result too short", cc: "+1", raw: "01234", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.cc, tc.raw)
			if tc.wantErr {
				require.ErrorIs(t, err, errs.ErrInvalidPhoneFormat)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
			require.True(t, IsE164(got))
		})
	}
}

func TestNormalizeQuery(t *testing.T) {
	t.Parallel()

	require.Equal(t, "+2348012345678", NormalizeQuery("08012345678"))
	require.Equal(t, "+2348012345678", NormalizeQuery("+2348012345678"))
	require.Equal(t, "+2348012345678", NormalizeQuery("2348012345678"))
	require.Equal(t, "+2348012345678", NormalizeQuery("+234 801-234-5678"))
	require.Equal(t, "+14155552671", NormalizeQuery("+1 (415) 555 2671"))
	// short local numbers are not assumed Nigerian
	require.Equal(t, "+012345", NormalizeQuery("012345"))
	// only one trunk zero is dropped
	require.Equal(t, "+2340801234567", NormalizeQuery("00801234567"))
}

func TestLooksLikePhone(t *testing.T) {
	t.Parallel()

	require.True(t, LooksLikePhone("+2348012345678"))
	require.True(t, LooksLikePhone("08012345678"))
	require.True(t, LooksLikePhone("(080) 123-4567"))
	require.False(t, LooksLikePhone("alice"))
	require.False(t, LooksLikePhone("alice@x.com"))
	require.False(t, LooksLikePhone("080abc"))
}

func TestDigits(t *testing.T) {
	t.Parallel()
	require.Equal(t, "2348012", Digits("+234 (80)-12"))
	require.Equal(t, "", Digits("abc"))
}
