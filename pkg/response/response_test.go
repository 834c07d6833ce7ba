package response

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvelopes(t *testing.T) {
	ok := OKT(map[string]int{"n": 1})
	require.Equal(t, APIResponseCodeOK, ok.Code)
	require.Equal(t, "ok", ok.Message)

	e := ErrorT[any](APIResponseCodeQuotaExceeded, nil)
	require.Equal(t, "quota exceeded", e.Message)

	m := ErrorMsg(APIResponseCodeTimeout, "")
	require.Equal(t, "upstream timeout", m.Message)
	m = ErrorMsg(APIResponseCodeTimeout, "try a narrower question")
	require.Equal(t, "try a narrower question", m.Message)
}
