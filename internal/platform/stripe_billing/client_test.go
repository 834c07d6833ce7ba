package stripe_billing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/fplcoach/pkg/apperr"
)

const testSecret = "whsec_test"

func TestConstructEvent(t *testing.T) {
	c := NewWithBackends("sk_test", testSecret, nil)
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.updated","api_version":"2020-08-27","created":1700000000,"data":{"object":{"id":"sub_1","object":"subscription"}}}`)

	tests := []struct {
		name    string
		header  string
		wantErr bool
	}{
		{name: "valid", header: SignatureHeader(payload, testSecret, time.Now())},
		{name: "wrong secret", header: SignatureHeader(payload, "other", time.Now()), wantErr: true},
		{name: "stale timestamp", header: SignatureHeader(payload, testSecret, time.Now().Add(-time.Hour)), wantErr: true},
		{name: "missing header", header: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := c.ConstructEvent(payload, tt.header)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, apperr.ErrSignatureVerification))
				return
			}
			require.NoError(t, err)
			require.Equal(t, "evt_1", event.ID)
			require.Equal(t, "customer.subscription.updated", string(event.Type))
		})
	}
}

func TestConstructEvent_NoSecret(t *testing.T) {
	c := NewWithBackends("sk_test", "", nil)
	_, err := c.ConstructEvent([]byte(`{}`), "t=1,v1=00")
	require.True(t, errors.Is(err, apperr.ErrSignatureVerification))
}
