package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/ledger/domain"
)

type fakeRow struct {
	metadata []byte
}

func (r fakeRow) Scan(dest ...interface{}) error {
	payload, err := domain.EncodeEvent(domain.CustomerDepositedMoney{Amount: 5, Balance: 5})
	if err != nil {
		return err
	}
	*dest[0].(*string) = "evt-2"
	*dest[1].(*string) = "acct-1"
	*dest[2].(*int64) = 2
	*dest[3].(*string) = string(domain.EventCustomerDepositedMoney)
	*dest[4].(*[]byte) = payload
	*dest[5].(*[]byte) = r.metadata
	*dest[6].(*time.Time) = time.Unix(0, 0)
	return nil
}

func TestScanEnvelopeMetadata(t *testing.T) {
	env, err := scanEnvelope(fakeRow{metadata: []byte(`{"request_id":"req-1"}`)})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"request_id": "req-1"}, env.Metadata)
	assert.Equal(t, domain.CustomerDepositedMoney{Amount: 5, Balance: 5}, env.Event)

	_, err = scanEnvelope(fakeRow{metadata: []byte(`not json`)})
	require.Error(t, err)
	assert.Equal(t, domain.ErrCodeInternal, domain.Code(err))
}
