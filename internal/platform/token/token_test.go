package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "collecta/pkg/domain"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	m := NewManager("test-signing-key")
	accountID := id.NewAccountID()

	signed, err := m.Issue(accountID, time.Now())
	require.NoError(t, err)

	got, err := m.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, accountID, got)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	m := NewManager("test-signing-key")

	signed, err := m.Issue(id.NewAccountID(), time.Now().Add(-48*time.Hour))
	require.NoError(t, err)

	_, err = m.Validate(signed)
	assert.Error(t, err)
}

func TestValidateRejectsForeignKey(t *testing.T) {
	signed, err := NewManager("key-one").Issue(id.NewAccountID(), time.Now())
	require.NoError(t, err)

	_, err = NewManager("key-two").Validate(signed)
	assert.Error(t, err)
}
