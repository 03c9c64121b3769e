package testutil_test

import (
	"github.com/APTrust/swordv3/constants"
	"github.com/APTrust/swordv3/util/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestMakeNsqMessage(t *testing.T) {
	message := testutil.MakeNsqMessage(`{"publicationId":1}`)
	require.NotNil(t, message)
	assert.EqualValues(t, 1, message.Attempts)
	assert.Equal(t, `{"publicationId":1}`, string(message.Body))
	assert.NotEqual(t, int64(0), message.Timestamp)
}

func TestLoadStatusFixture(t *testing.T) {
	status, err := testutil.LoadStatusFixture("status_accepted.json")
	require.Nil(t, err)
	assert.Equal(t, constants.StateAccepted, status.SwordStateId())

	_, err = testutil.LoadStatusFixture("does_not_exist.json")
	assert.NotNil(t, err)
}
