package natives

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"canidae/pkg/value"
)

func TestHashAndVerifyPasswordRoundTrip(t *testing.T) {
	hash, err := hashPassword([]value.Value{value.String("hunter2")})
	assert.NoError(t, err)

	ok, err := verifyPassword([]value.Value{hash, value.String("hunter2")})
	assert.NoError(t, err)
	assert.Equal(t, value.Bool(true), ok)

	bad, err := verifyPassword([]value.Value{hash, value.String("wrong")})
	assert.NoError(t, err)
	assert.Equal(t, value.Bool(false), bad)
}

func TestJwtSignAndVerifyRoundTrip(t *testing.T) {
	token, err := jwtSign([]value.Value{value.String("user-1"), value.String("s3cret")})
	assert.NoError(t, err)

	valid, err := jwtVerify([]value.Value{token, value.String("s3cret")})
	assert.NoError(t, err)
	assert.Equal(t, value.Bool(true), valid)

	invalid, err := jwtVerify([]value.Value{token, value.String("wrong-secret")})
	assert.NoError(t, err)
	assert.Equal(t, value.Bool(false), invalid)
}

func TestUuid4ProducesDistinctValues(t *testing.T) {
	a, err := uuid4(nil)
	assert.NoError(t, err)
	b, err := uuid4(nil)
	assert.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHumanizeBytesFormatsHumanReadable(t *testing.T) {
	out, err := humanizeBytes([]value.Value{value.Number(1536)})
	assert.NoError(t, err)
	assert.Equal(t, value.String("1.5 kB"), out)
}

func TestClockNeverGoesBackwards(t *testing.T) {
	a, err := clock(nil)
	assert.NoError(t, err)
	b, err := clock(nil)
	assert.NoError(t, err)
	av, bv := a.(value.Number), b.(value.Number)
	assert.LessOrEqual(t, av, bv)
}
