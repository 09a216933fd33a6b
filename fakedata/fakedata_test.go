package fakedata

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenPasswordMeetsSignupRules(t *testing.T) {
	for i := 0; i < 100; i++ {
		pw := GenPassword()
		assert.GreaterOrEqual(t, len(pw), 8)
		assert.LessOrEqual(t, len(pw), 100)
		assert.True(t, strings.ContainsFunc(pw, unicode.IsDigit), pw)
		assert.True(t, strings.ContainsFunc(pw, unicode.IsUpper), pw)
	}
}

func TestDecodeAccountCatalog(t *testing.T) {
	lines := `{"index":0,"user_id":1,"email":"a@example.com","password":"Passw0rdX"}
{"index":1,"user_id":2,"email":"b@example.com","password":"Passw0rdX"}
`
	cat, err := DecodeAccountCatalog(strings.NewReader(lines))
	require.NoError(t, err)
	require.Len(t, cat.Accounts, 2)
	assert.Equal(t, "b@example.com", cat.Accounts[1].Email)

	_, err = DecodeAccountCatalog(strings.NewReader(`{"index":3,"email":"x@example.com"}`))
	assert.Error(t, err)

	_, err = DecodeAccountCatalog(strings.NewReader(`{nope`))
	assert.Error(t, err)
}
