package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhonePattern(t *testing.T) {
	assert.True(t, phonePattern.MatchString("9876543210"))
	assert.True(t, phonePattern.MatchString("6000000000"))

	assert.False(t, phonePattern.MatchString("5876543210"))
	assert.False(t, phonePattern.MatchString("987654321"))
	assert.False(t, phonePattern.MatchString("98765432100"))
	assert.False(t, phonePattern.MatchString("+919876543210"))
}

func TestPincodePattern(t *testing.T) {
	assert.True(t, pincodePattern.MatchString("560001"))
	assert.True(t, pincodePattern.MatchString("110001"))

	assert.False(t, pincodePattern.MatchString("060001"))
	assert.False(t, pincodePattern.MatchString("56001"))
	assert.False(t, pincodePattern.MatchString("5600011"))
	assert.False(t, pincodePattern.MatchString("56000a"))
}
