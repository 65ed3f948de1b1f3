package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitset_SetAndTest(t *testing.T) {
	b := NewBitset(10)
	b.Set(3)
	b.Set(9)
	b.Set(-1)

	assert.True(t, b.Test(3))
	assert.True(t, b.Test(9))
	assert.False(t, b.Test(4))
	assert.False(t, b.Test(-1))
	assert.False(t, b.Test(1000))
	assert.Equal(t, 2, b.Len())
}

func TestBitset_Grows(t *testing.T) {
	b := NewBitset(0)
	b.Set(1000)
	b.Set(63)
	b.Set(64)

	assert.True(t, b.Test(1000))
	assert.True(t, b.Test(63))
	assert.True(t, b.Test(64))
	assert.Equal(t, 3, b.Len())
}

func TestBitset_TestAndSet(t *testing.T) {
	b := NewBitset(64)
	assert.False(t, b.TestAndSet(7))
	assert.True(t, b.TestAndSet(7))
}

func TestBitset_EachAscending(t *testing.T) {
	b := NewBitset(256)
	for _, i := range []int{200, 5, 64, 0, 129} {
		b.Set(i)
	}

	var got []int
	b.Each(func(i int) { got = append(got, i) })
	assert.Equal(t, []int{0, 5, 64, 129, 200}, got)
}
