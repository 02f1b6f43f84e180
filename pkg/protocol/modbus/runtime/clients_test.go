package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type window struct {
	address  uint16
	quantity int
}

func TestChunk(t *testing.T) {
	cases := []struct {
		start  uint16
		count  int
		max    int
		expect []window
	}{
		{0, 10, 125, []window{{0, 10}}},
		{100, 125, 125, []window{{100, 125}}},
		{100, 300, 125, []window{{100, 125}, {225, 125}, {350, 50}}},
		{0, 2001, 2000, []window{{0, 2000}, {2000, 1}}},
		{5, 0, 125, nil},
	}
	for _, c := range cases {
		var got []window
		err := chunk(c.start, c.count, c.max, func(address uint16, quantity int) error {
			got = append(got, window{address, quantity})
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, c.expect, got)
	}
}

func TestChunkStopsOnError(t *testing.T) {
	calls := 0
	err := chunk(0, 500, 125, func(address uint16, quantity int) error {
		calls++
		return ErrShortResponse
	})
	assert.Equal(t, ErrShortResponse, err)
	assert.Equal(t, 1, calls)
}

func TestTCPClientClosed(t *testing.T) {
	c := NewTCPClient("127.0.0.1:1", TCPClientOptions{})
	assert.False(t, c.IsOpen())
	_, err := c.ReadHoldingRegisters(0, 1)
	assert.Equal(t, ErrClientClosed, err)
	_, err = c.ReadCoils(0, 1)
	assert.Equal(t, ErrClientClosed, err)
	assert.Equal(t, ErrClientClosed, c.WriteMultipleRegisters(0, []uint16{1}))
	assert.Equal(t, ErrClientClosed, c.WriteMultipleCoils(0, []bool{true}))
	assert.NoError(t, c.Close())
}
