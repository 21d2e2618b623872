package hls

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaylistUsedAvailCapacity(t *testing.T) {
	var p Playlist
	p.Open(3) // capacity 3, physical size 4
	require.True(t, p.IsEmpty())
	require.Equal(t, 0, p.Used())
	require.Equal(t, 3, p.Avail())
	require.Equal(t, 3, p.Used()+p.Avail())

	p.Push()
	p.Push()
	p.Push()
	require.True(t, p.IsFull())
	require.Equal(t, 3, p.Used())
	require.Equal(t, 0, p.Avail())
	require.Equal(t, 3, p.Used()+p.Avail())
}

func TestPlaylistEvictionAfterCapacityPlusK(t *testing.T) {
	var p Playlist
	p.Open(2)
	for i := 0; i < 2; i++ {
		p.Push()
	}
	require.True(t, p.IsFull())

	evictions := 0
	for k := 0; k < 5; k++ {
		if p.IsFull() {
			p.Shift()
			evictions++
		}
		p.Push()
	}
	require.Equal(t, 5, evictions)
}

func TestPlaylistEmptyFullPredicates(t *testing.T) {
	var p Playlist
	p.Open(1)
	require.True(t, p.IsEmpty())
	require.False(t, p.IsFull())
	p.Push()
	require.False(t, p.IsEmpty())
	require.True(t, p.IsFull())
	p.Shift()
	require.True(t, p.IsEmpty())
}
