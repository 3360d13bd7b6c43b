package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_MarshalUnmarshalRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samps := rapid.IntRange(0, 64).Draw(t, "samps")
		p := Packet{
			FrameID:  rapid.Uint32().Draw(t, "frame"),
			SymbolID: rapid.Uint32().Draw(t, "symbol"),
			CellID:   rapid.Uint32().Draw(t, "cell"),
			AntID:    rapid.Uint32().Draw(t, "ant"),
			IQ:       rapid.SliceOfN(rapid.Int16(), samps*2, samps*2).Draw(t, "iq"),
		}

		buf := p.Marshal()
		assert.Equal(t, HeaderSize+samps*4, len(buf))

		got, err := Unmarshal(buf, samps)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})
}

func Test_UnmarshalRejectsShortBuffer(t *testing.T) {
	_, err := Unmarshal(make([]byte, 10), 4)
	require.Error(t, err)
}
