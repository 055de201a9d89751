package relay

import (
	"io"
	"math"
	"strings"
	"testing"

	"github.com/phanxgames/ardw"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	t.Parallel()

	stream := strings.Join([]string{
		": keep-alive",
		"",
		`data: {"kind":"projector-mode","data":{"mode":"normal"}}`,
		"",
		"event: ignored",
		"data:first",
		"data: second",
		"",
		"data: unterminated",
	}, "\n")

	var got []string
	err := readEvents(strings.NewReader(stream), func(b []byte) { got = append(got, string(b)) })
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, []string{
		`{"kind":"projector-mode","data":{"mode":"normal"}}`,
		"first\nsecond",
	}, got)
}

func TestClientSendQueues(t *testing.T) {
	t.Parallel()

	c := NewClient("http://127.0.0.1:1")
	require.NotEmpty(t, c.ID())
	for range clientOutboxSize {
		require.NoError(t, c.Send(&ardw.SelectionMessage{Selection: ardw.Deselect}))
	}
	err := c.Send(&ardw.SelectionMessage{Selection: ardw.Deselect})
	require.ErrorIs(t, err, ErrOutboxFull)
}

func TestClientSendRejectsUnencodable(t *testing.T) {
	t.Parallel()

	c := NewClient("http://127.0.0.1:1")
	err := c.Send(&ardw.ProjectorAdjustMessage{Component: ardw.AdjustTX, Value: math.Inf(1)})
	require.ErrorIs(t, err, ardw.ErrNonFinite)
}
