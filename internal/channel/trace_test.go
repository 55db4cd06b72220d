package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/advect/internal/ir"
)

func TestTrace_RecordsSends(t *testing.T) {
	h, err := NewHub(2)
	require.NoError(t, err)
	tr := NewTrace()
	a, b := tr.Wrap(h.Endpoint(0)), tr.Wrap(h.Endpoint(1))

	key := ir.DomainKey{Domain: 1}
	require.NoError(t, a.Send(1, ir.NewDatasetRequest(0, 1, key)))
	require.NoError(t, b.Send(0, ir.NewDatasetPayload(1, 0, key, ir.Payload("abc"))))
	require.NoError(t, b.Send(1, ir.NewDone(1, 1)))

	entries := tr.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, TraceEntry{Seq: 1, Kind: ir.KindDatasetRequest, From: 0, To: 1, Key: key}, entries[0])
	assert.Equal(t, TraceEntry{Seq: 2, Kind: ir.KindDatasetPayload, From: 1, To: 0, Key: key, Bytes: 3}, entries[1])
	assert.Equal(t, TraceEntry{Seq: 3, Kind: ir.KindDone, From: 1, To: 1}, entries[2])

	dones := tr.Count(func(e TraceEntry) bool { return e.Kind == ir.KindDone })
	assert.Equal(t, 1, dones)
}

func TestTrace_FailedSendNotRecorded(t *testing.T) {
	h, err := NewHub(1)
	require.NoError(t, err)
	tr := NewTrace()
	ch := tr.Wrap(h.Endpoint(0))

	assert.Error(t, ch.Send(4, ir.NewDone(0, 4)))
	assert.Empty(t, tr.Entries())
}

func TestTrace_WrappedChannelDelivers(t *testing.T) {
	h, err := NewHub(1)
	require.NoError(t, err)
	ch := NewTrace().Wrap(h.Endpoint(0))

	require.NoError(t, ch.Send(0, ir.NewDone(0, 0)))
	assert.Len(t, ch.Poll(), 1)
	assert.Equal(t, 0, ch.Rank())
}
