package node

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	blocks [][]byte
	time   uint32
	idx    int
}

func (g *fakeGateway) NextBlock(ctx context.Context) ([]byte, uint32, error) {
	if g.idx >= len(g.blocks) {
		return nil, 0, errors.New("no more blocks")
	}
	b := g.blocks[g.idx]
	g.idx++
	return b, g.time, nil
}

func TestRunFeedsBlocksInOrderAndReportsStatus(t *testing.T) {
	v := newTestValidator(t)
	defer v.Store.Close()

	raw := block1Raw(t)
	var reports []string
	v.ErrSink = func(kind ErrorCode, msg string) {
		reports = append(reports, string(kind)+": "+msg)
	}

	gw := &fakeGateway{blocks: [][]byte{raw}, time: 2000000000}
	err := v.Run(context.Background(), gw)
	require.Error(t, err) // terminates when the fake gateway runs dry

	require.Len(t, reports, 1)
	require.Contains(t, reports[0], "block accepted")
	require.Len(t, v.Branches[0].Refs, 2)
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	v := newTestValidator(t)
	defer v.Store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gw := &fakeGateway{blocks: [][]byte{block1Raw(t)}}
	err := v.Run(ctx, gw)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunSkipsErrSinkWhenNil(t *testing.T) {
	v := newTestValidator(t)
	defer v.Store.Close()
	require.Nil(t, v.ErrSink)

	gw := &fakeGateway{blocks: [][]byte{block1Raw(t)}, time: 2000000000}
	err := v.Run(context.Background(), gw)
	require.Error(t, err)
	require.Len(t, v.Branches[0].Refs, 2)
}
