package node

import "context"

// NetworkGateway is the external collaborator §1 scopes out of this module: whatever
// peer-to-peer transport discovers candidate blocks and an estimate of current
// network time hands them to a Validator through this interface. A gateway
// implementation owns connection management, message framing and peer scoring; this
// package only consumes its output.
type NetworkGateway interface {
	// NextBlock blocks until a candidate block is available, or ctx is done. The
	// returned networkTime is the gateway's current estimate of network time (e.g. the
	// median of connected peers' clocks), used by ProcessBlock's future-drift check.
	NextBlock(ctx context.Context) (blockBytes []byte, networkTime uint32, err error)
}

// Run drains gw in order, feeding each candidate block to v.ProcessBlock and
// reporting its disposition through v.ErrSink, until ctx is cancelled or gw returns a
// non-nil error. §5 requires blocks to be processed in the order a gateway delivers
// them, never concurrently, so this loop never spawns a goroutine per block.
func (v *Validator) Run(ctx context.Context, gw NetworkGateway) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		blockBytes, networkTime, err := gw.NextBlock(ctx)
		if err != nil {
			return err
		}
		status, perr := v.ProcessBlock(blockBytes, networkTime)
		if v.ErrSink == nil {
			continue
		}
		if perr != nil {
			v.ErrSink(CodeOf(perr), status.String()+": "+perr.Error())
			continue
		}
		v.ErrSink(ErrorCode(status.String()), "block accepted")
	}
}
