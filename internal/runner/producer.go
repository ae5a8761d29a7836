package runner

import (
	"context"
	"encoding/binary"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/mqbench/internal/backend"
	"github.com/torosent/mqbench/internal/metrics"
	"github.com/torosent/mqbench/internal/wire"
)

// producerSeedMix decorrelates the PCG streams of neighbouring producer ids.
const producerSeedMix = 0x9e3779b97f4a7c15

type producer struct {
	id      int
	be      backend.Backend
	stats   *metrics.Stats
	arrival arrivalController
	timeout time.Duration
	clock   func() uint64
	logger  *zap.Logger

	msg    []byte
	random bool
	rng    *rand.Rand
}

func newProducer(id int, be backend.Backend, stats *metrics.Stats, arrival arrivalController, opt Options) *producer {
	seed := uint64(id) ^ producerSeedMix
	return &producer{
		id:      id,
		be:      be,
		stats:   stats,
		arrival: arrival,
		timeout: opt.callTimeout(),
		clock:   opt.Clock,
		logger:  opt.Logger,
		msg:     make([]byte, opt.MessageSize),
		random:  opt.RandomPayload,
		rng:     rand.New(rand.NewPCG(seed, seed)),
	}
}

// run sends until ctx is cancelled. The message buffer is reused for every
// iteration; backends copy it before TrySend returns.
func (p *producer) run(ctx context.Context) {
	var seq uint64
	size := uint64(len(p.msg))

	for ctx.Err() == nil {
		if p.arrival != nil {
			if err := p.arrival.Wait(ctx); err != nil {
				return
			}
		}

		if p.random {
			p.fill()
		}
		wire.Encode(p.msg, wire.Header{Sequence: seq, SendTimeNs: p.clock()})
		seq++

		err := p.be.TrySend(ctx, p.msg, p.timeout)
		switch {
		case err != nil && ctx.Err() != nil:
			// Interrupted by shutdown; not a backend failure.
			return
		case err == nil:
			p.stats.SentMessages.Add(1)
			p.stats.SentBytes.Add(size)
		case backend.IsWouldBlock(err):
			p.stats.SendWouldBlock.Add(1)
			time.Sleep(transientBackoff)
		default:
			p.stats.SendErrors.Add(1)
			p.logger.Debug("send failed", zap.Int("producer", p.id), zap.Error(err))
			time.Sleep(hardBackoff)
		}
	}
}

// fill overwrites everything after the header with 32-bit PRNG words.
func (p *producer) fill() {
	start := 0
	if wire.Fits(len(p.msg)) {
		start = wire.HeaderSize
	}
	body := p.msg[start:]
	for len(body) >= 4 {
		binary.LittleEndian.PutUint32(body, p.rng.Uint32())
		body = body[4:]
	}
	if len(body) > 0 {
		var tail [4]byte
		binary.LittleEndian.PutUint32(tail[:], p.rng.Uint32())
		copy(body, tail[:])
	}
}
