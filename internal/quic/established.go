// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"context"
	"errors"
	"net"
	"sync"

	log "github.com/sirupsen/logrus"
)

// txTask is this core's stand-in for a cancellable join handle: Abort
// cancels the TX pump's context, and Finished reports whether the pump's
// goroutine has actually returned. Aborting never leaves the engine in an
// inconsistent state, because the engine is mutated only under its own
// lock and the pump holds no other resource across a suspension point.
type txTask struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	finished bool
}

func (t *txTask) Abort() {
	t.cancel()
}

func (t *txTask) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

func (t *txTask) markFinished() {
	t.mu.Lock()
	t.finished = true
	t.mu.Unlock()
	close(t.done)
}

// EstablishedState is the caller's view of a live connection: the shared,
// locked engine; the running TX pump's task handle; the drop-notification
// sender used when the connection is closed; and the three
// level-triggered wake-ups the TX pump and handshake completion path
// coordinate through.
type EstablishedState struct {
	connID ConnectionID

	engine *sharedEngine
	tx     *txTask

	dropConn chan<- ConnectionID

	rxNotify  *Notify
	txNotify  *Notify
	txFlushed *Notify

	socket     *net.UDPConn
	socketCaps SocketCapabilities
}

// newEstablishedState builds the Established state for a connection whose
// handshake has just completed, and spawns its TX pump.
func newEstablishedState(
	connID ConnectionID,
	engine Engine,
	socket *net.UDPConn,
	caps SocketCapabilities,
	cfg *SharedConfig,
	dropConn chan<- ConnectionID,
	metrics *Metrics,
) *EstablishedState {
	se := &sharedEngine{Engine: engine}
	rxNotify := NewNotify()
	txNotify := NewNotify()
	txFlushed := NewNotify()

	ctx, cancel := context.WithCancel(context.Background())
	task := &txTask{cancel: cancel, done: make(chan struct{})}

	es := &EstablishedState{
		connID:     connID,
		engine:     se,
		tx:         task,
		dropConn:   dropConn,
		rxNotify:   rxNotify,
		txNotify:   txNotify,
		txFlushed:  txFlushed,
		socket:     socket,
		socketCaps: caps,
	}

	pump := &txPump{
		connID:     connID,
		socket:     socket,
		socketCaps: caps,
		engine:     se,
		burst:      newBurstController(cfg.MaxDatagramSize()),
		maxDgram:   cfg.MaxDatagramSize(),
		txNotify:   txNotify,
		txFlushed:  txFlushed,
		metrics:    metrics,
	}
	go func() {
		defer task.markFinished()
		if err := pump.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithFields(log.Fields{
				"connection_id": connID.String(),
				"error":         err,
			}).Warn("quic: TX pump stopped")
		}
	}()

	return es
}

// Handle returns the listener-facing handle for this Established
// connection.
func (es *EstablishedState) Handle() *EstablishedHandle {
	return &EstablishedHandle{
		connID:   es.connID,
		engine:   es.engine,
		rxNotify: es.rxNotify,
		txNotify: es.txNotify,
	}
}

// Close aborts the TX task if it has not already finished, then queues the
// connection id on the listener's drop channel so the registry entry is
// reaped on the listener's next accept iteration.
func (es *EstablishedState) Close() {
	if !es.tx.Finished() {
		es.tx.Abort()
	}
	es.dropConn <- es.connID
}

// LocalAddr returns the shared socket's local address.
func (es *EstablishedState) LocalAddr() net.Addr { return es.socket.LocalAddr() }

// txPump drives one connection's egress datagrams: compute the burst
// budget, fill a buffer from the engine, and write it to the socket as one
// GSO batch (or one syscall per segment, if GSO is unavailable).
type txPump struct {
	connID     ConnectionID
	socket     *net.UDPConn
	socketCaps SocketCapabilities
	engine     *sharedEngine
	burst      *burstController
	maxDgram   int
	txNotify   *Notify
	txFlushed  *Notify
	metrics    *Metrics
}

func (p *txPump) run(ctx context.Context) error {
	out := make([]byte, MaxIPv6BufSize)

	for {
		var stats Stats
		var sendQuantum int
		p.engine.mu.Lock()
		stats = p.engine.Engine.EngineStats()
		sendQuantum = stats.SendQuantum
		p.engine.mu.Unlock()

		maxSendBurst := p.burst.maxSendBurstBytes(stats, sendQuantum)
		p.metrics.setMaxSendBurst(maxSendBurst)

		totalWrite := 0
		var dstInfo *SendInfo
		finishedSending := false

		for totalWrite < maxSendBurst {
			p.engine.mu.Lock()
			n, info, err := p.engine.Engine.Send(out[totalWrite:maxSendBurst])
			p.engine.mu.Unlock()

			if err != nil {
				if errors.Is(err, ErrDone) {
					finishedSending = true
					break
				}
				return NewWriteError(p.connID, err)
			}

			totalWrite += n
			if dstInfo == nil {
				info := info
				dstInfo = &info
			}
		}

		if totalWrite == 0 || dstInfo == nil {
			if err := p.txNotify.Wait(ctx); err != nil {
				return err
			}
			continue
		}

		if err := sendBatch(p.socket, out[:totalWrite], *dstInfo, p.maxDgram, p.socketCaps); err != nil {
			if errors.Is(err, errWouldBlock) {
				log.WithField("connection_id", p.connID.String()).Debug("quic: socket write would block, retrying on next notification")
				continue
			}
			// TODO: on a hard socket-write failure, close the underlying
			// engine with a transport error instead of merely stopping
			// this pump, so the peer is told why rather than just timing
			// out.
			return NewWriteError(p.connID, err)
		}
		p.metrics.addBytesSent(totalWrite)

		if finishedSending {
			p.txFlushed.Notify()
			if err := p.txNotify.Wait(ctx); err != nil {
				return err
			}
		}
	}
}

// errWouldBlock is returned by sendBatch for transient socket
// back-pressure; it is never fatal to the connection.
var errWouldBlock = errors.New("quic: socket write would block")
