// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// Listener owns the shared UDP socket for one QUIC listen address and
// dispatches every received datagram to the connection it belongs to,
// creating a new Incoming connection for datagrams that start a handshake.
// It never interprets packet contents beyond the header: cryptography,
// loss recovery and the rest of the handshake state machine live behind the
// Engine seam.
type Listener struct {
	socket     *net.UDPConn
	socketCaps SocketCapabilities
	config     *SharedConfig
	cidGen     *cidGenerator
	registry   *registry
	metrics    *Metrics

	acceptCh chan *Connection

	liveMu sync.Mutex
	live   map[string]*Connection

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Listen opens the shared UDP socket for addr and prepares the listener's
// registry, connection-id generator, and accept channel. The socket is not
// read from until Serve is running.
func Listen(addr string, config *SharedConfig, metrics *Metrics) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, NewSocketError("failed to resolve listen address", err)
	}
	socket, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, NewSocketError("failed to open UDP socket", err)
	}
	caps, err := probeSocketCapabilities(socket)
	if err != nil {
		socket.Close()
		return nil, err
	}
	cidGen, err := newCIDGenerator()
	if err != nil {
		socket.Close()
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	log.WithFields(log.Fields{
		"local_addr": caps.LocalAddr.String(),
		"gso":        caps.GSOEnabled,
		"pacing":     caps.PacingEnabled,
	}).Info("quic: listening")

	return &Listener{
		socket:     socket,
		socketCaps: caps,
		config:     config,
		cidGen:     cidGen,
		registry:   newRegistry(metrics),
		metrics:    metrics,
		acceptCh:   make(chan *Connection, HandshakePacketBufferSize),
		live:       make(map[string]*Connection),
		done:       make(chan struct{}),
	}, nil
}

// LocalAddr returns the shared socket's local address.
func (l *Listener) LocalAddr() net.Addr { return l.socket.LocalAddr() }

// Accept blocks until a new Incoming connection has started a handshake, the
// listener is closed, or ctx is done.
func (l *Listener) Accept(ctx context.Context) (*Connection, error) {
	select {
	case conn, ok := <-l.acceptCh:
		if !ok {
			return nil, net.ErrClosed
		}
		return conn, nil
	case <-l.done:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serve runs the receive loop until ctx is done or the socket is closed. It
// is the only reader of the shared socket; every other component reaches
// the network exclusively through the TX pumps' writes.
func (l *Listener) Serve(ctx context.Context) error {
	// A cancelled ctx expires the pending read, so the loop below sees the
	// cancellation even when no datagram arrives.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.socket.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	buf := make([]byte, MaxIPv6BufSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		default:
		}

		l.registry.reapDropped()
		l.reapLive()

		n, from, err := l.socket.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return NewSocketError("failed to read from UDP socket", err)
		}

		if err := l.route(buf[:n], from); err != nil {
			return err
		}
	}
}

// route parses one received datagram and dispatches it to the connection it
// belongs to, creating a new Incoming connection if none is found and the
// datagram is an Initial packet. An error return is always a BrokenPipeError
// from an Established engine's Recv and is fatal to the listener; parse and
// routing misses are absorbed locally and never returned.
func (l *Listener) route(data []byte, from netip.AddrPort) error {
	header, err := ParseHeader(data, MaxConnIDLen)
	if err != nil {
		l.metrics.parseError()
		log.WithField("error", err).Warn("quic: dropping datagram with unparseable header")
		return nil
	}

	info := RecvInfo{To: l.socketCaps.LocalAddr, From: from}

	if handle, ok := l.registry.lookup(header.DCID); ok {
		return l.dispatch(header.DCID, handle, header, data, info)
	}

	derived := l.cidGen.generate(header.DCID)
	if handle, ok := l.registry.lookup(derived); ok {
		return l.dispatch(derived, handle, header, data, info)
	}

	if header.Type != PacketTypeInitial {
		log.WithFields(log.Fields{
			"packet_type": header.Type.String(),
			"dcid":        header.DCID.String(),
		}).Debug("quic: dropping non-Initial datagram for unknown connection")
		return nil
	}

	l.acceptIncoming(derived, header, data, info)
	return nil
}

// dispatch routes one already-matched datagram to an existing registry
// entry, handling the Incoming/Established split and any handshake
// response the driver has already published.
func (l *Listener) dispatch(id ConnectionID, handle *ConnectionHandle, header Header, data []byte, info RecvInfo) error {
	if established, ok := handle.Established(); ok {
		return l.feedEstablished(established, data, info)
	}

	incoming, ok := handle.Incoming()
	if !ok {
		return nil
	}

	select {
	case resp, chOk := <-incoming.responseRx:
		if !chOk {
			// The handshake driver's goroutine is gone without ever
			// publishing an outcome; treat the connection as abandoned.
			l.registry.remove(id)
			l.metrics.incomingClosed()
			return nil
		}
		switch resp.Kind {
		case HandshakeEstablished:
			handle.establish(resp.Handle)
			l.metrics.established()
			return l.feedEstablished(resp.Handle, data, info)
		case HandshakeIgnored:
			l.registry.remove(id)
			l.metrics.incomingClosed()
		case HandshakeRejected:
			l.registry.remove(id)
			l.metrics.incomingClosed()
			log.WithField("connection_id", id.String()).Info("quic: handshake rejected")
		}
	default:
		select {
		case incoming.udpTx <- &routedDatagram{Data: append([]byte(nil), data...), Header: header, RecvInfo: info}:
		default:
			log.WithField("connection_id", id.String()).Warn("quic: handshake datagram buffer full, dropping datagram")
		}
	}
	return nil
}

// feedEstablished hands a datagram to an Established connection's engine and
// wakes its RX waiter and TX pump, since a received packet may both carry
// application data and provoke an outgoing ACK. An engine Recv error
// terminates the listener: it is returned as a BrokenPipeError so Serve
// stops the accept loop rather than continuing to route datagrams to a
// connection whose engine has rejected one.
func (l *Listener) feedEstablished(handle *EstablishedHandle, data []byte, info RecvInfo) error {
	handle.engine.mu.Lock()
	_, err := handle.engine.Engine.Recv(data, info)
	handle.engine.mu.Unlock()
	if err != nil {
		return NewBrokenPipeError(handle.connID, err)
	}
	handle.rxNotify.Notify()
	handle.txNotify.Notify()
	return nil
}

// acceptIncoming creates and registers a new Incoming connection for a
// datagram that matched no existing registry entry, buffering the datagram
// as the connection's first and publishing the connection on the accept
// channel.
func (l *Listener) acceptIncoming(id ConnectionID, header Header, data []byte, info RecvInfo) {
	udpRx := make(chan *routedDatagram, HandshakePacketBufferSize)
	responseTx := make(chan HandshakeResponse, 1)

	state := &IncomingState{
		connID:     id,
		config:     l.config,
		dropConn:   l.registry.dropped,
		socket:     l.socket,
		socketCaps: l.socketCaps,
		udpRx:      udpRx,
		responseTx: responseTx,
		dgram: &routedDatagram{
			Data:     append([]byte(nil), data...),
			Header:   header,
			RecvInfo: info,
		},
	}

	handle := &ConnectionHandle{
		kind: HandleIncoming,
		incoming: &IncomingHandle{
			udpTx:      udpRx,
			responseRx: responseTx,
		},
	}
	l.registry.insert(id, handle)
	l.metrics.incomingOpened()

	conn := newIncomingConnection(id, handle, state, l.metrics)
	l.liveMu.Lock()
	l.live[string(id)] = conn
	l.liveMu.Unlock()

	select {
	case l.acceptCh <- conn:
	default:
		log.WithField("connection_id", id.String()).Warn("quic: accept channel full, dropping new connection")
		l.registry.remove(id)
		l.metrics.incomingClosed()
		l.liveMu.Lock()
		delete(l.live, string(id))
		l.liveMu.Unlock()
	}
}

// reapLive drops live-connection bookkeeping for every id the registry has
// already reaped, so Close does not try to abort a connection twice.
func (l *Listener) reapLive() {
	l.liveMu.Lock()
	defer l.liveMu.Unlock()
	for id := range l.live {
		if _, ok := l.registry.conns[id]; !ok {
			delete(l.live, id)
		}
	}
}

// Close stops the accept loop and aborts every live connection's TX pump,
// aggregating any errors waiting for those pumps to stop.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)

		l.liveMu.Lock()
		conns := make([]*Connection, 0, len(l.live))
		for _, c := range l.live {
			conns = append(conns, c)
		}
		l.liveMu.Unlock()

		var result *multierror.Error
		for _, c := range conns {
			if err := abortAndWait(c); err != nil {
				result = multierror.Append(result, err)
			}
		}

		if err := l.socket.Close(); err != nil {
			result = multierror.Append(result, NewSocketError("failed to close UDP socket", err))
		}

		if result != nil {
			l.closeErr = result.ErrorOrNil()
		}
	})
	return l.closeErr
}

// abortAndWait aborts an Established connection's TX pump and waits briefly
// for it to finish; Incoming connections have no running task to wait for.
func abortAndWait(c *Connection) error {
	established, ok := c.Established()
	if !ok {
		return nil
	}
	if !established.tx.Finished() {
		established.tx.Abort()
	}
	select {
	case <-established.tx.done:
		return nil
	case <-time.After(2 * time.Second):
		return NewInternalError("TX pump did not stop within the shutdown grace period", nil)
	}
}
