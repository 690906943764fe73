package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snore/snore-cli/internal/encoding"
)

// UDPRadio carries radio messages as UDP datagrams between two hosts
type UDPRadio struct {
	link
	listen string
	peer   string
	codec  encoding.Codec

	conn     *net.UDPConn
	peerAddr *net.UDPAddr
	connMu   sync.RWMutex
}

// NewUDPRadio creates a radio bound to listen that sends to peer. Either
// side may be a broadcast address.
func NewUDPRadio(listen, peer string, group int, serial uint32, codec encoding.Codec, logger *zap.Logger) *UDPRadio {
	return &UDPRadio{
		link:   link{group: group, serial: serial, logger: orNop(logger)},
		listen: listen,
		peer:   peer,
		codec:  codec,
	}
}

// Open binds the local socket and resolves the peer
func (r *UDPRadio) Open() error {
	addr, err := net.ResolveUDPAddr("udp", r.listen)
	if err != nil {
		return fmt.Errorf("failed to resolve address: %w", err)
	}

	var peerAddr *net.UDPAddr
	if r.peer != "" {
		peerAddr, err = net.ResolveUDPAddr("udp", r.peer)
		if err != nil {
			return fmt.Errorf("failed to resolve peer: %w", err)
		}
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	r.connMu.Lock()
	r.conn = conn
	r.peerAddr = peerAddr
	r.connMu.Unlock()

	r.logger.Info("udp radio listening",
		zap.String("addr", conn.LocalAddr().String()),
		zap.String("peer", r.peer),
		zap.Int("group", r.Group()))
	return nil
}

// Serve reads datagrams until ctx is cancelled, then closes the socket.
// Cancellation is a clean stop and returns nil.
func (r *UDPRadio) Serve(ctx context.Context) error {
	r.connMu.RLock()
	conn := r.conn
	r.connMu.RUnlock()
	if conn == nil {
		return errors.New("udp radio not open")
	}

	go r.readLoop(ctx, conn)

	<-ctx.Done()
	return r.Close()
}

func (r *UDPRadio) readLoop(ctx context.Context, conn *net.UDPConn) {
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		msg, err := r.codec.Decode(buf[:n])
		if err != nil {
			r.logger.Warn("dropping undecodable datagram", zap.Stringer("from", from), zap.Error(err))
			continue
		}
		r.deliver(msg)
	}
}

// SendValue writes one datagram to the peer
func (r *UDPRadio) SendValue(ctx context.Context, name string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.connMu.RLock()
	conn, peer := r.conn, r.peerAddr
	r.connMu.RUnlock()

	if conn == nil {
		return errors.New("udp radio not open")
	}
	if peer == nil {
		return errors.New("udp radio has no peer")
	}

	data, err := r.codec.Encode(r.message(name, value))
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	if _, err := conn.WriteToUDP(data, peer); err != nil {
		return fmt.Errorf("failed to send %s: %w", name, err)
	}
	return nil
}

// LocalAddr returns the bound address, or "" before Open
func (r *UDPRadio) LocalAddr() string {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	if r.conn == nil {
		return ""
	}
	return r.conn.LocalAddr().String()
}

// Close closes the socket
func (r *UDPRadio) Close() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
