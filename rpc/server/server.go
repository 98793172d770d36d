package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ValentinKolb/dbBench/lib/tablestore"
	"github.com/ValentinKolb/dbBench/rpc/common"
	"github.com/ValentinKolb/dbBench/rpc/skyhash"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc/server")

// Server serves the Skyhash protocol over TCP on top of a tablestore.Store.
//
// Each connection is handled by its own goroutine. Queries of one connection
// are processed in order since the active table is connection state.
type Server struct {
	config   common.ServerConfig
	store    *tablestore.Store
	listener net.Listener
	conns    *xsync.MapOf[uint64, net.Conn]
	nextID   atomic.Uint64
	slots    chan struct{}
	closing  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a server for store. The tables of config.Tables are
// created on Listen.
//
// Usage:
//
//	s := server.NewServer(common.DefaultServerConfig(), tablestore.New())
//	if err := s.ListenAndServe(); err != nil {
//		panic(err)
//	}
func NewServer(config common.ServerConfig, store *tablestore.Store) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	s := &Server{
		config: config,
		store:  store,
		conns:  xsync.NewMapOf[uint64, net.Conn](),
	}
	if config.MaxConnections > 0 {
		s.slots = make(chan struct{}, config.MaxConnections)
	}
	return s
}

// Store returns the served store.
func (s *Server) Store() *tablestore.Store { return s.store }

// Listen creates the configured tables and binds the listener.
func (s *Server) Listen() error {
	for name, kindStr := range s.config.Tables {
		kind, err := parseTableKind(kindStr)
		if err != nil {
			return fmt.Errorf("table %s: invalid value type %q", name, kindStr)
		}
		ks, _, _ := strings.Cut(name, ":")
		if err := s.store.CreateKeyspace(ks); err != nil && !errors.Is(err, tablestore.ErrAlreadyExists) {
			return fmt.Errorf("table %s: %w", name, err)
		}
		if err := s.store.CreateTable(name, kind); err != nil && !errors.Is(err, tablestore.ErrAlreadyExists) {
			return fmt.Errorf("table %s: %w", name, err)
		}
	}

	listener, err := net.Listen("tcp", s.config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create tcp socket: %w", err)
	}
	s.listener = listener

	Logger.Infof("Listening on %s", listener.Addr())
	return nil
}

// Addr returns the bound address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server is not listening")
	}

	for {
		if s.slots != nil {
			s.slots <- struct{}{}
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if s.slots != nil {
				<-s.slots
			}
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}
		if s.closing.Load() {
			conn.Close()
			return nil
		}

		if err := s.upgradeConnection(conn); err != nil {
			Logger.Warningf("Failed to apply socket options to %s: %v", conn.RemoteAddr(), err)
		}

		id := s.nextID.Add(1)
		s.conns.Store(id, conn)
		s.wg.Add(1)

		go func() {
			defer func() {
				s.conns.Delete(id)
				if s.slots != nil {
					<-s.slots
				}
				s.wg.Done()
			}()
			s.handleConnection(conn)
		}()
	}
}

// ListenAndServe combines Listen and Serve.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Close stops accepting, closes all open connections and waits for their
// handlers to finish.
func (s *Server) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.conns.Range(func(_ uint64, conn net.Conn) bool {
		conn.Close()
		return true
	})
	s.wg.Wait()
	Logger.Infof("Server closed")
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection serves queries of one connection until EOF or error
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr()
	Logger.Debugf("Accepted connection from %s", remote)

	sess := newSession(s.store)
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	timeout := s.config.Timeout()

	for {
		if timeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set read deadline: %v", err)
				return
			}
		}

		q, err := skyhash.ReadQuery(reader)

		// Case EOF: connection closed by client
		if err == io.EOF {
			Logger.Debugf("Connection closed by client %s", remote)
			return
		}

		// Case malformed packet: answer and close, the stream cannot be resynchronized
		if errors.Is(err, skyhash.ErrProtocol) {
			Logger.Warningf("Malformed query from %s: %v", remote, err)
			_ = skyhash.WriteResponse(writer, skyhash.Code(skyhash.CodePacketError))
			return
		}

		// Case other error: log and close connection
		if err != nil {
			if !s.closing.Load() && !isTimeout(err) {
				Logger.Errorf("Error reading query from %s: %v", remote, err)
			}
			return
		}

		start := time.Now()
		resp := sess.handle(q)
		Logger.Debugf("Processed %s from %s in %s", q.Action(), remote, time.Since(start))

		if err := skyhash.WriteResponse(writer, resp); err != nil {
			Logger.Errorf("Failed to write response to %s: %v", remote, err)
			return
		}
	}
}

// upgradeConnection applies the configured TCP socket options
func (s *Server) upgradeConnection(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	if err := tcpConn.SetNoDelay(s.config.TCPNoDelay); err != nil {
		return err
	}
	if s.config.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(s.config.WriteBufferSize); err != nil {
			return err
		}
	}
	if s.config.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(s.config.ReadBufferSize); err != nil {
			return err
		}
	}
	if s.config.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(s.config.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout() || errors.Is(err, os.ErrDeadlineExceeded)
}
