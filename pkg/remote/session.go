package remote

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-dev/ctrlbind/pkg/middleware"
	"github.com/vango-dev/ctrlbind/pkg/view"
)

// session is one connection and its element tree.
type session struct {
	host *Host
	conn *websocket.Conn
	tree *view.Node

	writeMu       sync.Mutex
	closeOnce     sync.Once
	interruptOnce sync.Once
}

func newSession(h *Host, conn *websocket.Conn, tree *view.Node) *session {
	return &session{host: h, conn: conn, tree: tree}
}

// readLoop applies frames until the connection closes.
func (s *session) readLoop() {
	defer s.close()

	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.host.config.ReadTimeout))

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.host.logger.Error("read error", slog.Any("error", err))
			}
			return
		}

		frame, err := DecodeFrame(msg)
		if err != nil {
			middleware.RecordFrameError("decode")
			s.host.logger.Warn("frame decode error", slog.Any("error", err))
			s.reply(&Reply{Type: ReplyError, Error: err.Error()})
			continue
		}

		if err := s.apply(frame); err != nil {
			middleware.RecordFrameError(string(frame.Type))
			r := &Reply{Type: ReplyError, Seq: frame.Seq, Error: err.Error()}
			var coded interface{ Code() string }
			if errors.As(err, &coded) {
				r.Code = coded.Code()
			}
			s.reply(r)
			continue
		}

		snap := s.tree.Snapshot()
		s.reply(&Reply{Type: ReplySnapshot, Seq: frame.Seq, Tree: &snap})
	}
}

// apply runs one frame against the tree.
func (s *session) apply(f *Frame) error {
	switch f.Type {
	case FrameLoad:
		if s.tree.IsLoaded() {
			return nil
		}
		return s.tree.Load()
	case FrameUnload:
		if !s.tree.IsLoaded() {
			return nil
		}
		return s.tree.Unload()
	case FrameRaise:
		n, err := s.target(f.Element)
		if err != nil {
			return err
		}
		return n.Raise(f.Event, f.args())
	case FrameSet:
		n, err := s.target(f.Element)
		if err != nil {
			return err
		}
		n.SetProp(f.Prop, f.Value)
	}
	return nil
}

func (s *session) target(name string) (*view.Node, error) {
	if name == "" {
		return s.tree, nil
	}
	n := s.tree.FindNode(name)
	if n == nil {
		return nil, fmt.Errorf("remote: no element %q", name)
	}
	return n, nil
}

func (s *session) reply(r *Reply) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(r); err != nil {
		s.host.logger.Debug("write error", slog.Any("error", err))
	}
}

// close unloads and disables the tree, then closes the connection. Only
// the goroutine running readLoop calls it.
func (s *session) close() {
	s.closeOnce.Do(func() {
		if s.tree.IsLoaded() {
			if err := s.tree.Unload(); err != nil {
				s.host.logger.Warn("unload on close", slog.Any("error", err))
			}
		}
		if err := s.host.engine.Disable(s.tree); err != nil {
			s.host.logger.Warn("disable on close", slog.Any("error", err))
		}
		s.interrupt()
	})
}

// interrupt sends a close frame and closes the connection, which ends
// readLoop. It does not touch the tree and is safe from any goroutine.
func (s *session) interrupt() {
	s.interruptOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}
