package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
)

var errClosed = errors.New("mpv ipc connection closed")

// message is any line mpv writes on the socket: a command reply or an event
type message struct {
	Event           string          `json:"event"`
	RequestID       *int64          `json:"request_id"`
	Error           string          `json:"error"`
	Data            json.RawMessage `json:"data"`
	Name            string          `json:"name"`
	Reason          string          `json:"reason"`
	PlaylistEntryID int64           `json:"playlist_entry_id"`
	FileError       string          `json:"file_error"`
}

type request struct {
	Command   any   `json:"command"`
	RequestID int64 `json:"request_id"`
}

type reply struct {
	data json.RawMessage
	err  error
}

// ipcClient speaks the mpv JSON IPC protocol: one JSON object per line,
// replies correlated with request ids, events delivered to onEvent from
// the reader goroutine in socket order.
type ipcClient struct {
	logger  *zap.Logger
	conn    net.Conn
	onEvent func(message)
	onClose func(error)

	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan reply
	closed  bool

	wg sync.WaitGroup
}

func newIPCClient(logger *zap.Logger, conn net.Conn, onEvent func(message), onClose func(error)) *ipcClient {
	c := &ipcClient{
		logger:  logger,
		conn:    conn,
		onEvent: onEvent,
		onClose: onClose,
		pending: make(map[int64]chan reply),
	}
	c.wg.Add(1)
	go c.readLoop()
	return c
}

// Command sends a command (positional []any or named map) and waits for its reply
func (c *ipcClient) Command(ctx context.Context, cmd any) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan reply, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	line, err := json.Marshal(request{Command: cmd, RequestID: id})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("failed to write command: %w", err)
	}

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *ipcClient) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Close shuts the connection and waits for the reader
func (c *ipcClient) Close() error {
	err := c.conn.Close()
	c.wg.Wait()
	return err
}

func (c *ipcClient) readLoop() {
	defer c.wg.Done()

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			c.logger.Warn("Discarding malformed mpv message", zap.Error(err))
			continue
		}

		if msg.Event != "" {
			c.onEvent(msg)
			continue
		}
		if msg.RequestID == nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*msg.RequestID]
		delete(c.pending, *msg.RequestID)
		c.mu.Unlock()
		if !ok {
			continue
		}

		if msg.Error != "" && msg.Error != "success" {
			ch <- reply{err: fmt.Errorf("mpv: %s", msg.Error)}
		} else {
			ch <- reply{data: msg.Data}
		}
	}

	err := scanner.Err()
	if err == nil {
		err = errClosed
	}

	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		ch <- reply{err: errClosed}
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if c.onClose != nil {
		c.onClose(err)
	}
}
