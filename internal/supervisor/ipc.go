package supervisor

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/FyraLabs/readymade/internal/errs"
)

// StatusMessage is the single message shape carried over the IPC channel.
type StatusMessage struct {
	Status string `json:"status"`
}

// channel is a one-shot named IPC server: a Unix domain socket whose path
// embeds a random channel id, accepting exactly one client connection.
type channel struct {
	id       string
	listener net.Listener
}

// newChannel creates the socket and returns its handle; ID() is the
// channel id passed to the child as --non-interactive <channel-id>.
func newChannel() (*channel, error) {
	id := uuid.NewString()
	path := filepath.Join(os.TempDir(), "readymade-ipc-"+id+".sock")
	_ = os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "creating IPC socket %s", path)
	}
	return &channel{id: id, listener: l}, nil
}

func (c *channel) ID() string { return c.id }

func (c *channel) Close() {
	c.listener.Close()
	_ = os.Remove(c.listener.Addr().String())
}

// Serve accepts exactly one client connection and forwards each received
// Status message to sink until the client disconnects. Disconnection is a
// normal termination signal, not an error.
func (c *channel) Serve(sink func(status string)) error {
	conn, err := c.listener.Accept()
	if err != nil {
		return errs.Wrap(errs.IO, err, "accepting IPC client")
	}
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg StatusMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		sink(msg.Status)
	}
	return nil
}

// Client is the child side of a channel: it dials the socket the
// supervisor created and writes newline-delimited StatusMessages.
type Client struct {
	conn net.Conn
}

// DialChannel connects to the channel id passed to this process as the
// --non-interactive argument. Call under --non-interactive only; the
// socket path is a temp-dir convention shared with newChannel.
func DialChannel(id string) (*Client, error) {
	path := filepath.Join(os.TempDir(), "readymade-ipc-"+id+".sock")
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, err, "connecting to IPC channel %s", id)
	}
	return &Client{conn: conn}, nil
}

// Send writes one status message. Safe to call repeatedly; errors are
// deliberately swallowed by callers that treat status reporting as
// best-effort (a broken pipe here must not abort the install).
func (c *Client) Send(status string) error {
	data, err := json.Marshal(StatusMessage{Status: status})
	if err != nil {
		return errs.Wrap(errs.IO, err, "marshaling status message")
	}
	_, err = c.conn.Write(append(data, '\n'))
	return err
}

func (c *Client) Close() error { return c.conn.Close() }
