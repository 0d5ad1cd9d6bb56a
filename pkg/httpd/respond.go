package httpd

import (
	"fmt"
	"net"
	"time"
)

const serverName = "snooze"

// drainTimeout bounds how long the graceful close will spend reading
// leftover inbound bytes before giving up and closing anyway.
const drainTimeout = 200 * time.Millisecond

// WriteResponse sends a complete HTTP/1.1 200 response carrying body
// verbatim. Content-Length is the exact byte length of the body and
// every response asks the client to close. The connection is left open
// so the caller can measure elapsed time before closing it.
func WriteResponse(conn net.Conn, body []byte) error {
	header := fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"Server: %s\r\n"+
		"Content-Type: text/html; charset=utf-8\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n"+
		"\r\n", serverName, len(body))

	if err := sendAll(conn, []byte(header)); err != nil {
		return fmt.Errorf("send header: %w", err)
	}
	if err := sendAll(conn, body); err != nil {
		return fmt.Errorf("send body: %w", err)
	}
	return nil
}

// sendAll keeps writing until the whole buffer has been sent, carrying
// on over partial writes. An error with no forward progress is fatal.
func sendAll(conn net.Conn, buf []byte) error {
	for sent := 0; sent < len(buf); {
		n, err := conn.Write(buf[sent:])
		sent += n
		if err != nil {
			return err
		}
	}
	return nil
}

type closeWriter interface {
	CloseWrite() error
}

// GracefulClose half-closes the write side, drains any unread inbound
// bytes and then closes the connection. Closing with input still queued
// resets the connection on some network stacks, which clients then
// report as a content length mismatch even though the whole body was
// sent.
func GracefulClose(conn net.Conn) {
	if cw, ok := conn.(closeWriter); ok {
		cw.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(drainTimeout))
	buf := make([]byte, 256)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			break
		}
	}

	conn.Close()
}
