package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Role identifies which side of the router wire protocol a connection
// plays once the handshake completes.
type Role string

const (
	RoleSubscriber Role = "subscriber"
	RolePublisher  Role = "publisher"
)

type helloMsg struct {
	Role Role `json:"role"`
}

// Handshake reads the one-line newline-terminated JSON hello a client
// sends on connect ({"role":"subscriber"} or {"role":"publisher"}) and
// returns the requested Role. Unlike the teacher's fixed CANNELLONIv1
// hello string, the router's handshake is asymmetric — the client alone
// declares its role, the server never replies — so only a reader
// goroutine is needed.
func Handshake(ctx context.Context, c net.Conn, timeout time.Duration) (Role, error) {
	if err := c.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}
	defer c.SetReadDeadline(time.Time{})

	type result struct {
		role Role
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(c).ReadString('\n')
		if err != nil {
			resCh <- result{err: err}
			return
		}
		var hello helloMsg
		if err := json.Unmarshal([]byte(line), &hello); err != nil {
			resCh <- result{err: fmt.Errorf("bad hello: %w", err)}
			return
		}
		switch hello.Role {
		case RoleSubscriber, RolePublisher:
			resCh <- result{role: hello.Role}
		default:
			resCh <- result{err: fmt.Errorf("bad hello: unknown role %q", hello.Role)}
		}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resCh:
		if res.err != nil {
			return "", fmt.Errorf("handshake: %w", res.err)
		}
		return res.role, nil
	}
}
