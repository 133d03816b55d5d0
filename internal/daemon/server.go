package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"braid/internal/rpc"
)

// connTimeout bounds one request/response exchange on the server side so
// a stuck client cannot pin a connection. Sync requests get a longer
// deadline once decoded: the cycle can spend minutes in git over the
// network, and the client waits rpc.SyncTimeout for the reply.
const connTimeout = 30 * time.Second

// connDeadline returns how long the connection may stay open once the
// request method is known.
func connDeadline(method string) time.Duration {
	if method == rpc.MethodSync {
		return rpc.SyncTimeout
	}
	return connTimeout
}

func (d *Daemon) serve(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
			case <-d.shutdownCh:
			default:
				d.logger.Printf("accept failed: %v", err)
			}
			return
		}
		go d.handleConn(ctx, conn)
	}
}

func (d *Daemon) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	var req rpc.Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		d.writeResponse(conn, rpc.Fail(rpc.CodeInternal, fmt.Sprintf("malformed request: %v", err)))
		return
	}
	conn.SetDeadline(time.Now().Add(connDeadline(req.Method)))
	resp := d.dispatch(ctx, &req)
	d.writeResponse(conn, resp)
	// Stop only after the reply is on the wire.
	if req.Method == rpc.MethodShutdown && resp.Status == "ok" {
		d.requestShutdown()
	}
}

func (d *Daemon) dispatch(ctx context.Context, req *rpc.Request) rpc.Response {
	// version and shutdown answer mismatched clients too: version so
	// they can report what is running, shutdown so an upgraded CLI can
	// replace a stale daemon.
	if req.Method == rpc.MethodVersion {
		return rpc.OK(rpc.VersionInfo{Version: d.Version})
	}
	if req.Method == rpc.MethodShutdown {
		return rpc.OK(map[string]string{"stopping": d.instanceID})
	}
	if req.Version != d.Version {
		return rpc.Fail(rpc.CodeVersionMismatch,
			fmt.Sprintf("daemon runs %s, client is %s", d.Version, req.Version))
	}

	switch req.Method {
	case rpc.MethodHealth:
		return rpc.OK(d.health())
	case rpc.MethodSync:
		if err := d.runSync(ctx); err != nil {
			return rpc.Fail(rpc.CodeInternal, err.Error())
		}
		return rpc.OK(d.health())
	default:
		return rpc.Fail(rpc.CodeUnknownMethod, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (d *Daemon) writeResponse(conn net.Conn, resp rpc.Response) {
	if err := json.NewEncoder(conn).Encode(&resp); err != nil {
		d.logger.Printf("write response failed: %v", err)
	}
}
