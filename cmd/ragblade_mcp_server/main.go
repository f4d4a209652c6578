package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/urfave/cli/v3"

	"github.com/flarexio/ragblade"

	mcpE "github.com/flarexio/ragblade/mcp"
	natsT "github.com/flarexio/ragblade/transport/nats"
)

type StdioMCPServer interface {
	AddEndpoint(method mcp.MCPMethod, endpoint mcpE.MCPEndpoint) error
	Listen(ctx context.Context) error
}

func NewStdioMCPServer(in io.Reader, out io.Writer) StdioMCPServer {
	return &stdioMCPServer{
		in:        in,
		out:       out,
		endpoints: make(map[mcp.MCPMethod]mcpE.MCPEndpoint),
	}
}

type stdioMCPServer struct {
	in        io.Reader
	out       io.Writer
	endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint
}

func (s *stdioMCPServer) Listen(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lines := make(chan string)
	errs := make(chan error, 1)

	go func(ctx context.Context, lines chan<- string, errs chan<- error) {
		defer close(lines)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- err
		}
	}(ctx, lines, errs)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errs:
			if errors.Is(err, io.EOF) {
				return nil
			}

			return err

		case line, ok := <-lines:
			if !ok {
				return nil
			}

			if line == "" {
				continue
			}

			var req mcpE.JSONRPCRequest
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				continue
			}

			// notifications carry no id and expect no reply
			if req.ID.IsNil() {
				continue
			}

			var resp mcp.JSONRPCMessage

			endpoint, ok := s.endpoints[req.Method]
			if ok {
				resp = endpoint(ctx, req)
			} else {
				resp = mcpE.MethodNotFound(req)
			}

			bs, err := json.Marshal(resp)
			if err != nil {
				continue
			}

			fmt.Fprintf(s.out, "%s\n", bs)
		}
	}
}

func (srv *stdioMCPServer) AddEndpoint(method mcp.MCPMethod, endpoint mcpE.MCPEndpoint) error {
	_, ok := srv.endpoints[method]
	if ok {
		return errors.New("endpoint already exists")
	}

	srv.endpoints[method] = endpoint
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:  "ragblade_mcp_server",
		Usage: "RAGBlade MCP Server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL",
				Value:   "wss://nats.flarex.io",
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.StringFlag{
				Name:    "nats-creds",
				Usage:   "NATS user credentials file",
				Sources: cli.EnvVars("NATS_CREDS"),
			},
			&cli.StringFlag{
				Name:     "edge-id",
				Usage:    "Edge ID for connecting to the RAGBlade service",
				Required: true,
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	edgeID := cmd.String("edge-id")
	natsURL := cmd.String("nats")

	opts := []nats.Option{
		nats.Name("RAGBlade MCP Server - " + edgeID),
	}

	if natsCreds := cmd.String("nats-creds"); natsCreds != "" {
		opts = append(opts, nats.UserCredentials(natsCreds))
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return err
	}
	defer nc.Drain()

	topic := fmt.Sprintf("edges.%s.ragblade", edgeID)
	endpoints := natsT.MakeEndpoints(nc, topic)

	var svc ragblade.Service
	svc = ragblade.ProxyMiddleware(endpoints)(svc)

	s := NewStdioMCPServer(os.Stdin, os.Stdout)
	s.AddEndpoint(mcp.MethodInitialize, mcpE.InitializeEndpoint(svc))
	s.AddEndpoint(mcp.MethodPing, mcpE.PingEndpoint(svc))
	s.AddEndpoint(mcp.MethodToolsList, mcpE.ListToolsEndpoint(svc))
	s.AddEndpoint(mcp.MethodToolsCall, mcpE.CallToolEndpoint(svc))

	done := make(chan error, 1)
	go func() {
		done <- s.Listen(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-quit:
		cancel()
		return nil

	case err := <-done:
		return err
	}
}
