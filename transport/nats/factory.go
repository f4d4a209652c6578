package nats

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"

	"github.com/flarexio/ragblade"
	"github.com/flarexio/ragblade/scoring"
)

// RequestTimeout bounds a request whose context carries no deadline.
// Generation and ingestion routinely outlast nats.DefaultTimeout.
const RequestTimeout = 2 * time.Minute

func MakeEndpoints(nc *nats.Conn, prefix string) *ragblade.EndpointSet {
	return &ragblade.EndpointSet{
		Query:  QueryEndpoint(nc, prefix+".query"),
		Search: SearchEndpoint(nc, prefix+".search"),
		Ingest: IngestEndpoint(nc, prefix+".ingest"),
		Stats:  StatsEndpoint(nc, prefix+".stats"),
	}
}

func QueryEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragblade.QueryRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		var resp *ragblade.QueryResponse
		if err := call(ctx, nc, topic, &req, &resp); err != nil {
			return nil, err
		}

		return resp, nil
	}
}

func SearchEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragblade.SearchRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		var contexts []scoring.RetrievedContext
		if err := call(ctx, nc, topic, &req, &contexts); err != nil {
			return nil, err
		}

		return contexts, nil
	}
}

func IngestEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(ragblade.IngestRequest)
		if !ok {
			return nil, errors.New("invalid request")
		}

		var report *ragblade.IngestReport
		if err := call(ctx, nc, topic, &req, &report); err != nil {
			return nil, err
		}

		return report, nil
	}
}

func StatsEndpoint(nc *nats.Conn, topic string) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		var stats *ragblade.Stats
		if err := call(ctx, nc, topic, nil, &stats); err != nil {
			return nil, err
		}

		return stats, nil
	}
}

func call(ctx context.Context, nc *nats.Conn, topic string, in any, out any) error {
	var data []byte
	if in != nil {
		bs, err := json.Marshal(in)
		if err != nil {
			return err
		}

		data = bs
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, RequestTimeout)
		defer cancel()
	}

	msg, err := nc.RequestWithContext(ctx, topic, data)
	if err != nil {
		return err
	}

	if err := Error(msg); err != nil {
		return err
	}

	return json.Unmarshal(msg.Data, out)
}

func Error(msg *nats.Msg) error {
	if msg == nil {
		return errors.New("nil message")
	}

	code := msg.Header.Get(micro.ErrorCodeHeader)
	if code == "" {
		return nil
	}

	description := msg.Header.Get(micro.ErrorHeader)
	if description == "" {
		description = "unknown error"
	}

	return errors.New(code + ":" + description)
}
