// Package client holds the gRPC side of the CLI: a health probe used to
// tell whether the server is reachable.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type HealthClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      healthpb.HealthClient
}

// NewHealthClient connects lazily; the first Ping dials. Extra options are
// appended after the insecure transport credentials.
func NewHealthClient(endpointURL string, opts ...grpc.DialOption) (*HealthClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}

	return &HealthClient{
		endpointURL: endpointURL,
		conn:        conn,
		client:      healthpb.NewHealthClient(conn),
	}, nil
}

// Ping succeeds only when the server reports SERVING.
func (c *HealthClient) Ping(ctx context.Context) error {
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%s is %s", c.endpointURL, resp.GetStatus())
	}
	return nil
}

func (c *HealthClient) Close() error {
	return c.conn.Close()
}
