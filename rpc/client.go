package rpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/txfin/tx"
)

// Client talks to one remote node. It satisfies the peer surface the flows
// need (Propose/Notarize/Finalize) and the resolver's Fetcher.
type Client struct {
	cc     *grpc.ClientConn
	client NodeClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int

	// RPCTimeout applies per call on the returned client when non-zero.
	RPCTimeout time.Duration
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewNodeClient(cc), Timeout: opts.RPCTimeout}, nil
}

// NewClient wraps an existing connection, e.g. a bufconn in tests.
func NewClient(cc *grpc.ClientConn) *Client {
	return &Client{cc: cc, client: NewNodeClient(cc)}
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Propose(ctx context.Context, sp *tx.SignedProposal) (tx.PartialSignature, error) {
	b, err := tx.EncodeSignedProposal(sp)
	if err != nil {
		return tx.PartialSignature{}, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Propose(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return tx.PartialSignature{}, fromStatus(err)
	}
	return tx.ParsePartialSignature(reply.GetValue())
}

func (c *Client) Notarize(ctx context.Context, sp *tx.SignedProposal) (tx.Certificate, error) {
	b, err := tx.EncodeSignedProposal(sp)
	if err != nil {
		return tx.Certificate{}, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Notarize(ctx, wrapperspb.Bytes(b))
	if err != nil {
		return tx.Certificate{}, fromStatus(err)
	}
	return tx.ParseCertificate(reply.GetValue())
}

func (c *Client) Finalize(ctx context.Context, f *tx.FinalizedTransaction) error {
	b, err := tx.EncodeFinalized(f)
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	if _, err := c.client.Finalize(ctx, wrapperspb.Bytes(b)); err != nil {
		return fromStatus(err)
	}
	return nil
}

// FetchHead implements resolve.Fetcher.
func (c *Client) FetchHead(ctx context.Context, linearID uuid.UUID) (tx.StateBody, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.FetchHead(ctx, wrapperspb.String(linearID.String()))
	if err != nil {
		return tx.StateBody{}, fromStatus(err)
	}
	body, err := tx.DecodeState(reply.GetValue())
	if err != nil {
		return tx.StateBody{}, err
	}
	if body.LinearID != linearID {
		return tx.StateBody{}, tx.NewError(tx.KindInternal, "TXF-RPC-101",
			"remote served lineage "+body.LinearID.String()+" for "+linearID.String())
	}
	return body, nil
}

// FetchState implements resolve.Fetcher.
func (c *Client) FetchState(ctx context.Context, ref tx.StateRef) (tx.StateBody, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.FetchState(ctx, wrapperspb.String(ref.String()))
	if err != nil {
		return tx.StateBody{}, fromStatus(err)
	}
	body, err := tx.DecodeState(reply.GetValue())
	if err != nil {
		return tx.StateBody{}, err
	}
	if body.Ref() != ref {
		return tx.StateBody{}, tx.NewError(tx.KindInternal, "TXF-RPC-102",
			"remote served "+body.Ref().String()+" for "+ref.String())
	}
	return body, nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
