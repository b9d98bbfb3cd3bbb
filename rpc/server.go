// Package rpc exposes a node over gRPC: proposal endorsement, notarization,
// finality delivery and committed-state retrieval. Payloads are the canonical
// wire documents; the service is hand-rolled over protobuf wrapper types so
// no codegen toolchain is needed.
package rpc

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/txfin/tx"
)

// Backend is the node behavior the server exposes. flow.Node satisfies it.
type Backend interface {
	Propose(ctx context.Context, sp *tx.SignedProposal) (tx.PartialSignature, error)
	Notarize(ctx context.Context, sp *tx.SignedProposal) (tx.Certificate, error)
	Finalize(ctx context.Context, f *tx.FinalizedTransaction) error
	Head(ctx context.Context, linearID uuid.UUID) (tx.StateBody, error)
	State(ctx context.Context, ref tx.StateRef) (tx.StateBody, error)
}

// Server exposes a Backend over the Node gRPC service.
type Server struct {
	UnimplementedNodeServer
	Backend Backend
}

func (s *Server) Propose(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	sp, err := tx.DecodeSignedProposal(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	ps, err := s.Backend.Propose(ctx, sp)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(tx.FormatPartialSignature(ps)), nil
}

func (s *Server) Notarize(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	sp, err := tx.DecodeSignedProposal(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	cert, err := s.Backend.Notarize(ctx, sp)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.String(tx.FormatCertificate(cert)), nil
}

func (s *Server) Finalize(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	f, err := tx.DecodeFinalized(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.Backend.Finalize(ctx, f); err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(true), nil
}

func (s *Server) FetchHead(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	linearID, err := uuid.Parse(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed linear identifier")
	}
	body, err := s.Backend.Head(ctx, linearID)
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := tx.EncodeState(body)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) FetchState(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	if s == nil || s.Backend == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing backend")
	}
	ref, err := tx.ParseStateRef(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	body, err := s.Backend.State(ctx, ref)
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := tx.EncodeState(body)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(b), nil
}
