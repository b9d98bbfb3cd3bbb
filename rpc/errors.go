package rpc

import (
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/txfin/tx"
)

// Status messages carry "<Kind>/<RuleID>: <message>" so the structured error
// taxonomy survives the wire in both directions.

func codeForKind(kind tx.Kind) codes.Code {
	switch kind {
	case tx.KindDoubleSpend:
		return codes.Aborted
	case tx.KindSignature:
		return codes.FailedPrecondition
	case tx.KindUnresolved:
		return codes.NotFound
	case tx.KindMalformed, tx.KindTypeMismatch, tx.KindViolation, tx.KindWire:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var e *tx.Error
	if !errors.As(err, &e) {
		return status.Error(codes.Internal, err.Error())
	}
	return status.Error(codeForKind(e.Kind), string(e.Kind)+"/"+e.RuleID+": "+e.Message)
}

func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	head, msg, found := strings.Cut(st.Message(), ": ")
	if !found {
		return err
	}
	kindStr, ruleID, found := strings.Cut(head, "/")
	if !found || !knownKind(tx.Kind(kindStr)) {
		return err
	}
	return tx.NewError(tx.Kind(kindStr), ruleID, msg)
}

func knownKind(kind tx.Kind) bool {
	switch kind {
	case tx.KindMalformed, tx.KindUnresolved, tx.KindTypeMismatch, tx.KindViolation,
		tx.KindSignature, tx.KindDoubleSpend, tx.KindWire, tx.KindInternal:
		return true
	}
	return false
}
