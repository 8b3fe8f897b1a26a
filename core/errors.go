package core

import (
	"github.com/cpacia/multisig/core/coreiface"
	"github.com/cpacia/multisig/keys"
	"github.com/cpacia/multisig/models"
	"github.com/cpacia/multisig/multisig"
	"github.com/cpacia/multisig/oracle"
	"github.com/cpacia/multisig/txbuilder"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"
)

var categories = []error{
	coreiface.ErrInternalServer,
	coreiface.ErrBadRequest,
	coreiface.ErrNotFound,
	coreiface.ErrConflict,
	coreiface.ErrBadGateway,
	coreiface.ErrNoWallet,
	coreiface.ErrWalletExists,
	coreiface.ErrLocked,
}

var notFoundErrors = []error{
	models.ErrSpendNotFound,
	oracle.ErrNotFound,
}

var conflictErrors = []error{
	txbuilder.ErrDuplicateSigner,
	txbuilder.ErrClosed,
}

var badGatewayErrors = []error{
	oracle.ErrRejected,
	oracle.ErrDecoding,
}

var badRequestErrors = []error{
	txbuilder.ErrCommitmentMismatch,
	txbuilder.ErrInsufficientFunds,
	txbuilder.ErrInvalidAmount,
	txbuilder.ErrFeeTooLow,
	txbuilder.ErrInvalidSignature,
	txbuilder.ErrSignatureOrder,
	txbuilder.ErrInsufficientSignatures,
	txbuilder.ErrDecoding,
	keys.ErrDecoding,
	keys.ErrKeyCount,
	multisig.ErrPolicy,
}

// classify tags err with the coreiface category matching the package
// sentinel it wraps. Errors which already carry a category, or wrap no
// known sentinel, are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range categories {
		if errors.Is(err, kind) {
			return err
		}
	}
	if gorm.IsRecordNotFoundError(err) {
		return coreiface.Wrap(coreiface.ErrNotFound, err)
	}
	for _, group := range []struct {
		kind error
		errs []error
	}{
		{coreiface.ErrNotFound, notFoundErrors},
		{coreiface.ErrConflict, conflictErrors},
		{coreiface.ErrBadGateway, badGatewayErrors},
		{coreiface.ErrBadRequest, badRequestErrors},
	} {
		for _, e := range group.errs {
			if errors.Is(err, e) {
				return coreiface.Wrap(group.kind, err)
			}
		}
	}
	return err
}
