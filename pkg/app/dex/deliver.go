package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperspot/pkg/abci"
	"github.com/uhyunpark/hyperspot/pkg/app/core/assets"
	"github.com/uhyunpark/hyperspot/pkg/app/core/market"
	"github.com/uhyunpark/hyperspot/pkg/app/core/spot"
	"github.com/uhyunpark/hyperspot/pkg/app/core/transaction"
)

// deliver runs one transaction. Once the signature checks out the nonce is
// consumed, whether or not the engine accepts the operation.
func (a *App) deliver(raw []byte) abci.TxResult {
	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		return a.failed(nil, fmt.Errorf("%w: %v", ErrInvalidTx, err))
	}
	sender, err := a.verifier.Verify(tx)
	if err != nil {
		return a.failed(tx, err)
	}
	if err := a.nonces.consume(sender, tx.Nonce); err != nil {
		return a.failed(tx, err)
	}
	if err := a.execute(sender, tx); err != nil {
		return a.failed(tx, err)
	}
	return abci.TxResult{}
}

func (a *App) failed(tx *transaction.SignedTransaction, err error) abci.TxResult {
	fields := []zap.Field{zap.Error(err)}
	if tx != nil {
		fields = append(fields, zap.String("type", string(tx.Type)), zap.String("from", tx.From), zap.Uint64("nonce", tx.Nonce))
	}
	a.logger.Debug("tx rejected", fields...)
	return abci.TxResult{Code: resultCode(err), Log: err.Error()}
}

func (a *App) execute(sender common.Address, tx *transaction.SignedTransaction) error {
	switch tx.Type {
	case transaction.TxPlace:
		var p transaction.PlacePayload
		if err := decode(tx, &p); err != nil {
			return err
		}
		pair, err := parsePair(p.Pair)
		if err != nil {
			return err
		}
		side, err := spot.ParseSide(p.Side)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		_, err = a.engine.PlaceOrder(sender, pair, side, p.Amount, p.Price, p.Channel)
		return err

	case transaction.TxCancel:
		var p transaction.CancelPayload
		if err := decode(tx, &p); err != nil {
			return err
		}
		pair, err := parsePair(p.Pair)
		if err != nil {
			return err
		}
		owner := sender
		if p.Account != "" {
			if owner, err = parseAddress(p.Account); err != nil {
				return err
			}
		}
		return a.engine.CancelOrder(sender, spot.OrderID{Account: owner, Pair: pair, Seq: p.Seq})

	case transaction.TxFill:
		if sender != a.matcher {
			return ErrNotMatcher
		}
		var p transaction.FillPayload
		if err := decode(tx, &p); err != nil {
			return err
		}
		req, err := fillRequest(p)
		if err != nil {
			return err
		}
		_, err = a.engine.FillOrder(req)
		return err
	}

	if sender != a.admin {
		return ErrNotAdmin
	}
	switch tx.Type {
	case transaction.TxDeposit:
		var p transaction.DepositPayload
		if err := decode(tx, &p); err != nil {
			return err
		}
		account, err := parseAddress(p.Account)
		if err != nil {
			return err
		}
		return a.engine.Deposit(account, assets.Token(p.Token), p.Amount)

	case transaction.TxAddPair:
		var p transaction.AddPairPayload
		if err := decode(tx, &p); err != nil {
			return err
		}
		pair, err := parsePair(p.Pair)
		if err != nil {
			return err
		}
		_, err = a.engine.AddPair(pair, p.Precision)
		return err

	case transaction.TxSetOrderFee, transaction.TxSetAveragePriceWindow:
		var p transaction.ValuePayload
		if err := decode(tx, &p); err != nil {
			return err
		}
		if tx.Type == transaction.TxSetOrderFee {
			return a.engine.SetOrderFee(p.Value)
		}
		return a.engine.SetAveragePriceWindow(p.Value)

	case transaction.TxRegisterChannel:
		var p transaction.RegisterChannelPayload
		if err := decode(tx, &p); err != nil {
			return err
		}
		account, err := parseAddress(p.Account)
		if err != nil {
			return err
		}
		return a.engine.RegisterChannel(p.Name, account)
	}
	return fmt.Errorf("%w: unsupported type %s", ErrInvalidTx, tx.Type)
}

func decode(tx *transaction.SignedTransaction, v any) error {
	if err := tx.DecodePayload(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func parsePair(s string) (market.Pair, error) {
	p, err := market.ParsePair(s)
	if err != nil {
		return market.Pair{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: bad address %q", ErrInvalidPayload, s)
	}
	return common.HexToAddress(s), nil
}

func fillRequest(p transaction.FillPayload) (spot.FillRequest, error) {
	pair, err := parsePair(p.Pair)
	if err != nil {
		return spot.FillRequest{}, err
	}
	maker, err := parseAddress(p.Maker)
	if err != nil {
		return spot.FillRequest{}, err
	}
	taker, err := parseAddress(p.Taker)
	if err != nil {
		return spot.FillRequest{}, err
	}
	return spot.FillRequest{
		Pair:     pair,
		Maker:    maker,
		MakerSeq: p.MakerSeq,
		Taker:    taker,
		TakerSeq: p.TakerSeq,
		Price:    p.Price,
		Amount:   p.Amount,
		MakerFee: p.MakerFee,
		TakerFee: p.TakerFee,
	}, nil
}
