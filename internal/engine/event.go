package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"musdScope/internal/calc"
	"musdScope/internal/model"
	"musdScope/internal/store"
)

// event is the per-event handler context.
type event struct {
	ctx      context.Context
	tx       *store.Tx
	stats    *model.ProtocolStats
	rec      model.TypedEventRecord
	newPools []string
}

func (ev *event) payload(dst interface{}) error {
	if err := ev.rec.Payload(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func (ev *event) id() string {
	return ev.rec.EventID()
}

// ensureUser creates the user record on first reference.
func (ev *event) ensureUser(id string) error {
	u, found, err := ev.tx.LoadUser(ev.ctx, id)
	if err != nil || found {
		return err
	}
	return ev.tx.SaveUser(u)
}

func parseAddress(field, s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %s is not an address: %q", ErrMalformed, field, s)
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

func parseAmount(field, s string) (*big.Int, error) {
	v, ok := calc.ParseAmount(s)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an unsigned integer: %q", ErrMalformed, field, s)
	}
	return v, nil
}

var errInvalidRead = errors.New("read returned no value")
