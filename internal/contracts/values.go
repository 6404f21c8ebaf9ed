package contracts

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func argAddress(args map[string]interface{}, name string) (string, error) {
	v, err := arg(args, name)
	if err != nil {
		return "", err
	}
	addr, err := asAddress(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return strings.ToLower(addr.Hex()), nil
}

func argAmount(args map[string]interface{}, name string) (string, error) {
	v, err := arg(args, name)
	if err != nil {
		return "", err
	}
	n, err := asBigInt(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return n.String(), nil
}

func argBytes32(args map[string]interface{}, name string) (string, error) {
	v, err := arg(args, name)
	if err != nil {
		return "", err
	}
	switch b := v.(type) {
	case [32]byte:
		return hexutil.Encode(b[:]), nil
	case common.Hash:
		return strings.ToLower(b.Hex()), nil
	default:
		return "", fmt.Errorf("%s: unsupported bytes32 type %T", name, v)
	}
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
