package contract

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/evetabi/predict/internal/domain"
)

// Codec packs and unpacks PREDICT calldata and return data.
type Codec struct {
	abi abi.ABI
}

// NewCodec parses PredictABI.
func NewCodec() (*Codec, error) {
	parsed, err := abi.JSON(strings.NewReader(PredictABI))
	if err != nil {
		return nil, fmt.Errorf("contract.NewCodec: %w", err)
	}
	return &Codec{abi: parsed}, nil
}

// Pack builds calldata (selector + arguments) for method.
func (c *Codec) Pack(method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contract.Pack %s: %w", method, err)
	}
	return data, nil
}

// Decode resolves the 4-byte selector of data and unpacks its arguments.
func (c *Codec) Decode(data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("contract.Decode: calldata too short: %w", domain.ErrUnknownMethod)
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("contract.Decode: selector %x: %w", data[:4], domain.ErrUnknownMethod)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("contract.Decode %s: %w: %v", method.Name, domain.ErrValidation, err)
	}
	return method, args, nil
}

// EncodeOutputs ABI-encodes the return values of method.
func (c *Codec) EncodeOutputs(method string, values ...interface{}) ([]byte, error) {
	m, ok := c.abi.Methods[method]
	if !ok {
		return nil, fmt.Errorf("contract.EncodeOutputs %s: %w", method, domain.ErrUnknownMethod)
	}
	out, err := m.Outputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("contract.EncodeOutputs %s: %w", method, err)
	}
	return out, nil
}

// DecodeOutputs unpacks return data produced for method.
func (c *Codec) DecodeOutputs(method string, data []byte) ([]interface{}, error) {
	out, err := c.abi.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("contract.DecodeOutputs %s: %w", method, err)
	}
	return out, nil
}
