package handler

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/evetabi/predict/internal/api/middleware"
	"github.com/evetabi/predict/internal/contract"
	"github.com/gin-gonic/gin"
)

// RPCHandler accepts raw PREDICT calldata, so a wallet front-end built for
// the on-chain contract can talk to the ledger unchanged.
type RPCHandler struct {
	exec *contract.Executor
}

// NewRPCHandler creates an RPCHandler.
func NewRPCHandler(exec *contract.Executor) *RPCHandler {
	return &RPCHandler{exec: exec}
}

// Call godoc
// POST /api/rpc/call
// Body: {"data":"0x…"}; view methods only.
func (h *RPCHandler) Call(c *gin.Context) {
	var body struct {
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	data, err := hexutil.Decode(body.Data)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_CALLDATA", err.Error())
		return
	}

	out, err := h.exec.Call(c.Request.Context(), data)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"result": hexutil.Encode(out)})
}

// Send godoc
// POST /api/rpc/send [JWT]
// Body: {"data":"0x…","value":"0x…"|"1000000000000000000"}; value is in wei.
func (h *RPCHandler) Send(c *gin.Context) {
	from, _ := middleware.GetAddress(c)

	var body struct {
		Data  string `json:"data" binding:"required"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	data, err := hexutil.Decode(body.Data)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_CALLDATA", err.Error())
		return
	}
	value, err := parseWei(body.Value)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_VALUE", err.Error())
		return
	}

	rcpt, err := h.exec.Transact(c.Request.Context(), from, value, data)
	if err != nil {
		respondLedgerError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"receipt": rcpt,
		"result":  hexutil.Encode(rcpt.Return),
	})
}

// parseWei accepts an empty string (zero), a 0x-prefixed hex quantity or a
// base-10 integer.
func parseWei(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return new(big.Int), nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		return hexutil.DecodeBig(s)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("value %q is not a non-negative wei amount", s)
	}
	return v, nil
}
