// Package contract exposes the ledger through the PREDICT contract ABI so an
// EVM wallet client can talk to the service with the same calldata it would
// send on-chain.
package contract

// PredictABI is the ABI of the PREDICT market contract.
const PredictABI = `[
  {"type":"function","name":"createMarket","inputs":[{"name":"question","type":"string"},{"name":"deadline","type":"uint256"},{"name":"resolver","type":"address"}],"outputs":[{"name":"marketId","type":"uint256"}],"stateMutability":"nonpayable"},
  {"type":"function","name":"placeBet","inputs":[{"name":"marketId","type":"uint256"},{"name":"isYes","type":"bool"}],"outputs":[],"stateMutability":"payable"},
  {"type":"function","name":"resolveMarket","inputs":[{"name":"marketId","type":"uint256"},{"name":"outcome","type":"uint8"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"claimWinnings","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"nextMarketId","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getMarketPools","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[{"name":"yesPool","type":"uint256"},{"name":"noPool","type":"uint256"},{"name":"totalPool","type":"uint256"},{"name":"outcome","type":"uint8"},{"name":"resolved","type":"bool"},{"name":"deadline","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getMarketMeta","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[{"name":"question","type":"string"},{"name":"creator","type":"address"},{"name":"resolver","type":"address"},{"name":"createdAt","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getOdds","inputs":[{"name":"marketId","type":"uint256"}],"outputs":[{"name":"yesBps","type":"uint256"},{"name":"noBps","type":"uint256"}],"stateMutability":"view"},
  {"type":"function","name":"getUserPosition","inputs":[{"name":"marketId","type":"uint256"},{"name":"user","type":"address"}],"outputs":[{"name":"yesAmount","type":"uint256"},{"name":"noAmount","type":"uint256"},{"name":"claimed","type":"bool"}],"stateMutability":"view"},
  {"type":"function","name":"getUserMarkets","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view"},
  {"type":"function","name":"getCreatedMarkets","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view"},
  {"type":"function","name":"calculatePayout","inputs":[{"name":"marketId","type":"uint256"},{"name":"isYes","type":"bool"},{"name":"betAmount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

// Method names.
const (
	MethodCreateMarket      = "createMarket"
	MethodPlaceBet          = "placeBet"
	MethodResolveMarket     = "resolveMarket"
	MethodClaimWinnings     = "claimWinnings"
	MethodNextMarketID      = "nextMarketId"
	MethodGetMarketPools    = "getMarketPools"
	MethodGetMarketMeta     = "getMarketMeta"
	MethodGetOdds           = "getOdds"
	MethodGetUserPosition   = "getUserPosition"
	MethodGetUserMarkets    = "getUserMarkets"
	MethodGetCreatedMarkets = "getCreatedMarkets"
	MethodCalculatePayout   = "calculatePayout"
)
