package tokens

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"swapbook/apps/swapbook/internal/config"
)

// Token represents an ERC-20 token with its properties
type Token struct {
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	Address  common.Address `json:"address"`
	Decimals int            `json:"decimals"`
}

// Registry holds the known tokens of one network
type Registry struct {
	tokens    map[string]*Token
	byAddress map[common.Address]*Token
}

func NewRegistry(tokens []*Token) *Registry {
	registry := &Registry{
		tokens:    make(map[string]*Token),
		byAddress: make(map[common.Address]*Token),
	}
	for _, token := range tokens {
		registry.tokens[token.Symbol] = token
		registry.byAddress[token.Address] = token
	}
	return registry
}

// RegistryFromConfig builds a registry from the network's configured token
// list. Tokens with no decimals configured default to 18.
func RegistryFromConfig(cfgs []config.TokenConfig) *Registry {
	list := make([]*Token, 0, len(cfgs))
	for _, c := range cfgs {
		decimals := c.Decimals
		if decimals <= 0 {
			decimals = 18
		}
		list = append(list, &Token{
			Symbol:   c.Symbol,
			Name:     c.Name,
			Address:  common.HexToAddress(c.Address),
			Decimals: decimals,
		})
	}
	return NewRegistry(list)
}

func (r *Registry) GetBySymbol(symbol string) (*Token, bool) {
	token, ok := r.tokens[symbol]
	return token, ok
}

func (r *Registry) GetByAddress(addr common.Address) (*Token, bool) {
	token, ok := r.byAddress[addr]
	return token, ok
}

func (r *Registry) GetAllAsArray() []*Token {
	out := make([]*Token, 0, len(r.tokens))
	for _, token := range r.tokens {
		out = append(out, token)
	}
	return out
}

// Decimals returns the decimals of the token at addr, defaulting to 18 when
// the token is unknown.
func (r *Registry) Decimals(addr common.Address) int {
	if token, ok := r.byAddress[addr]; ok {
		return token.Decimals
	}
	return 18
}

// ToDecimalAmount converts a base-unit integer amount to a decimal string.
func ToDecimalAmount(amount *big.Int, decimals int) string {
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	wholePart := new(big.Int).Div(amount, divisor)
	remainder := new(big.Int).Mod(amount, divisor)

	if remainder.Cmp(big.NewInt(0)) == 0 {
		return wholePart.String()
	}

	// Pad remainder with leading zeros to match decimal places
	remainderStr := remainder.String()
	for len(remainderStr) < decimals {
		remainderStr = "0" + remainderStr
	}
	remainderStr = strings.TrimRight(remainderStr, "0")
	if remainderStr == "" {
		return wholePart.String()
	}
	return wholePart.String() + "." + remainderStr
}
