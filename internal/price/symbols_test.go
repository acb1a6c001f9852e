package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSymbolMap_Resolve(t *testing.T) {
	m := NewSymbolMap(map[string]string{"wif": "dogwifcoin", "BTC": "bitcoin-override"})

	id, ok := m.Resolve("btc")
	assert.True(t, ok)
	assert.Equal(t, "bitcoin-override", id)

	id, ok = m.Resolve("WIF")
	assert.True(t, ok)
	assert.Equal(t, "dogwifcoin", id)

	_, ok = m.Resolve("NOTACOIN")
	assert.False(t, ok)

	assert.Equal(t, "bitcoin", DefaultSymbols["BTC"], "defaults must not be mutated")
}
