package anchor

import (
	"testing"

	"github.com/educhainverify/credential-service/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	hashAnchorer, _ := newTestHashAnchorer(t)

	set, err := NewSet(interfaces.HashAnchor, hashAnchorer)
	require.NoError(t, err)
	assert.Equal(t, interfaces.HashAnchor, set.Default())
	assert.Equal(t, []interfaces.AnchorType{interfaces.HashAnchor}, set.Types())

	a, err := set.Get("")
	require.NoError(t, err)
	assert.Equal(t, interfaces.HashAnchor, a.Type())

	_, err = set.Get(interfaces.EthereumAnchor)
	assert.ErrorIs(t, err, interfaces.ErrUnknownAnchor)

	_, err = NewSet(interfaces.EthereumAnchor, hashAnchorer)
	assert.ErrorIs(t, err, interfaces.ErrUnknownAnchor)
}
