package dao

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	mcommon "github.com/rqzrqh/multisig_coordinator/common"
)

func TestAddSignatureRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	d := NewDao(setupTestDB(t))
	account, signer := addr("0xa1"), addr("0x01")

	require.NoError(t, d.AddSignature(ctx, account, 1, signer, []byte{0xaa}))

	err := d.AddSignature(ctx, account, 1, signer, []byte{0xbb})
	assert.True(t, xerrors.Is(err, mcommon.ErrDuplicate))

	count, list, err := d.CountAndList(ctx, account, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []byte{0xaa}, []byte(list[0].Signature))
}

func TestCountAndListPerRevision(t *testing.T) {
	ctx := context.Background()
	d := NewDao(setupTestDB(t))
	account := addr("0xa1")
	s1, s2 := addr("0x02"), addr("0x01")

	require.NoError(t, d.AddSignature(ctx, account, 1, s1, []byte{0x01}))
	require.NoError(t, d.AddSignature(ctx, account, 1, s2, []byte{0x02}))
	require.NoError(t, d.AddSignature(ctx, account, 2, s1, []byte{0x03}))
	require.NoError(t, d.AddSignature(ctx, addr("0xa2"), 1, s1, []byte{0x04}))

	count, list, err := d.CountAndList(ctx, account, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, s1, list[0].Signer)
	assert.Equal(t, s2, list[1].Signer)

	count, list, err = d.CountAndList(ctx, account, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []byte{0x03}, []byte(list[0].Signature))

	count, list, err = d.CountAndList(ctx, addr("0xa3"), 1)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, list)
}
