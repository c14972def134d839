package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/rqzrqh/multisig_coordinator/chain/chaintest"
	"github.com/rqzrqh/multisig_coordinator/common"
	"github.com/rqzrqh/multisig_coordinator/dao"
	"github.com/rqzrqh/multisig_coordinator/engine"
	"github.com/rqzrqh/multisig_coordinator/executor"
)

var (
	account = ethcommon.HexToAddress("0xa1")
	target  = ethcommon.HexToAddress("0x7e")
	factory = ethcommon.HexToAddress("0xf1")
)

type testServer struct {
	*Server
	url   string
	chain *chaintest.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dsn := fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := dao.Open(dsn, logger.Default.LogMode(logger.Silent))
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(dao.Tables()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := dao.NewDao(db)
	client := chaintest.NewClient()
	locker := dao.NewMemoryLocker()
	eng := engine.NewEngine(engine.Config{}, store, store, store, client, locker, nil)
	exec := executor.NewExecutor(executor.DefaultConfig(), store, store, client, locker, nil)

	s := NewServer(Config{}, eng, exec)
	s.SetReady(true)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	return &testServer{Server: s, url: ts.URL, chain: client}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, ts.url+path, rd)
	require.NoError(t, err)
	req.Header.Set("content-type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func newOwner(t *testing.T) *common.KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	s, err := common.NewKeySigner(hexutil.Encode(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return s
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]interface{}
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil, &body))
	assert.Equal(t, "ok", body["status"])

	ts.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/health", nil, nil))
}

func TestRequestLifecycle(t *testing.T) {
	ts := newTestServer(t)
	o1, o2 := newOwner(t), newOwner(t)
	ts.chain.SetThreshold(account, 2)

	var rec common.OwnerRecord
	code := ts.do(t, http.MethodPost, "/api/user", engine.LinkOwnerMsg{
		Owner: o1.Address(), Factory: factory.Hex(), Account: account.Hex(),
	}, &rec)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{account.Hex()}, rec.OwnerOf)

	var grant struct {
		AddedTo []string `json:"addedTo"`
	}
	code = ts.do(t, http.MethodPost, "/api/owners", engine.GrantOwnershipMsg{
		Account: account.Hex(), Owners: []string{o1.Address(), o2.Address()},
	}, &grant)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{o2.Address()}, grant.AddedTo)

	var req common.Request
	code = ts.do(t, http.MethodPost, "/api/requests", engine.ProposeMsg{
		Account: account.Hex(), Target: target.Hex(), Reason: "rent",
	}, &req)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, common.StatusPending, req.Status)
	assert.Equal(t, uint64(2), req.Threshold)

	var message struct {
		Message string `json:"message"`
	}
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/requests/"+account.Hex()+"/message", nil, &message))
	msg, err := hexutil.Decode(message.Message)
	require.NoError(t, err)

	for i, o := range []*common.KeySigner{o1, o2} {
		sig, err := o.Sign(msg)
		require.NoError(t, err)

		var agg common.AggregatedRequest
		code = ts.do(t, http.MethodPost, "/api/signatures", engine.SubmitSignatureMsg{
			Account: account.Hex(), Signer: o.Address(), Message: message.Message, Signature: hexutil.Encode(sig),
		}, &agg)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, i+1, agg.CurrentSignatures)
	}

	var list []common.AggregatedRequest
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/requests?address="+o2.Address(), nil, &list))
	require.Len(t, list, 1)
	assert.Equal(t, common.StatusReady, list[0].Status)
	assert.Equal(t, "rent", list[0].Reason)

	var res executor.Result
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/requests/"+account.Hex()+"/execute", nil, &res))
	assert.NotEmpty(t, res.Hash)
	assert.Len(t, ts.chain.Submitted(), 1)

	var errResp errorResponse
	code = ts.do(t, http.MethodPost, "/api/requests/"+account.Hex()+"/execute", nil, &errResp)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", errResp.Error.Code)
	assert.NotEmpty(t, errResp.RequestID)

	var agg common.AggregatedRequest
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/requests/"+account.Hex(), nil, &agg))
	assert.Equal(t, common.StatusExecuted, agg.Status)
}

func TestErrorResponses(t *testing.T) {
	ts := newTestServer(t)
	o1, outsider := newOwner(t), newOwner(t)
	ts.chain.SetThreshold(account, 1)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/owners", engine.GrantOwnershipMsg{
		Account: account.Hex(), Owners: []string{o1.Address()},
	}, nil))
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/requests", engine.ProposeMsg{
		Account: account.Hex(), Target: target.Hex(),
	}, nil))

	cases := map[string]struct {
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		"bad address":      {http.MethodPost, "/api/requests", engine.ProposeMsg{Account: "0x12", Target: target.Hex()}, http.StatusBadRequest, "INVALID_ADDRESS"},
		"unknown field":    {http.MethodPost, "/api/requests", `{"accountAddress":"` + account.Hex() + `","bogus":1}`, http.StatusBadRequest, "INVALID_INPUT"},
		"not json":         {http.MethodPost, "/api/signatures", `{`, http.StatusBadRequest, "INVALID_INPUT"},
		"not an owner":     {http.MethodPost, "/api/signatures", engine.SubmitSignatureMsg{Account: account.Hex(), Signer: outsider.Address(), Signature: "0x01"}, http.StatusForbidden, "NOT_AN_OWNER"},
		"unknown account":  {http.MethodPost, "/api/signatures", engine.SubmitSignatureMsg{Account: target.Hex(), Signer: o1.Address(), Signature: "0x01"}, http.StatusNotFound, "UNKNOWN_ACCOUNT"},
		"message mismatch": {http.MethodPost, "/api/signatures", engine.SubmitSignatureMsg{Account: account.Hex(), Signer: o1.Address(), Message: "0x01", Signature: "0x01"}, http.StatusUnprocessableEntity, "MESSAGE_MISMATCH"},
		"skip ready":       {http.MethodPost, "/api/requests/" + account.Hex() + "/executed", nil, http.StatusConflict, "INVALID_TRANSITION"},
		"status mismatch":  {http.MethodPost, "/api/requests/" + account.Hex() + "/status", engine.SetStatusMsg{Account: target.Hex(), Status: "ready"}, http.StatusBadRequest, "INVALID_INPUT"},
		"unknown owner":    {http.MethodGet, "/api/user?address=" + outsider.Address(), nil, http.StatusNotFound, "NOT_FOUND"},
		"missing address":  {http.MethodGet, "/api/requests", nil, http.StatusBadRequest, "INVALID_INPUT"},
		"chain down":       {http.MethodPost, "/api/requests", engine.ProposeMsg{Account: target.Hex(), Target: target.Hex()}, http.StatusBadGateway, "CHAIN_UNAVAILABLE"},
		"wrong method":     {http.MethodDelete, "/api/user", nil, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		"get signatures":   {http.MethodGet, "/api/signatures", nil, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		"no route":         {http.MethodGet, "/api/nothing", nil, http.StatusNotFound, "NOT_FOUND"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var resp errorResponse
			assert.Equal(t, tc.status, ts.do(t, tc.method, tc.path, tc.body, &resp))
			assert.Equal(t, tc.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}

	var agg common.AggregatedRequest
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/requests/"+account.Hex(), nil, &agg))
	assert.Equal(t, 0, agg.CurrentSignatures)
	assert.Equal(t, common.StatusPending, agg.Status)
}

