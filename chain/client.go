// Copyright 2026 The otv-backend Authors
// This file is part of the otv-backend library.

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "chain")

// Client talks to the programme node's JSON-RPC endpoint. The node
// carries an `otv` RPC namespace exposing the staking views the
// standard RPC surface does not; everything else goes through the
// stock `chain`/`system` methods. The client serializes nothing
// itself: each call is an independent POST, so concurrently running
// jobs can share one Client.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a chain client for the given RPC endpoint.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Adapter = (*Client)(nil)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "call %s", method)
	}
	defer resp.Body.Close()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return errors.Wrapf(err, "decode %s response", method)
	}
	if decoded.Error != nil {
		return errors.Wrapf(decoded.Error, "call %s", method)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return errors.Wrapf(err, "unmarshal %s result", method)
	}
	return nil
}

func (c *Client) GetActiveEraIndex(ctx context.Context) (uint64, error) {
	var res struct {
		Index uint64 `json:"index"`
	}
	if err := c.call(ctx, &res, "otv_activeEra"); err != nil {
		return 0, err
	}
	return res.Index, nil
}

func (c *Client) GetCurrentEra(ctx context.Context) (uint64, error) {
	var era uint64
	if err := c.call(ctx, &era, "otv_currentEra"); err != nil {
		return 0, err
	}
	return era, nil
}

func (c *Client) GetTotalEraPoints(ctx context.Context, era uint64) (*EraPointsInfo, error) {
	var res struct {
		Total      uint64 `json:"total"`
		Validators []struct {
			Address string `json:"address"`
			Points  uint64 `json:"points"`
		} `json:"validators"`
	}
	if err := c.call(ctx, &res, "otv_eraPoints", era); err != nil {
		return nil, err
	}
	info := &EraPointsInfo{Era: era, Total: res.Total}
	for _, v := range res.Validators {
		info.Validators = append(info.Validators, ValidatorEraPoints{Address: v.Address, EraPoints: v.Points})
	}
	return info, nil
}

func (c *Client) CurrentValidators(ctx context.Context) ([]string, error) {
	var validators []string
	if err := c.call(ctx, &validators, "otv_validators"); err != nil {
		return nil, err
	}
	return validators, nil
}

func (c *Client) GetFormattedIdentity(ctx context.Context, stash string) (*Identity, error) {
	var res struct {
		Name     string `json:"name"`
		Sub      string `json:"sub"`
		Verified bool   `json:"verified"`
	}
	if err := c.call(ctx, &res, "otv_identity", stash); err != nil {
		return nil, err
	}
	if res.Name == "" {
		return nil, nil
	}
	return &Identity{Name: res.Name, Sub: res.Sub, Verified: res.Verified}, nil
}

func (c *Client) GetValidatorPrefs(ctx context.Context, stash string) (uint64, bool, error) {
	var res struct {
		Commission uint64 `json:"commission"`
		Blocked    bool   `json:"blocked"`
	}
	if err := c.call(ctx, &res, "otv_validatorPrefs", stash); err != nil {
		return 0, false, err
	}
	return res.Commission, res.Blocked, nil
}

func (c *Client) GetCommission(ctx context.Context, stash string) (uint64, error) {
	commission, _, err := c.GetValidatorPrefs(ctx, stash)
	return commission, err
}

func (c *Client) GetValidateIntention(ctx context.Context, stash string) (bool, error) {
	var intends bool
	if err := c.call(ctx, &intends, "otv_validateIntention", stash); err != nil {
		return false, err
	}
	return intends, nil
}

func (c *Client) GetControllerFromStash(ctx context.Context, stash string) (string, error) {
	var controller string
	if err := c.call(ctx, &controller, "otv_controller", stash); err != nil {
		return "", err
	}
	return controller, nil
}

func (c *Client) GetRewardDestination(ctx context.Context, stash string) (string, error) {
	var destination string
	if err := c.call(ctx, &destination, "otv_rewardDestination", stash); err != nil {
		return "", err
	}
	return destination, nil
}

func (c *Client) GetBondedAmount(ctx context.Context, stash string) (*big.Int, error) {
	var bonded string
	if err := c.call(ctx, &bonded, "otv_bonded", stash); err != nil {
		return nil, err
	}
	return decodeBalance(bonded)
}

func (c *Client) GetUnclaimedEras(ctx context.Context, stash string) ([]uint64, error) {
	var eras []uint64
	if err := c.call(ctx, &eras, "otv_unclaimedEras", stash); err != nil {
		return nil, err
	}
	return eras, nil
}

func (c *Client) GetQueuedKeys(ctx context.Context) (map[string]string, error) {
	var entries []struct {
		Address string `json:"address"`
		Keys    string `json:"keys"`
	}
	if err := c.call(ctx, &entries, "otv_queuedKeys"); err != nil {
		return nil, err
	}
	queued := make(map[string]string, len(entries))
	for _, e := range entries {
		queued[e.Address] = e.Keys
	}
	return queued, nil
}

func (c *Client) GetNextKeys(ctx context.Context, stash string) (string, error) {
	var keys string
	if err := c.call(ctx, &keys, "otv_nextKeys", stash); err != nil {
		return "", err
	}
	return keys, nil
}

func (c *Client) GetLatestBlock(ctx context.Context) (uint64, error) {
	var header struct {
		Number string `json:"number"`
	}
	if err := c.call(ctx, &header, "chain_getHeader"); err != nil {
		return 0, err
	}
	number, err := strconv.ParseUint(strings.TrimPrefix(header.Number, "0x"), 16, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse block number")
	}
	return number, nil
}

func (c *Client) GetProxyAnnouncements(ctx context.Context, address string) ([]ProxyAnnouncement, error) {
	var entries []struct {
		Real     string `json:"real"`
		CallHash string `json:"callHash"`
		Height   uint64 `json:"height"`
	}
	if err := c.call(ctx, &entries, "otv_proxyAnnouncements", address); err != nil {
		return nil, err
	}
	announcements := make([]ProxyAnnouncement, 0, len(entries))
	for _, e := range entries {
		announcements = append(announcements, ProxyAnnouncement{Real: e.Real, CallHash: e.CallHash, Height: e.Height})
	}
	return announcements, nil
}

func (c *Client) GetNominationAt(ctx context.Context, stash string, era uint64) (*NominationRecord, error) {
	var res struct {
		Targets     []string `json:"targets"`
		SubmittedIn uint64   `json:"submittedIn"`
	}
	if err := c.call(ctx, &res, "otv_nominationAt", stash, era); err != nil {
		return nil, err
	}
	if len(res.Targets) == 0 {
		return nil, nil
	}
	return &NominationRecord{Targets: res.Targets, SubmittedIn: res.SubmittedIn}, nil
}

func (c *Client) GetAllNominators(ctx context.Context) (map[string][]string, error) {
	var entries []struct {
		Address string   `json:"address"`
		Targets []string `json:"targets"`
	}
	if err := c.call(ctx, &entries, "otv_nominators"); err != nil {
		return nil, err
	}
	nominators := make(map[string][]string, len(entries))
	for _, e := range entries {
		nominators[e.Address] = e.Targets
	}
	return nominators, nil
}

func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var free string
	if err := c.call(ctx, &free, "otv_freeBalance", address); err != nil {
		return nil, err
	}
	return decodeBalance(free)
}

func (c *Client) GetChainMetadata(ctx context.Context) (*Metadata, error) {
	var name string
	if err := c.call(ctx, &name, "system_chain"); err != nil {
		return nil, err
	}
	var props struct {
		TokenDecimals int `json:"tokenDecimals"`
	}
	if err := c.call(ctx, &props, "system_properties"); err != nil {
		return nil, err
	}
	return &Metadata{Name: name, Decimals: props.TokenDecimals}, nil
}

// decodeBalance parses a balance returned as a decimal string. The
// node stringifies balances because they overflow JSON numbers.
func decodeBalance(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		log.WithField("value", s).Warn("Unparseable balance from node")
		return nil, errors.Errorf("bad balance %q", s)
	}
	return value, nil
}
