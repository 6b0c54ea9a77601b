package tangle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qubiclite/iam/pkg/trytes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrReadOnly is returned by NodeClient.Submit. Attaching through a node
// requires proof-of-work, which this client does not perform.
var ErrReadOnly = errors.New("tangle: node client is read-only")

// transactionTrytesLength is the length of a full serialized transaction.
const transactionTrytesLength = 2673

// NodeConfig holds NodeClient configuration.
type NodeConfig struct {
	URL         string        // e.g. "https://nodes.thetangle.org:443"
	HTTPTimeout time.Duration // default 10s
	RPS         float64       // request pacing; 0 disables
	Burst       int
}

// NodeClient reads transactions from an IRI-compatible node using the
// findTransactions and getTrytes commands.
type NodeClient struct {
	cfg        NodeConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewNodeClient creates a NodeClient.
func NewNodeClient(cfg NodeConfig, logger *zap.Logger) *NodeClient {
	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	c := &NodeClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c
}

// FindByAddress implements Fetcher. It resolves the hashes attached at
// address and then fetches their trytes in a second call.
func (c *NodeClient) FindByAddress(ctx context.Context, address string) ([]Transaction, error) {
	var found struct {
		Hashes []string `json:"hashes"`
	}
	if err := c.call(ctx, map[string]any{
		"command":   "findTransactions",
		"addresses": []string{address},
	}, &found); err != nil {
		return nil, fmt.Errorf("findTransactions: %w", err)
	}
	if len(found.Hashes) == 0 {
		return nil, nil
	}

	var fetched struct {
		Trytes []string `json:"trytes"`
	}
	if err := c.call(ctx, map[string]any{
		"command": "getTrytes",
		"hashes":  found.Hashes,
	}, &fetched); err != nil {
		return nil, fmt.Errorf("getTrytes: %w", err)
	}
	if len(fetched.Trytes) != len(found.Hashes) {
		return nil, fmt.Errorf("getTrytes returned %d entries for %d hashes", len(fetched.Trytes), len(found.Hashes))
	}

	txs := make([]Transaction, 0, len(found.Hashes))
	for i, raw := range fetched.Trytes {
		tx, err := parseTransactionTrytes(found.Hashes[i], raw)
		if err != nil {
			c.logger.Debug("skipping malformed node transaction",
				zap.String("hash", found.Hashes[i]),
				zap.Error(err),
			)
			continue
		}
		txs = append(txs, tx)
	}

	c.logger.Debug("fetched transactions from node",
		zap.String("address", address),
		zap.Int("count", len(txs)),
	)
	return txs, nil
}

// Submit implements Submitter; see ErrReadOnly.
func (c *NodeClient) Submit(_ context.Context, _, _ string) (*Transaction, error) {
	return nil, ErrReadOnly
}

// Ping asks the node for its info and fails when the node is unreachable or
// lags behind the latest milestone.
func (c *NodeClient) Ping(ctx context.Context) error {
	var info struct {
		LatestMilestoneIndex      int64 `json:"latestMilestoneIndex"`
		LatestSolidSubtangleIndex int64 `json:"latestSolidSubtangleMilestoneIndex"`
	}
	if err := c.call(ctx, map[string]any{"command": "getNodeInfo"}, &info); err != nil {
		return fmt.Errorf("getNodeInfo: %w", err)
	}
	if info.LatestSolidSubtangleIndex < info.LatestMilestoneIndex {
		return fmt.Errorf("node not synced: solid milestone %d behind latest %d",
			info.LatestSolidSubtangleIndex, info.LatestMilestoneIndex)
	}
	return nil
}

// call posts one IRI command and decodes its JSON response into out.
func (c *NodeClient) call(ctx context.Context, cmd map[string]any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-IOTA-API-Version", "1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("node request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error != "" {
			return fmt.Errorf("node returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("node returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseTransactionTrytes extracts the message and address from a serialized
// transaction. The message occupies the first MessageLength trytes and the
// address the following AddressLength trytes.
func parseTransactionTrytes(hash, raw string) (Transaction, error) {
	if len(raw) != transactionTrytesLength {
		return Transaction{}, fmt.Errorf("transaction has %d trytes, want %d", len(raw), transactionTrytesLength)
	}
	if !trytes.Valid(raw) {
		return Transaction{}, fmt.Errorf("transaction contains non-tryte characters")
	}
	return Transaction{
		Hash:    hash,
		Payload: raw[:trytes.MessageLength],
		Address: raw[trytes.MessageLength : trytes.MessageLength+trytes.AddressLength],
	}, nil
}
