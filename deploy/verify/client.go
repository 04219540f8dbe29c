// Package verify publishes contract sources to an Etherscan compatible block explorer.
package verify

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/lottery-deployments/contracts"
	"github.com/smartcontractkit/lottery-deployments/pkg/logger"
)

const (
	DefaultPollAttempts = 20
	DefaultPollDelay    = 5 * time.Second

	statusPending         = "Pending in queue"
	statusPass            = "Pass - Verified"
	statusAlreadyVerified = "already verified"
	statusNotIndexed      = "unable to locate contractcode"
)

var (
	ErrNoAPIKey           = errors.New("explorer API key is required")
	ErrVerificationFailed = errors.New("source verification failed")
	// ErrContractNotIndexed is returned while the explorer has not yet indexed a freshly
	// deployed contract. The submission can be retried.
	ErrContractNotIndexed = errors.New("contract not yet indexed by the explorer")
	errPending            = errors.New("verification pending")
)

// Request is a single file source verification.
type Request struct {
	Address          common.Address
	ContractName     string
	SourceCode       string
	CompilerVersion  string
	OptimizationUsed bool
	Runs             int
	// ConstructorArgs are the ABI encoded constructor arguments.
	ConstructorArgs []byte
}

// NewRequest builds the verification request of a contract deployed at address from its
// artifact, encoding args with the artifact's constructor.
func NewRequest(artifact *contracts.Artifact, address common.Address, args ...any) (Request, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return Request{}, err
	}

	encoded, err := parsed.Pack("", args...)
	if err != nil {
		return Request{}, fmt.Errorf("failed to encode %s constructor arguments: %w", artifact.ContractName, err)
	}

	return Request{
		Address:          address,
		ContractName:     artifact.ContractName,
		SourceCode:       artifact.Source,
		CompilerVersion:  artifact.CompilerVersion(),
		OptimizationUsed: artifact.Compiler.Optimizer.Enabled,
		Runs:             artifact.Compiler.Optimizer.Runs,
		ConstructorArgs:  encoded,
	}, nil
}

type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

// Client talks to the explorer API.
type Client struct {
	apiURL       string
	apiKey       string
	httpClient   *http.Client
	lggr         logger.Logger
	pollAttempts uint
	pollDelay    time.Duration
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithPolling sets how often and how long the verification status is polled. The same
// schedule is used to resubmit a contract the explorer has not indexed yet. At least one
// attempt is always made.
func WithPolling(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.pollAttempts = max(attempts, 1)
		c.pollDelay = delay
	}
}

// NewClient creates a new explorer client.
func NewClient(lggr logger.Logger, apiURL, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if apiURL == "" {
		return nil, errors.New("explorer API URL is required")
	}

	c := &Client{
		apiURL: strings.TrimSuffix(apiURL, "/"),
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		lggr:         lggr,
		pollAttempts: DefaultPollAttempts,
		pollDelay:    DefaultPollDelay,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Verify submits req and waits until the explorer has verified the source. Submissions are
// repeated while the explorer has not indexed the contract.
func (c *Client) Verify(ctx context.Context, req Request) error {
	guid, err := retry.DoWithData(func() (string, error) {
		return c.Submit(ctx, req)
	},
		retry.Attempts(c.pollAttempts),
		retry.Delay(c.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrContractNotIndexed) }),
		retry.OnRetry(func(n uint, err error) {
			c.lggr.Infow("Explorer has not indexed the contract yet, resubmitting",
				"address", req.Address.Hex(), "attempt", n+1)
		}),
	)
	if err != nil {
		return err
	}
	if guid == "" {
		c.lggr.Infow("Contract source already verified", "address", req.Address.Hex())
		return nil
	}

	c.lggr.Infow("Waiting for source verification", "address", req.Address.Hex(), "guid", guid)

	err = retry.Do(func() error {
		return c.checkStatus(ctx, guid)
	},
		retry.Attempts(c.pollAttempts),
		retry.Delay(c.pollDelay),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errPending) }),
	)
	if errors.Is(err, errPending) {
		return fmt.Errorf("verification of %s still pending after %d checks: %w", req.Address.Hex(), c.pollAttempts, err)
	}
	if err != nil {
		return err
	}

	c.lggr.Infow("Contract source verified", "address", req.Address.Hex(), "guid", guid)

	return nil
}

// Submit posts the verification request and returns the explorer's guid. An empty guid
// means the contract was verified before.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	form := url.Values{}
	form.Set("apikey", c.apiKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", req.Address.Hex())
	form.Set("sourceCode", req.SourceCode)
	form.Set("codeformat", "solidity-single-file")
	form.Set("contractname", req.ContractName)
	form.Set("compilerversion", req.CompilerVersion)
	form.Set("optimizationUsed", boolFlag(req.OptimizationUsed))
	form.Set("runs", strconv.Itoa(req.Runs))
	// the explorer API spells this field with the typo
	form.Set("constructorArguements", hex.EncodeToString(req.ConstructorArgs))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	if resp.Status != "1" {
		switch {
		case isAlreadyVerified(resp.Result):
			return "", nil
		case strings.Contains(strings.ToLower(resp.Result), statusNotIndexed):
			return "", fmt.Errorf("%w: %s", ErrContractNotIndexed, resp.Result)
		default:
			return "", fmt.Errorf("%w: %s: %s", ErrVerificationFailed, resp.Message, resp.Result)
		}
	}

	return resp.Result, nil
}

// CheckStatus returns the explorer's verification status for guid.
func (c *Client) CheckStatus(ctx context.Context, guid string) (string, error) {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	q.Set("module", "contract")
	q.Set("action", "checkverifystatus")
	q.Set("guid", guid)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	return resp.Result, nil
}

func (c *Client) checkStatus(ctx context.Context, guid string) error {
	status, err := c.CheckStatus(ctx, guid)
	if err != nil {
		return err
	}

	switch {
	case status == statusPass || isAlreadyVerified(status):
		return nil
	case status == statusPending:
		return errPending
	default:
		return fmt.Errorf("%w: %s", ErrVerificationFailed, status)
	}
}

func (c *Client) do(req *http.Request) (apiResponse, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return apiResponse{}, fmt.Errorf("explorer API returned status %d: %s", resp.StatusCode, string(body))
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return apiResponse{}, fmt.Errorf("failed to parse explorer response: %w", err)
	}

	return out, nil
}

func isAlreadyVerified(result string) bool {
	return strings.Contains(strings.ToLower(result), statusAlreadyVerified)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}

	return "0"
}
