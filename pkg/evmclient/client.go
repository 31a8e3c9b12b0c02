package evmclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// receiptTimeout bounds how long SubmitPayout and the operator calls wait
// for a transaction to be mined.
const receiptTimeout = 5 * time.Minute

// minGasPriceWei is a floor applied to the node's suggested gas price so
// transactions are not stuck at near-zero prices on a congested chain.
var minGasPriceWei = big.NewInt(1_000_000_000) // 1 gwei

// Config names the deployed contract suite and the signing key the
// relayer submits transactions with.
type Config struct {
	RPCURL                string
	ChainID               int64
	PrivateKeyHex         string
	CheckpointManagerAddr common.Address
	BtcSpvVerifierAddr    common.Address
	HashCreditManagerAddr common.Address
}

// Client wraps an ethclient.Client with the signing key and contract
// addresses needed to drive the three contracts.
type Client struct {
	eth        *ethclient.Client
	chainID    *big.Int
	privateKey *ecdsa.PrivateKey
	fromAddr   common.Address

	checkpointManagerAddr common.Address
	btcSpvVerifierAddr    common.Address
	hashCreditManagerAddr common.Address
}

// New dials cfg.RPCURL and parses the signing key.
func New(cfg Config) (*Client, error) {
	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evmclient: dial: %w", err)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("evmclient: parse private key: %w", err)
	}
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("evmclient: derive public key: unexpected key type")
	}

	return &Client{
		eth:                   eth,
		chainID:               big.NewInt(cfg.ChainID),
		privateKey:            privateKey,
		fromAddr:              crypto.PubkeyToAddress(*publicKeyECDSA),
		checkpointManagerAddr: cfg.CheckpointManagerAddr,
		btcSpvVerifierAddr:    cfg.BtcSpvVerifierAddr,
		hashCreditManagerAddr: cfg.HashCreditManagerAddr,
	}, nil
}

func (c *Client) FromAddress() common.Address { return c.fromAddr }

// call packs methodName's arguments against abiJSON, signs, broadcasts to
// contractAddr, and waits for the receipt. status == 1 is success;
// anything else returns *EvmRevert.
func (c *Client) call(ctx context.Context, contractAddr common.Address, abiJSON, methodName string, args ...interface{}) (*types.Receipt, error) {
	contractABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("evmclient: parse abi for %s: %w", methodName, err)
	}

	callData, err := contractABI.Pack(methodName, args...)
	if err != nil {
		return nil, fmt.Errorf("evmclient: pack %s: %w", methodName, err)
	}

	nonce, err := c.eth.PendingNonceAt(ctx, c.fromAddr)
	if err != nil {
		return nil, &EvmRPCError{Method: methodName, Err: fmt.Errorf("fetch nonce: %w", err)}
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, &EvmRPCError{Method: methodName, Err: fmt.Errorf("fetch gas price: %w", err)}
	}
	if gasPrice.Cmp(minGasPriceWei) < 0 {
		gasPrice = minGasPriceWei
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.fromAddr, To: &contractAddr, Data: callData})
	if err != nil {
		return nil, &EvmRPCError{Method: methodName, Err: fmt.Errorf("estimate gas: %w", err)}
	}

	tx := types.NewTransaction(nonce, contractAddr, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return nil, &EvmRPCError{Method: methodName, Err: fmt.Errorf("sign: %w", err)}
	}

	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return nil, &EvmRPCError{Method: methodName, Err: fmt.Errorf("broadcast: %w", err)}
	}

	waitCtx, cancel := context.WithTimeout(ctx, receiptTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.eth, signedTx)
	if err != nil {
		return nil, &EvmRPCError{Method: methodName, Err: fmt.Errorf("await receipt: %w", err)}
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &EvmRevert{Method: methodName, Receipt: receipt}
	}
	return receipt, nil
}

// callView packs methodName's arguments, issues an eth_call against
// contractAddr, and returns the decoded outputs. Used for read-only
// contract methods that never need nonce/gas/signing.
func (c *Client) callView(ctx context.Context, contractAddr common.Address, abiJSON, methodName string, args ...interface{}) ([]interface{}, error) {
	contractABI, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("evmclient: parse abi for %s: %w", methodName, err)
	}

	callData, err := contractABI.Pack(methodName, args...)
	if err != nil {
		return nil, fmt.Errorf("evmclient: pack %s: %w", methodName, err)
	}

	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{From: c.fromAddr, To: &contractAddr, Data: callData}, nil)
	if err != nil {
		return nil, &EvmRPCError{Method: methodName, Err: err}
	}

	outputs, err := contractABI.Unpack(methodName, result)
	if err != nil {
		return nil, fmt.Errorf("evmclient: unpack %s: %w", methodName, err)
	}
	return outputs, nil
}
