// Package service 提供 EIP-712 摘要计算与签名验证服务
package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-typeddata/internal/config"
	tddecimal "github.com/eidos-exchange/eidos/eidos-typeddata/pkg/decimal"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/message"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/metrics"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

// SignatureService 提供摘要计算与签名验证
type SignatureService interface {
	// Digest 计算已解析请求的签名摘要
	Digest(ctx context.Context, td *typeddata.TypedData) (*DigestResult, error)

	// DigestJSON 解码 eth_signTypedData_v4 请求, 解析其中的名称并计算摘要
	DigestJSON(ctx context.Context, data []byte) (*DigestResult, error)

	// VerifyTypedData 验证请求签名是否由 signer 产生
	VerifyTypedData(ctx context.Context, td *typeddata.TypedData, signer string, signature []byte) error

	// VerifyOrderSignature 验证下单签名
	VerifyOrderSignature(ctx context.Context, req *CreateOrderRequest) error

	// VerifyCancelSignature 验证撤单签名
	VerifyCancelSignature(ctx context.Context, wallet, orderID string, nonce uint64, signature []byte) error

	// VerifyWithdrawalSignature 验证提现签名
	VerifyWithdrawalSignature(ctx context.Context, req *CreateWithdrawalRequest) error

	// VerifyLoginSignature 验证登录签名
	VerifyLoginSignature(ctx context.Context, login message.LoginData, signature []byte) error

	// Domain 返回交易所域
	Domain() typeddata.Domain

	// IsMockMode 是否为 Mock 模式 (不校验交易所消息签名)
	IsMockMode() bool
}

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	Wallet    string
	Market    string
	Side      string // buy, sell
	Type      string // limit, market
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Nonce     uint64
	ExpireAt  int64 // 毫秒, 0 表示永不过期
	Signature []byte
}

// CreateWithdrawalRequest 提现请求
type CreateWithdrawalRequest struct {
	Wallet    string
	Token     string
	Amount    decimal.Decimal
	ToAddress string
	Nonce     uint64
	Signature []byte
}

// amountDecimals 订单与提现金额的链上精度
const amountDecimals = tddecimal.EtherDecimals

// kindTypedData 通用请求签名的指标标签
const kindTypedData = "typed_data"

// signatureService implements SignatureService
type signatureService struct {
	domain      message.EIP712Domain
	typedDomain typeddata.Domain
	mockMode    bool
	loginMaxAge int64
	resolver    typeddata.NameResolver
	cacheSize   int
	encoders    *encoderCache
	logger      *zap.Logger
}

// Option 服务选项
type Option func(*signatureService)

// WithResolver 设置名称解析器
func WithResolver(r typeddata.NameResolver) Option {
	return func(s *signatureService) {
		s.resolver = r
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(s *signatureService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEncoderCacheSize 设置编码器缓存上限
func WithEncoderCacheSize(n int) Option {
	return func(s *signatureService) {
		s.cacheSize = n
	}
}

// NewSignatureService 创建签名服务
func NewSignatureService(cfg *config.EIP712Config, opts ...Option) (SignatureService, error) {
	if err := cfg.Domain.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, err)
	}
	typedDomain, err := cfg.Domain.TypedDomain()
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidRequest, err)
	}

	domain := message.EIP712Domain{
		Name:              cfg.Domain.Name,
		Version:           cfg.Domain.Version,
		ChainID:           cfg.Domain.ChainID,
		VerifyingContract: cfg.Domain.VerifyingContract,
	}

	s := &signatureService{
		domain:      domain,
		typedDomain: typedDomain,
		// 显式开启或零地址合约均视为 Mock 模式
		mockMode:    cfg.MockMode || message.IsMockMode(domain),
		loginMaxAge: cfg.LoginMaxAgeSec,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.encoders = newEncoderCache(s.cacheSize, s.logger)

	if s.mockMode {
		s.logger.Warn("signature service running in mock mode, exchange signatures are not verified",
			zap.String("verifying_contract", domain.VerifyingContract))
	}
	return s, nil
}

// IsMockMode returns true if running in mock mode
func (s *signatureService) IsMockMode() bool {
	return s.mockMode
}

// Domain 返回交易所域
func (s *signatureService) Domain() typeddata.Domain {
	return s.typedDomain
}

// VerifyTypedData 验证请求签名, 与 Mock 模式无关
func (s *signatureService) VerifyTypedData(ctx context.Context, td *typeddata.TypedData, signer string, signature []byte) error {
	result, err := s.Digest(ctx, td)
	if err != nil {
		return err
	}
	_, err = message.VerifyDigest(result.Digest, signer, signature)
	metrics.RecordVerification(kindTypedData, err)
	if err != nil {
		s.logger.Debug("typed data signature rejected",
			zap.String("primary_type", result.PrimaryType),
			zap.String("signer", signer),
			zap.Error(err))
	}
	return err
}

// VerifyOrderSignature verifies an order signature
func (s *signatureService) VerifyOrderSignature(ctx context.Context, req *CreateOrderRequest) error {
	if s.mockMode {
		return nil
	}

	side, err := parseSide(req.Side)
	if err != nil {
		return err
	}
	orderType, err := parseOrderType(req.Type)
	if err != nil {
		return err
	}

	order := message.OrderData{
		Wallet:    req.Wallet,
		Market:    req.Market,
		Side:      side,
		OrderType: orderType,
		Price:     tddecimal.ToBaseUnits(req.Price, amountDecimals),
		Amount:    tddecimal.ToBaseUnits(req.Amount, amountDecimals),
		Nonce:     req.Nonce,
		Expiry:    req.ExpireAt / 1000, // 毫秒转秒
	}

	_, err = message.VerifyOrderSignature(s.domain, order, req.Signature)
	return s.record(message.KindOrder, req.Wallet, err)
}

// VerifyCancelSignature verifies a cancel order signature
func (s *signatureService) VerifyCancelSignature(ctx context.Context, wallet, orderID string, nonce uint64, signature []byte) error {
	if s.mockMode {
		return nil
	}

	cancel := message.CancelData{
		Wallet:  wallet,
		OrderID: orderID,
		Nonce:   nonce,
	}
	_, err := message.VerifyCancelSignature(s.domain, cancel, signature)
	return s.record(message.KindCancel, wallet, err)
}

// VerifyWithdrawalSignature verifies a withdrawal signature
func (s *signatureService) VerifyWithdrawalSignature(ctx context.Context, req *CreateWithdrawalRequest) error {
	if s.mockMode {
		return nil
	}

	withdraw := message.WithdrawData{
		Wallet:    req.Wallet,
		Token:     req.Token,
		Amount:    tddecimal.ToBaseUnits(req.Amount, amountDecimals),
		ToAddress: req.ToAddress,
		Nonce:     req.Nonce,
	}
	_, err := message.VerifyWithdrawalSignature(s.domain, withdraw, req.Signature)
	return s.record(message.KindWithdraw, req.Wallet, err)
}

// VerifyLoginSignature verifies a login signature
func (s *signatureService) VerifyLoginSignature(ctx context.Context, login message.LoginData, signature []byte) error {
	if s.mockMode {
		return nil
	}

	_, err := message.VerifyLoginSignature(s.domain, login, signature, s.loginMaxAge)
	return s.record(message.KindLogin, login.Wallet, err)
}

// record 记录验证结果
func (s *signatureService) record(kind, wallet string, err error) error {
	metrics.RecordVerification(kind, err)
	if err != nil {
		s.logger.Info("signature verification failed",
			zap.String("kind", kind),
			zap.String("wallet", wallet),
			zap.String("code", errors.GetCode(err)),
			zap.Error(err))
	}
	return err
}

func parseSide(side string) (uint8, error) {
	switch strings.ToLower(side) {
	case "buy":
		return message.SideBuy, nil
	case "sell":
		return message.SideSell, nil
	}
	return 0, errors.ErrInvalidRequest.WithMessagef("invalid order side: %q", side)
}

func parseOrderType(orderType string) (uint8, error) {
	switch strings.ToLower(orderType) {
	case "limit":
		return message.OrderTypeLimit, nil
	case "market":
		return message.OrderTypeMarket, nil
	}
	return 0, errors.ErrInvalidRequest.WithMessagef("invalid order type: %q", orderType)
}
