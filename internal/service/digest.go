package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/metrics"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

// DigestResult 摘要计算结果
type DigestResult struct {
	PrimaryType     string
	Digest          common.Hash
	DomainSeparator common.Hash
	StructHash      common.Hash
	// TypedData 名称解析后的请求
	TypedData *typeddata.TypedData
}

// Digest 计算已解析请求的签名摘要
func (s *signatureService) Digest(ctx context.Context, td *typeddata.TypedData) (*DigestResult, error) {
	timer := metrics.NewTimer()

	types, err := td.MessageTypes()
	if err != nil {
		return nil, s.digestFailed("", err, timer)
	}
	enc, err := s.encoders.get(types)
	if err != nil {
		return nil, s.digestFailed("", err, timer)
	}
	if err := td.CheckPrimaryType(enc); err != nil {
		return nil, s.digestFailed(enc.PrimaryType(), err, timer)
	}
	return s.digest(enc, td, timer)
}

// DigestJSON 解码请求, 解析地址字段中的名称后计算摘要
func (s *signatureService) DigestJSON(ctx context.Context, data []byte) (*DigestResult, error) {
	timer := metrics.NewTimer()

	req, err := typeddata.DecodeRequest(data)
	if err != nil {
		return nil, s.digestFailed("", err, timer)
	}

	types := req.Types.Clone()
	delete(types, typeddata.DomainTypeName)
	enc, err := s.encoders.get(types)
	if err != nil {
		return nil, s.digestFailed("", err, timer)
	}

	domain, msg, err := enc.ResolveNames(ctx, req.Domain, req.Message, s.resolver)
	if err != nil {
		return nil, s.digestFailed(enc.PrimaryType(), err, timer)
	}

	td := &typeddata.TypedData{
		Types:       req.Types,
		PrimaryType: req.PrimaryType,
		Domain:      domain,
		Message:     msg,
	}
	if _, err := td.MessageTypes(); err != nil {
		return nil, s.digestFailed(enc.PrimaryType(), err, timer)
	}
	if err := td.CheckPrimaryType(enc); err != nil {
		return nil, s.digestFailed(enc.PrimaryType(), err, timer)
	}
	return s.digest(enc, td, timer)
}

func (s *signatureService) digest(enc *typeddata.Encoder, td *typeddata.TypedData, timer *metrics.Timer) (*DigestResult, error) {
	separator, err := typeddata.HashDomain(td.Domain)
	if err != nil {
		return nil, s.digestFailed(enc.PrimaryType(), err, timer)
	}
	structHash, err := enc.Hash(td.Message)
	if err != nil {
		return nil, s.digestFailed(enc.PrimaryType(), err, timer)
	}

	result := &DigestResult{
		PrimaryType:     enc.PrimaryType(),
		Digest:          typeddata.TypedDataDigest(separator, structHash),
		DomainSeparator: separator,
		StructHash:      structHash,
		TypedData:       td,
	}
	metrics.RecordDigest(result.PrimaryType, nil, timer.ObserveSeconds())
	s.logger.Debug("typed data digest computed",
		zap.String("primary_type", result.PrimaryType),
		zap.String("digest", result.Digest.Hex()))
	return result, nil
}

// digestFailed 记录失败; 编码器构建前主类型未知
func (s *signatureService) digestFailed(primaryType string, err error, timer *metrics.Timer) error {
	if primaryType == "" {
		primaryType = "unknown"
	}
	metrics.RecordDigest(primaryType, err, timer.ObserveSeconds())
	s.logger.Debug("typed data digest failed",
		zap.String("primary_type", primaryType),
		zap.Error(err))
	return err
}
