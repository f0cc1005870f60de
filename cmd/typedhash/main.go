package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-typeddata/internal/app"
	"github.com/eidos-exchange/eidos/eidos-typeddata/internal/config"
	"github.com/eidos-exchange/eidos/eidos-typeddata/internal/service"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/crypto"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run 执行命令并返回退出码; 所有返回路径都会经过 defer 刷新日志
func run(args []string, stdout, stderr io.Writer) int {
	// 解析命令行参数
	fs := flag.NewFlagSet("typedhash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "配置文件路径")
	payloadPath := fs.String("payload", "", "eth_signTypedData_v4 请求文件, - 表示标准输入; 为空时以服务方式运行")
	signature := fs.String("signature", "", "65 字节签名 (hex); 同时指定 -signer 时验证, 否则仅恢复签名地址")
	signer := fs.String("signer", "", "期望的签名地址")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "load config:", err)
		return 1
	}

	// 初始化日志, 输出到 stderr 以保持 stdout 仅含结果
	if err := logger.Init(&logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: cfg.Service.Name,
		Output:      stderr,
	}); err != nil {
		fmt.Fprintln(stderr, "init logger:", err)
		return 1
	}
	defer logger.Sync()

	log := logger.L()

	// 创建应用
	application := app.New(cfg, log)

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		log.Error("failed to start application", zap.Error(err))
		return 1
	}

	if *payloadPath == "" {
		log.Info("service started successfully", zap.String("metrics_addr", cfg.Service.MetricsAddr))
		application.WaitForShutdown()
		return 0
	}

	runErr := runOnce(ctx, application.Service(), *payloadPath, *signature, *signer, stdout)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = application.Stop(stopCtx)

	if runErr != nil {
		log.Error("typed data digest failed", zap.Error(runErr))
		fmt.Fprintln(stderr, errors.FromError(runErr).JSON())
		return 1
	}
	return 0
}

// digestOutput 命令行输出
type digestOutput struct {
	PrimaryType     string `json:"primaryType"`
	Digest          string `json:"digest"`
	DomainSeparator string `json:"domainSeparator"`
	StructHash      string `json:"structHash"`
	Signer          string `json:"signer,omitempty"`
	Verified        *bool  `json:"verified,omitempty"`
}

// runOnce 计算单个请求的摘要, 提供签名时一并验证
func runOnce(ctx context.Context, svc service.SignatureService, path, signature, signer string, w io.Writer) error {
	data, err := readPayload(path)
	if err != nil {
		return err
	}

	result, err := svc.DigestJSON(ctx, data)
	if err != nil {
		return err
	}

	out := digestOutput{
		PrimaryType:     result.PrimaryType,
		Digest:          result.Digest.Hex(),
		DomainSeparator: result.DomainSeparator.Hex(),
		StructHash:      result.StructHash.Hex(),
	}

	var verifyErr error
	if signature != "" {
		sig, err := crypto.ParseSignature(signature)
		if err != nil {
			return fmt.Errorf("parse signature: %w", err)
		}
		if signer == "" {
			// 未指定签名者时仅报告恢复出的地址, 不输出验证结果
			recovered, err := crypto.RecoverAddress(result.Digest.Bytes(), sig)
			if err != nil {
				return fmt.Errorf("recover signer: %w", err)
			}
			out.Signer = recovered
		} else {
			verifyErr = svc.VerifyTypedData(ctx, result.TypedData, signer, sig)
			verified := verifyErr == nil
			out.Signer = signer
			out.Verified = &verified
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return verifyErr
}

func readPayload(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}
