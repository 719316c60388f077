package bingplaces

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Bizoholic-Digital/bizosaas-platform-sub004/internal/model"
)

// requestSigner 绑定一份凭证：customer id + RSA 私钥
type requestSigner struct {
	customer string
	key      *rsa.PrivateKey
}

// newSigner 私钥为 PEM，"RSA PRIVATE KEY" 按 PKCS1 解析，其余按 PKCS8
func newSigner(creds *model.AuthCredentials) (*requestSigner, error) {
	customer := creds.Get(model.CredAPIKey)
	if customer == "" {
		return nil, errors.New("缺少 customer id")
	}
	block, _ := pem.Decode([]byte(creds.Get(model.CredPrivateKey)))
	if block == nil {
		return nil, errors.New("私钥不是 PEM 格式")
	}
	var (
		parsed any
		err    error
	)
	if block.Type == "RSA PRIVATE KEY" {
		parsed, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	} else {
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, fmt.Errorf("解析%s失败: %w", block.Type, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%s 不是 RSA 私钥", block.Type)
	}
	return &requestSigner{customer: customer, key: key}, nil
}

// stringToSign customer、timestamp、METHOD、path 逐行拼接；path 不含 query
func stringToSign(customer, timestamp, method, rawPath string) string {
	if u, err := url.Parse(rawPath); err == nil {
		rawPath = u.Path
	}
	return strings.Join([]string{customer, timestamp, strings.ToUpper(method), rawPath}, "\n")
}

// headers 请求时刻的签名头，签名算法 RSA-PSS(SHA-256)
func (s *requestSigner) headers(at time.Time, method, path string) (map[string]string, error) {
	timestamp := strconv.FormatInt(at.UnixMilli(), 10)
	digest := sha256.Sum256([]byte(stringToSign(s.customer, timestamp, method, path)))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}
	return map[string]string{
		HeaderCustomer:  s.customer,
		HeaderTimestamp: timestamp,
		HeaderSignature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}
