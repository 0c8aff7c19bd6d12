package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"
)

var ErrBadSignature = errors.New("gateway signature invalid")

const (
	gatewayVersion    = "2.1.0"
	gatewayDateLayout = "20060102150405"
	respCodeSuccess   = "00"
)

// Gateway builds and verifies VNPay-style redirect URLs. The transaction
// reference field carries only the reconciliation key; the order-id set is
// persisted server-side under that key before redirecting, because the
// reference is too short to encode the ids themselves.
type Gateway struct {
	payURL  string
	tmnCode string
	secret  []byte
}

func NewGateway(payURL, tmnCode, hashSecret string) *Gateway {
	return &Gateway{payURL: payURL, tmnCode: tmnCode, secret: []byte(hashSecret)}
}

// BuildPaymentURL signs the redirect parameters with HMAC-SHA512 over the
// sorted encoded query. Amount is in the gateway's minor currency unit.
func (g *Gateway) BuildPaymentURL(key string, amount float64, orderInfo, returnURL string, now time.Time) string {
	params := url.Values{}
	params.Set("vnp_Version", gatewayVersion)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", g.tmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(int64(math.Round(amount*100)), 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", key)
	params.Set("vnp_OrderInfo", orderInfo)
	params.Set("vnp_ReturnUrl", returnURL)
	params.Set("vnp_CreateDate", now.Format(gatewayDateLayout))

	encoded := params.Encode()
	return fmt.Sprintf("%s?%s&vnp_SecureHash=%s", g.payURL, encoded, g.sign(encoded))
}

// VerifyCallback validates the signed return parameters. Nothing in the
// callback is trusted before the signature checks out.
func (g *Gateway) VerifyCallback(params url.Values) (key, txnNo string, success bool, err error) {
	received := params.Get("vnp_SecureHash")
	if received == "" {
		return "", "", false, ErrBadSignature
	}

	unsigned := url.Values{}
	for k, vs := range params {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		for _, v := range vs {
			unsigned.Add(k, v)
		}
	}
	expected := g.sign(unsigned.Encode())
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return "", "", false, ErrBadSignature
	}

	key = params.Get("vnp_TxnRef")
	txnNo = params.Get("vnp_TransactionNo")
	success = params.Get("vnp_ResponseCode") == respCodeSuccess
	return key, txnNo, success, nil
}

func (g *Gateway) sign(encoded string) string {
	mac := hmac.New(sha512.New, g.secret)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil))
}
