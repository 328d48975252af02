package service

import (
	"net/url"

	"github.com/shopspring/decimal"
)

const qrImageBaseURL = "https://img.vietqr.io/image/"

// QRImageURL builds a VietQR quick-link image URL that pre-fills the transfer
// amount and description.
func QRImageURL(cfg QRConfig, amount decimal.Decimal, addInfo string) string {
	path := url.PathEscape(cfg.BankID) + "-" + url.PathEscape(cfg.AccountNo) + "-" + url.PathEscape(cfg.Template) + ".png"

	query := url.Values{}
	query.Set("amount", amount.String())
	query.Set("addInfo", addInfo)
	if cfg.AccountName != "" {
		query.Set("accountName", cfg.AccountName)
	}

	return qrImageBaseURL + path + "?" + query.Encode()
}
