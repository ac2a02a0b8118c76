// Package site holds the storefront URLs, selectors and layout constants.
package site

import (
	"fmt"
	"time"

	"github.com/law-makers/ordercrawl/pkg/models"
)

const (
	// HistoryURL is the order history landing page carrying the year selector
	HistoryURL = "https://order.my.rakuten.co.jp/"

	historyByYearURL = "https://order.my.rakuten.co.jp/?page=myorder&act=list&display_span=%d&display_month=0&page_num=%d"
	orderByNoURL     = "https://order.my.rakuten.co.jp/?page=myorder&act=detail_view&shop_id=%s&order_number=%s"

	// PageSize is the number of orders listed per history page
	PageSize = 25

	// BooksSeller is the seller name that uses the books order layout
	BooksSeller = "楽天ブックス"
)

// Location is the storefront's time zone; listed dates carry no offset
var Location = time.FixedZone("JST", 9*60*60)

// Selectors used to detect page state
const (
	BodySelector        = "body"
	LoginWallSelector   = "table.loginBox"
	LoginUserSelector   = "#loginInner_u"
	LoginPassSelector   = "#loginInner_p"
	LoginSubmitSelector = `input[name="submit"]`
	ErrorBannerSelector = "ul.mypage_cxl_mordal_text_error"
	ImageSelector       = "img"
)

// HistoryPageURL returns the history list URL for a year and 1-indexed page
func HistoryPageURL(year, page int) string {
	return fmt.Sprintf(historyByYearURL, year, page)
}

// OrderDetailURL returns the detail page URL for an order number
func OrderDetailURL(orderNumber string) (string, error) {
	storeID, err := models.StoreIDFromOrderNumber(orderNumber)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(orderByNoURL, storeID, orderNumber), nil
}
