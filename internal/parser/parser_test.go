package parser

import (
	"testing"
	"time"

	"github.com/law-makers/ordercrawl/internal/site"
	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const landingHTML = `<html><body>
<select id="selectPeriodYear">
  <option value="">すべて</option>
  <option value="2023">2023年</option>
  <option value="2021">2021年</option>
  <option value="2022">2022年</option>
  <option value="2023">2023年</option>
</select>
</body></html>`

const historyHTML = `<html><body>
<div class="oDrPager"><span class="totalItem">3</span></div>
<div class="oDrListItem"><table><tr><td>
  <ul>
    <li class="purchaseDate">2023年05月01日</li>
    <li class="orderID">注文番号 <span class="idNum">213310-20230501-0001</span></li>
    <li class="shopName"><a href="#">Coffee Shop</a></li>
    <li class="oDrDetailList"><a href="/?page=myorder&amp;act=detail_view&amp;order_number=213310-20230501-0001">詳細</a></li>
  </ul>
</td></tr></table></div>
<div class="oDrListItem"><table><tr><td>
  <ul>
    <li class="purchaseDate">2023年04月02日</li>
    <li class="orderID">注文番号</li>
    <li class="shopName"><a href="#">Broken</a></li>
  </ul>
</td></tr></table></div>
<div class="oDrListItem"><p>advert without table</p></div>
<div class="oDrListItem"><table><tr><td>
  <ul>
    <li class="purchaseDate">2023年03月03日</li>
    <li class="orderID"><span class="idNum">200162-20230303-0002</span></li>
    <li class="shopName"><a href="#">楽天ブックス</a></li>
    <li class="oDrDetailList"><a href="https://order.my.rakuten.co.jp/?order_number=200162-20230303-0002">詳細</a></li>
  </ul>
</td></tr></table></div>
</body></html>`

const shopDetailHTML = `<html><body>
<div class="oDrSpecOrderInfo"><table><tr>
  <td class="orderDate">2023年05月01日</td>
  <td class="orderID">213310-20230501-0001</td>
</tr></table></div>
<div class="oDrSpecPurchaseInfo"><table>
  <tr valign="top"><th>header</th></tr>
  <tr valign="top">
    <td class="prodImg"><img src="https://thumbnail.image.rakuten.co.jp/beans.jpg"></td>
    <td class="prodInfo"><table><tr><td class="prodName"><a href="https://item.rakuten.co.jp/coffeeshop/beans-500/">Roasted  beans
      500g</a></td></tr></table></td>
    <td class="widthPrice">1,280円</td>
    <td class="widthQuantity">2</td>
    <td class="widthTax">込</td>
  </tr>
  <tr valign="top">
    <td class="prodImg"><img src="/img/filter.jpg"></td>
    <td class="prodInfo"><table><tr><td class="prodName"><a href="https://item.rakuten.co.jp/coffeeshop/filter/">Paper filter</a></td></tr></table></td>
    <td class="widthPrice">３３０円</td>
    <td class="widthQuantity">1</td>
    <td class="widthTax">別</td>
  </tr>
</table></div>
</body></html>`

const booksDetailHTML = `<html><body>
<div class="order-info__date">2023年03月03日 21:15 注文</div>
<div class="order-info__detail"><span class="order-info__number">200162-20230303-0002</span></div>
<div class="shipping-list"><ul>
  <li class="item">
    <div class="item-image"><img src="https://thumbnail.image.rakuten.co.jp/book.jpg"></div>
    <div class="item-detail">
      <h2 class="item-detail__title"><a href="https://item.rakuten.co.jp/book/17012345/">The Go Programming Language</a></h2>
      <div class="item-detail__price"><span class="item-detail__price-num">4,180円</span></div>
      <div class="item-detail__order"><span class="item-detail__order-num">1</span></div>
    </div>
  </li>
</ul></div>
</body></html>`

func page(html string) models.Page {
	return models.Page{URL: "https://order.my.rakuten.co.jp/?page=myorder", HTML: html}
}

func TestParseYearOptions(t *testing.T) {
	p := New(nil)

	years, err := p.ParseYearOptions(page(landingHTML))
	require.NoError(t, err)
	assert.Equal(t, []int{2021, 2022, 2023}, years)

	_, err = p.ParseYearOptions(page("<html><body></body></html>"))
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestParseOrderCount(t *testing.T) {
	p := New(nil)

	n, err := p.ParseOrderCount(page(historyHTML))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = p.ParseOrderCount(page(`<div class="noItem">注文はありません</div>`))
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = p.ParseOrderCount(page(`<div class="oDrPager"><span class="totalItem">1,024</span></div>`))
	require.NoError(t, err)
	assert.Equal(t, 1024, n)

	_, err = p.ParseOrderCount(page("<html></html>"))
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestParseOrderSummaries(t *testing.T) {
	p := New(nil)

	summaries, err := p.ParseOrderSummaries(page(historyHTML))
	require.NoError(t, err)
	require.Len(t, summaries, 2, "entry without order number and advert must be skipped")

	first := summaries[0]
	assert.Equal(t, "213310-20230501-0001", first.OrderNumber)
	assert.Equal(t, "Coffee Shop", first.SellerName)
	assert.True(t, first.Date.Equal(time.Date(2023, 5, 1, 0, 0, 0, 0, site.Location)))
	assert.Equal(t, "https://order.my.rakuten.co.jp/?page=myorder&act=detail_view&order_number=213310-20230501-0001", first.DetailURL)

	assert.Equal(t, "200162-20230303-0002", summaries[1].OrderNumber)
	assert.Equal(t, site.BooksSeller, summaries[1].SellerName)
}

func TestParseOrderSummaries_BadDate(t *testing.T) {
	html := `<div class="oDrListItem"><table><tr><td><ul>
		<li class="purchaseDate">yesterday</li>
		<li class="orderID"><span class="idNum">1-2</span></li>
	</ul></td></tr></table></div>`

	_, err := New(nil).ParseOrderSummaries(page(html))
	assert.Error(t, err)
}

func TestParseOrderDetail_Shop(t *testing.T) {
	p := New(nil)
	summary := models.OrderSummary{OrderNumber: "213310-20230501-0001", SellerName: "Coffee Shop"}

	order, refs, err := p.ParseOrderDetail(page(shopDetailHTML), summary)
	require.NoError(t, err)
	assert.Equal(t, "213310-20230501-0001", order.OrderNumber)
	assert.Equal(t, "Coffee Shop", order.SellerName)
	assert.Equal(t, 2023, order.Year())
	require.Len(t, refs, 2)

	beans := refs[0]
	assert.Equal(t, "Roasted beans 500g", beans.Fields.Name)
	assert.Equal(t, 1280, beans.Fields.Price)
	assert.Equal(t, 2, beans.Fields.Count)
	assert.Equal(t, "coffeeshop/beans-500", beans.Fields.ProductID)
	require.NotNil(t, beans.Fields.IncludeTax)
	assert.True(t, *beans.Fields.IncludeTax)
	assert.Equal(t, "https://thumbnail.image.rakuten.co.jp/beans.jpg", beans.ThumbURL)
	assert.Equal(t, "https://item.rakuten.co.jp/coffeeshop/beans-500/", beans.ItemURL)

	filter := refs[1]
	assert.Equal(t, 330, filter.Fields.Price)
	assert.False(t, *filter.Fields.IncludeTax)
	assert.Equal(t, "https://order.my.rakuten.co.jp/img/filter.jpg", filter.ThumbURL)

	_, err = models.NewItem(beans.Fields)
	assert.NoError(t, err, "parsed fields must satisfy the item constructor")
}

func TestParseOrderDetail_Books(t *testing.T) {
	p := New(nil)
	summary := models.OrderSummary{OrderNumber: "200162-20230303-0002", SellerName: site.BooksSeller}

	order, refs, err := p.ParseOrderDetail(page(booksDetailHTML), summary)
	require.NoError(t, err)
	assert.True(t, order.Date.Equal(time.Date(2023, 3, 3, 21, 15, 0, 0, site.Location)))
	assert.Equal(t, "200162-20230303-0002", order.OrderNumber)
	require.Len(t, refs, 1)
	assert.Equal(t, "The Go Programming Language", refs[0].Fields.Name)
	assert.Equal(t, 4180, refs[0].Fields.Price)
	assert.Equal(t, "book/17012345", refs[0].Fields.ProductID)
	assert.Nil(t, refs[0].Fields.IncludeTax)

	// The shop layout cannot read a books page
	_, _, err = p.ParseOrderDetail(page(booksDetailHTML), models.OrderSummary{SellerName: "Coffee Shop"})
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestParseCategory(t *testing.T) {
	p := New(nil)

	shop := `<table><tr><td class="sdtext"><a>トップ</a> &gt; <a>食品</a> &gt; <a>コーヒー</a></td></tr></table>`
	cat, err := p.ParseCategory(page(shop), "Coffee Shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"食品", "コーヒー"}, cat)

	books := `<dl><dd itemprop="breadcrumb"><a>本</a><a>PC・システム開発</a></dd></dl>`
	cat, err = p.ParseCategory(page(books), site.BooksSeller)
	require.NoError(t, err)
	assert.Equal(t, []string{"PC・システム開発"}, cat)

	cat, err = p.ParseCategory(page("<p>no crumbs</p>"), "Coffee Shop")
	require.NoError(t, err)
	assert.Empty(t, cat)
}

func TestBannersAndWalls(t *testing.T) {
	p := New(nil)

	ok, msg := p.HasErrorBanner(page(`<ul class="mypage_cxl_mordal_text_error"><li>ただいま混み合っております</li></ul>`))
	assert.True(t, ok)
	assert.Equal(t, "ただいま混み合っております", msg)

	ok, _ = p.HasErrorBanner(page(shopDetailHTML))
	assert.False(t, ok)

	assert.True(t, p.HasLoginWall(page(`<table class="loginBox"><tr><td><input id="loginInner_u"></td></tr></table>`)))
	assert.False(t, p.HasLoginWall(page(historyHTML)))
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, "books", r.For(site.BooksSeller).Name())
	assert.Equal(t, "shop", r.For("anything").Name())

	r.Register("Coffee Shop", BooksLayout{})
	assert.Equal(t, "books", r.For("Coffee Shop").Name())
}
